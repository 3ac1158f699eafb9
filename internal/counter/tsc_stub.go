//go:build !amd64

package counter

// Hardware reports that no usable cycle counter exists on this
// architecture. Callers fall back to the coarse clock.
func Hardware() (Source, bool) {
	return nil, false
}
