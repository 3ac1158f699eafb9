//go:build !linux

package coarse

// Now returns the runtime's monotonic clock in nanoseconds.
func Now() uint64 {
	return uint64(nanotime())
}
