//go:build !linux

package affinity

import "github.com/randomizedcoder/tscclock/internal/counter"

// Pin always fails outside Linux.
func (OS) Pin(core counter.CoreID) error {
	return ErrUnsupported
}
