//go:build linux

package affinity

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/randomizedcoder/tscclock/internal/counter"
)

// Pin implements Pinner with sched_setaffinity(2) on the current thread.
func (OS) Pin(core counter.CoreID) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(int(core))
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrapf(err, "sched_setaffinity cpu %d", core)
	}
	return nil
}
