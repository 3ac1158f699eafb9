// Package affinity binds goroutines to a single logical CPU.
package affinity

import (
	"github.com/pkg/errors"

	"github.com/randomizedcoder/tscclock/internal/counter"
)

// ErrUnsupported is returned where the OS has no affinity facility.
var ErrUnsupported = errors.New("affinity: thread pinning not supported on this platform")

// Pinner binds the calling goroutine to one core.
type Pinner interface {
	// Pin locks the calling goroutine to its OS thread and restricts that
	// thread to core. The goroutine must not unlock the thread afterwards:
	// when it exits, the runtime terminates the pinned thread instead of
	// returning it to the scheduler.
	Pin(core counter.CoreID) error
}

// OS pins through the operating system's scheduler affinity call.
type OS struct{}

var _ Pinner = OS{}
