package stress

import "sync/atomic"

// stopFlag signals workers to finish.
//
// Each call to done() performs a single atomic load, which is much
// cheaper than a channel select in the reading loop.
type stopFlag struct {
	stopped atomic.Bool
}

// done returns true once stop has been called.
func (s *stopFlag) done() bool {
	return s.stopped.Load()
}

// stop is safe to call multiple times; subsequent calls are no-ops.
func (s *stopFlag) stop() {
	s.stopped.Store(true)
}
