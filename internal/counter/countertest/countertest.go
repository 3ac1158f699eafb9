// Package countertest provides a synthetic cycle counter and a manual
// monotonic clock for testing calibration without real hardware.
package countertest

import (
	"math/bits"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/tscclock/internal/counter"
)

// ManualClock is a monotonic nanosecond clock that advances by a fixed
// step every time it is read. Safe for concurrent use.
type ManualClock struct {
	now  atomic.Int64
	step int64
}

// NewManualClock returns a clock reading start that advances by step on
// every call to Nanotime.
func NewManualClock(start int64, step time.Duration) *ManualClock {
	c := &ManualClock{step: int64(step)}
	c.now.Store(start)
	return c
}

// Nanotime advances the clock by one step and returns the new value.
func (c *ManualClock) Nanotime() int64 {
	return c.now.Add(c.step)
}

// Peek returns the current value without advancing.
func (c *ManualClock) Peek() int64 {
	return c.now.Load()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.now.Add(int64(d))
}

// Synthetic is a counter that runs at exactly RateHz ticks per second of
// Clock time, starting from Base at clock value zero.
//
// ReadWithCore reports Core, or WrongCore once more than MismatchAfter
// reads have happened (when MismatchAfter > 0).
type Synthetic struct {
	Clock  *ManualClock
	RateHz uint64
	Base   uint64
	Core   counter.CoreID

	MismatchAfter int64
	WrongCore     counter.CoreID
	NoCoreID      bool

	reads atomic.Int64
}

var _ counter.Source = (*Synthetic)(nil)

// Read returns Base + RateHz*now/1e9 with wrapping arithmetic.
func (s *Synthetic) Read() uint64 {
	return s.At(s.Clock.Peek())
}

// At returns the value the counter has at clock value nanos.
func (s *Synthetic) At(nanos int64) uint64 {
	hi, lo := bits.Mul64(uint64(nanos), s.RateHz)
	ticks, _ := bits.Div64(hi, lo, uint64(time.Second))
	return s.Base + ticks
}

// ReadWithCore returns Read and the configured core id.
func (s *Synthetic) ReadWithCore() (uint64, counter.CoreID) {
	n := s.reads.Add(1)
	if s.MismatchAfter > 0 && n > s.MismatchAfter {
		return s.Read(), s.WrongCore
	}
	return s.Read(), s.Core
}

// SupportsCoreID reports !NoCoreID.
func (s *Synthetic) SupportsCoreID() bool {
	return !s.NoCoreID
}
