package tscclock

import (
	"time"

	"github.com/randomizedcoder/tscclock/internal/clockstate"
)

// Instant is a reading of the clock in NowCycles units.
//
// Instants are only meaningful within the process that produced them.
type Instant uint64

// Now returns the current Instant.
func Now() Instant {
	return Instant(clockstate.Get().NowCycles())
}

// Since returns the time elapsed since i.
func Since(i Instant) time.Duration {
	return Now().Sub(i)
}

// Sub returns the duration i-u. It is negative when u is later than i.
func (i Instant) Sub(u Instant) time.Duration {
	return cyclesToDuration(int64(i - u))
}

// Add returns i+d.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(durationToCycles(d))
}

// Elapsed returns Since(i).
func (i Instant) Elapsed() time.Duration {
	return Since(i)
}

// Before reports whether i is earlier than u.
func (i Instant) Before(u Instant) bool {
	return int64(i-u) < 0
}

// Nanos returns i in nanoseconds since the clock's zero point.
func (i Instant) Nanos() uint64 {
	return uint64(float64(i) * clockstate.Get().NanosPerCycle())
}

// UnixNano converts i to Unix nanoseconds through a one-shot wall clock
// anchor taken at initialisation. The anchor is never recalibrated, so
// the result drifts from time.Now as the system clock is adjusted.
func (i Instant) UnixNano() int64 {
	return clockstate.Get().UnixNano(uint64(i))
}

// Time returns i as a time.Time via UnixNano.
func (i Instant) Time() time.Time {
	return time.Unix(0, i.UnixNano())
}

func cyclesToDuration(cycles int64) time.Duration {
	return time.Duration(float64(cycles) * clockstate.Get().NanosPerCycle())
}

func durationToCycles(d time.Duration) int64 {
	return int64(float64(d) / clockstate.Get().NanosPerCycle())
}
