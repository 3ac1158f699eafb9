// Package calibrate measures the cycle counter's rate against the
// monotonic clock and derives the offsets that put counter values on a
// zero-based scale.
//
// The Calibrator handles one core. The Builder runs a Calibrator pinned to
// every online core, checks that the cores agree on the rate, and
// assembles a per-core offset table.
package calibrate

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/randomizedcoder/tscclock/internal/config"
	"github.com/randomizedcoder/tscclock/internal/counter"
)

var (
	// ErrCounterStalled means the counter did not advance over a whole window.
	ErrCounterStalled = errors.New("calibrate: counter did not advance")
	// ErrNoConvergence means the rate estimate never settled within MaxIterations.
	ErrNoConvergence = errors.New("calibrate: rate estimate did not converge")
	// ErrCoreMismatch means a read executed on a core other than the pinned one.
	ErrCoreMismatch = errors.New("calibrate: counter read on unexpected core")
)

// Monotonic is a monotonic nanosecond clock.
type Monotonic interface {
	Nanotime() int64
}

// Params are the calibration tunables.
type Params struct {
	Window             time.Duration
	Tolerance          float64
	CrossCoreTolerance float64
	MaxIterations      int
}

// ParamsFrom extracts the calibration tunables from cfg.
func ParamsFrom(cfg config.Config) Params {
	return Params{
		Window:             cfg.Window,
		Tolerance:          cfg.Tolerance,
		CrossCoreTolerance: cfg.CrossCoreTolerance,
		MaxIterations:      cfg.MaxIterations,
	}
}

// DefaultParams returns ParamsFrom(config.Default()).
func DefaultParams() Params {
	return ParamsFrom(config.Default())
}

// Anchor is a monotonic timestamp and a counter value read back to back.
// It is the zero point of the calibrated scale.
type Anchor struct {
	Nanos   int64
	Counter uint64
}

// NewAnchor reads clock and counter as close together as possible.
func NewAnchor(src counter.Source, clock Monotonic) Anchor {
	return Anchor{Nanos: clock.Nanotime(), Counter: src.Read()}
}

// Sample is a pair of counter reads bracketing a monotonic interval.
type Sample struct {
	StartNanos, EndNanos int64
	StartCount, EndCount uint64
}

// Rate returns the sample's ticks per second. Counter wraparound inside
// the sample is handled by unsigned subtraction.
func (s Sample) Rate() float64 {
	elapsed := s.EndNanos - s.StartNanos
	if elapsed <= 0 {
		return 0
	}
	return float64(s.EndCount-s.StartCount) * 1e9 / float64(elapsed)
}

// Result is the outcome of calibrating one core.
type Result struct {
	RateHz     uint64
	Offset     uint64
	Iterations int
}

// Offset projects endCount, read at endNanos, back to the counter value
// at the anchor instant. Arithmetic wraps, so a counter that wrapped
// between the anchor and endNanos still yields a usable offset:
// read() - offset counts ticks since the anchor.
func Offset(rateHz, endCount uint64, endNanos int64, anchor Anchor) uint64 {
	sinceAnchor := float64(endNanos-anchor.Nanos) * float64(rateHz) / 1e9
	return endCount - uint64(int64(math.Round(sinceAnchor)))
}

// Calibrator estimates the rate of one counter against one clock.
type Calibrator struct {
	Counter counter.Source
	Clock   Monotonic
	Params  Params
}

// Calibrate runs the convergence loop and returns the rate and the offset
// relative to anchor.
func (c *Calibrator) Calibrate(anchor Anchor) (Result, error) {
	return c.run(anchor, func() (uint64, error) {
		return c.Counter.Read(), nil
	})
}

// CalibrateOnCore is Calibrate with every read attributed to a core. A
// read reporting any core other than core fails with ErrCoreMismatch,
// since an offset measured on the wrong core cannot be trusted.
func (c *Calibrator) CalibrateOnCore(anchor Anchor, core counter.CoreID) (Result, error) {
	return c.run(anchor, func() (uint64, error) {
		v, got := c.Counter.ReadWithCore()
		if got != core {
			return 0, errors.Wrapf(ErrCoreMismatch, "pinned to cpu %d, read on cpu %d", core, got)
		}
		return v, nil
	})
}

func (c *Calibrator) run(anchor Anchor, read func() (uint64, error)) (Result, error) {
	var prev float64
	for i := 1; i <= c.Params.MaxIterations; i++ {
		s, err := c.sample(read)
		if err != nil {
			return Result{}, err
		}
		rate := s.Rate()
		if rate <= 0 {
			return Result{}, errors.Wrapf(ErrCounterStalled, "window %v", c.Params.Window)
		}

		if math.Abs(rate-prev)/rate < c.Params.Tolerance {
			rateHz := uint64(math.Round(rate))
			return Result{
				RateHz:     rateHz,
				Offset:     Offset(rateHz, s.EndCount, s.EndNanos, anchor),
				Iterations: i,
			}, nil
		}
		prev = rate
	}
	return Result{}, errors.Wrapf(ErrNoConvergence, "%d iterations of %v", c.Params.MaxIterations, c.Params.Window)
}

// sample polls until more than Window has elapsed.
func (c *Calibrator) sample(read func() (uint64, error)) (Sample, error) {
	var s Sample
	var err error

	s.StartNanos = c.Clock.Nanotime()
	if s.StartCount, err = read(); err != nil {
		return s, err
	}

	window := int64(c.Params.Window)
	for {
		s.EndNanos = c.Clock.Nanotime()
		if s.EndCount, err = read(); err != nil {
			return s, err
		}
		if s.EndNanos-s.StartNanos > window {
			return s, nil
		}
	}
}
