// Package clockstate builds the process-wide clock state once and serves
// the fast-path reads on top of it.
package clockstate

import (
	"time"

	"k8s.io/klog/v2"

	"github.com/randomizedcoder/tscclock/internal/affinity"
	"github.com/randomizedcoder/tscclock/internal/calibrate"
	"github.com/randomizedcoder/tscclock/internal/classify"
	"github.com/randomizedcoder/tscclock/internal/config"
	"github.com/randomizedcoder/tscclock/internal/counter"
)

// Deps are the collaborators Build uses. HostDeps wires the real ones.
type Deps struct {
	Config config.Config
	Probe  classify.Probe

	// Counter is the hardware counter read on the fast path; nil when the
	// platform has none.
	Counter counter.Source
	Clock   calibrate.Monotonic
	Pinner  affinity.Pinner

	OnlineCPUs func() ([]counter.CoreID, error)

	// TargetFor selects what each core calibrates against. Nil means
	// Counter and Clock on every core.
	TargetFor func(core counter.CoreID) calibrate.Target

	// Coarse is the fallback clock in nanoseconds.
	Coarse func() uint64
}

// State is the immutable result of classification and calibration.
type State struct {
	level  classify.Level
	rateHz uint64
	offset uint64
	table  calibrate.Table

	nanosPerCycle float64

	counter counter.Source
	coarse  func() uint64

	// One-shot wall clock anchor for UnixNano.
	wallNanos  int64
	wallCycles uint64
}

// Build classifies the counter and calibrates it. Every failure is
// logged and folds into an unstable state that reads the coarse clock.
func Build(d Deps) *State {
	s := &State{level: classify.Unstable, nanosPerCycle: 1, coarse: d.Coarse}
	s.calibrate(d)
	s.wallNanos, s.wallCycles = time.Now().UnixNano(), s.NowCycles()

	klog.V(1).Infof("tscclock: %s, rate=%d Hz, nanos/cycle=%g", s.level, s.rateHz, s.nanosPerCycle)
	return s
}

func (s *State) calibrate(d Deps) {
	switch {
	case d.Config.Disable:
		klog.V(1).Info("tscclock: hardware counter disabled by config")
		return
	case d.Counter == nil:
		klog.V(1).Info("tscclock: no hardware counter on this platform")
		return
	}

	level := classify.Classify(d.Probe)
	params := calibrate.ParamsFrom(d.Config)
	anchor := calibrate.NewAnchor(d.Counter, d.Clock)

	switch level {
	case classify.GloballyStable:
		c := calibrate.Calibrator{Counter: d.Counter, Clock: d.Clock, Params: params}
		res, err := c.Calibrate(anchor)
		if err != nil {
			klog.Warningf("tscclock: calibration failed, using coarse clock: %v", err)
			return
		}
		s.rateHz, s.offset = res.RateHz, res.Offset

	case classify.PerCoreStable:
		cores, err := d.OnlineCPUs()
		if err != nil {
			klog.Warningf("tscclock: online cpus unavailable, using coarse clock: %v", err)
			return
		}
		targetFor := d.TargetFor
		if targetFor == nil {
			targetFor = func(counter.CoreID) calibrate.Target {
				return calibrate.Target{Counter: d.Counter, Clock: d.Clock}
			}
		}
		b := calibrate.Builder{Params: params, Pinner: d.Pinner, TargetFor: targetFor}
		table, err := b.Build(anchor, cores)
		if err != nil {
			klog.Warningf("tscclock: per-core calibration failed, using coarse clock: %v", err)
			return
		}
		s.rateHz, s.table = table.RateHz, table

	default:
		return
	}

	s.level = level
	s.counter = d.Counter
	s.nanosPerCycle = 1e9 / float64(s.rateHz)
}

// NowCycles returns the current time in the clock's private unit: counter
// ticks since the anchor when stable, nanoseconds otherwise.
func (s *State) NowCycles() uint64 {
	switch s.level {
	case classify.GloballyStable:
		return s.counter.Read() - s.offset
	case classify.PerCoreStable:
		v, core := s.counter.ReadWithCore()
		return v - s.table.Offset(core)
	default:
		return s.coarse()
	}
}

// NanosPerCycle converts NowCycles units to nanoseconds. It is exactly 1
// when the counter is unstable.
func (s *State) NanosPerCycle() float64 {
	return s.nanosPerCycle
}

// Level returns the classification the state was built with.
func (s *State) Level() classify.Level {
	return s.level
}

// HardwareAvailable reports whether NowCycles reads the hardware counter.
func (s *State) HardwareAvailable() bool {
	return s.level.Stable()
}

// RateHz returns the counter rate. Calling it on an unstable state is a
// programming error and panics.
func (s *State) RateHz() uint64 {
	if !s.level.Stable() {
		panic("tscclock: counter is unstable")
	}
	return s.rateHz
}

// Offsets returns a copy of the per-core offset table, or a single
// element with the global offset when globally stable.
func (s *State) Offsets() []uint64 {
	switch s.level {
	case classify.GloballyStable:
		return []uint64{s.offset}
	case classify.PerCoreStable:
		return append([]uint64(nil), s.table.Offsets...)
	default:
		return nil
	}
}

// UnixNano converts a NowCycles value to Unix nanoseconds through the wall
// clock anchor taken when the state was built. It is never recalibrated.
func (s *State) UnixNano(cycles uint64) int64 {
	delta := int64(cycles - s.wallCycles)
	return s.wallNanos + int64(float64(delta)*s.nanosPerCycle)
}
