package calibrate

import (
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/randomizedcoder/tscclock/internal/affinity"
	"github.com/randomizedcoder/tscclock/internal/counter"
)

var (
	// ErrNoCores means the per-core build was asked to calibrate no cores.
	ErrNoCores = errors.New("calibrate: no cores to calibrate")
	// ErrInconsistentRates means the cores disagree on the counter rate.
	ErrInconsistentRates = errors.New("calibrate: per-core rates disagree")
	// ErrCalibrationPanic means a per-core calibration goroutine panicked.
	ErrCalibrationPanic = errors.New("calibrate: per-core calibration panicked")
)

// Target is the counter and clock measured on one core.
type Target struct {
	Counter counter.Source
	Clock   Monotonic
}

// Table is a per-core calibration: one rate for all cores and one offset
// per core id.
type Table struct {
	RateHz uint64
	// Offsets is indexed by core id, with len = max calibrated id + 1.
	// Ids absent from the calibrated set hold the lowest core's offset.
	Offsets []uint64
}

// Offset returns the offset for core. Cores beyond the table, such as a
// CPU hotplugged after calibration, get the lowest calibrated core's offset.
func (t Table) Offset(core counter.CoreID) uint64 {
	if int(core) < len(t.Offsets) {
		return t.Offsets[core]
	}
	return t.Offsets[0]
}

// Builder calibrates every core in parallel, each goroutine pinned to its core.
type Builder struct {
	Params    Params
	Pinner    affinity.Pinner
	TargetFor func(core counter.CoreID) Target
}

type coreResult struct {
	core counter.CoreID
	Result
}

// Build calibrates cores and assembles the offset table. Any failure
// (pinning, panic, core mismatch, no convergence, rate disagreement)
// abandons the whole table.
func (b *Builder) Build(anchor Anchor, cores []counter.CoreID) (Table, error) {
	if len(cores) == 0 {
		return Table{}, ErrNoCores
	}
	cores = slices.Clone(cores)
	slices.Sort(cores)
	cores = slices.Compact(cores)

	results := make([]coreResult, len(cores))
	var g errgroup.Group
	for i, core := range cores {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Wrapf(ErrCalibrationPanic, "cpu %d: %v", core, r)
				}
			}()
			res, err := b.calibrateCore(anchor, core)
			if err != nil {
				return err
			}
			results[i] = coreResult{core: core, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, err
	}

	rates := make([]uint64, len(results))
	for i, r := range results {
		rates[i] = r.RateHz
	}
	if err := ValidateRates(rates, b.Params.CrossCoreTolerance); err != nil {
		return Table{}, err
	}

	offsets := make([]uint64, int(cores[len(cores)-1])+1)
	for i := range offsets {
		offsets[i] = results[0].Offset
	}
	for _, r := range results {
		offsets[r.core] = r.Offset
		klog.V(2).Infof("cpu %d: rate=%d Hz offset=%d iterations=%d", r.core, r.RateHz, r.Offset, r.Iterations)
	}
	return Table{RateHz: MeanRate(rates), Offsets: offsets}, nil
}

// calibrateCore runs on its own goroutine. After Pin the goroutine owns a
// dedicated OS thread that is never unlocked.
func (b *Builder) calibrateCore(anchor Anchor, core counter.CoreID) (Result, error) {
	if err := b.Pinner.Pin(core); err != nil {
		return Result{}, errors.Wrapf(err, "pinning to cpu %d", core)
	}
	t := b.TargetFor(core)
	c := Calibrator{Counter: t.Counter, Clock: t.Clock, Params: b.Params}
	res, err := c.CalibrateOnCore(anchor, core)
	if err != nil {
		return Result{}, errors.Wrapf(err, "cpu %d", core)
	}
	return res, nil
}

// ValidateRates fails with ErrInconsistentRates when (max-min)/min
// exceeds tolerance. A spread that wide means the cores do not run the
// counter at one rate, so per-core offsets cannot correct them.
func ValidateRates(rates []uint64, tolerance float64) error {
	if len(rates) == 0 {
		return ErrNoCores
	}
	lo, hi := slices.Min(rates), slices.Max(rates)
	if lo == 0 {
		return errors.Wrap(ErrInconsistentRates, "zero rate")
	}
	if spread := float64(hi-lo) / float64(lo); spread > tolerance {
		return errors.Wrapf(ErrInconsistentRates, "min=%d max=%d spread=%.6f%% tolerance=%.6f%%",
			lo, hi, spread*100, tolerance*100)
	}
	return nil
}

// MeanRate returns the integer mean of rates.
func MeanRate(rates []uint64) uint64 {
	if len(rates) == 0 {
		return 0
	}
	var sum, rem uint64
	n := uint64(len(rates))
	for _, r := range rates {
		sum += r / n
		rem += r % n
	}
	return sum + rem/n
}
