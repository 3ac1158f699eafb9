package calibrate_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/randomizedcoder/tscclock/internal/calibrate"
	"github.com/randomizedcoder/tscclock/internal/counter"
	"github.com/randomizedcoder/tscclock/internal/counter/countertest"
)

// fakePinner records pin requests and fails for one core.
type fakePinner struct {
	mu     sync.Mutex
	pinned []counter.CoreID
	failOn map[counter.CoreID]bool
}

func (p *fakePinner) Pin(core counter.CoreID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[core] {
		return errors.New("invalid argument")
	}
	p.pinned = append(p.pinned, core)
	return nil
}

const anchorNanos = int64(time.Second)

// syntheticCores gives every core its own counter and clock, with the
// given rate and a distinct base.
func syntheticCores(rates map[counter.CoreID]uint64) func(counter.CoreID) calibrate.Target {
	targets := make(map[counter.CoreID]calibrate.Target, len(rates))
	for core, rate := range rates {
		clk := countertest.NewManualClock(anchorNanos, time.Microsecond)
		targets[core] = calibrate.Target{
			Counter: &countertest.Synthetic{Clock: clk, RateHz: rate, Base: baseFor(core), Core: core},
			Clock:   clk,
		}
	}
	return func(core counter.CoreID) calibrate.Target { return targets[core] }
}

func baseFor(core counter.CoreID) uint64 {
	return uint64(core) * 1_000_000_007
}

func TestBuild(t *testing.T) {
	pinner := &fakePinner{}
	b := calibrate.Builder{
		Params:    calibrate.DefaultParams(),
		Pinner:    pinner,
		TargetFor: syntheticCores(map[counter.CoreID]uint64{0: rate3GHz, 2: rate3GHz, 3: rate3GHz}),
	}

	table, err := b.Build(calibrate.Anchor{Nanos: anchorNanos}, []counter.CoreID{3, 0, 2})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if table.RateHz != rate3GHz {
		t.Errorf("RateHz = %d, want 3e9", table.RateHz)
	}

	// Each core's offset is its counter value at the anchor instant.
	atAnchor := func(core counter.CoreID) uint64 { return baseFor(core) + 3*uint64(anchorNanos) }
	want := []uint64{atAnchor(0), atAnchor(0), atAnchor(2), atAnchor(3)}
	if diff := cmp.Diff(want, table.Offsets); diff != "" {
		t.Errorf("Offsets mismatch (-want +got):\n%s", diff)
	}

	if got := table.Offset(3); got != atAnchor(3) {
		t.Errorf("Offset(3) = %d, want %d", got, atAnchor(3))
	}
	if got := table.Offset(64); got != atAnchor(0) {
		t.Errorf("Offset(64) beyond table = %d, want lowest core's %d", got, atAnchor(0))
	}

	pinner.mu.Lock()
	defer pinner.mu.Unlock()
	if len(pinner.pinned) != 3 {
		t.Errorf("pinned %v, want three cores", pinner.pinned)
	}
}

func TestBuild_NoCores(t *testing.T) {
	b := calibrate.Builder{Params: calibrate.DefaultParams(), Pinner: &fakePinner{}}
	if _, err := b.Build(calibrate.Anchor{}, nil); !errors.Is(err, calibrate.ErrNoCores) {
		t.Errorf("Build(nil) error = %v, want ErrNoCores", err)
	}
}

func TestBuild_RateDeviation(t *testing.T) {
	testCases := []struct {
		name    string
		deviant uint64
		wantErr error
	}{
		{"0.03% apart", 3_000_900_000, nil},
		{"0.1% apart", 3_003_000_000, calibrate.ErrInconsistentRates},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := calibrate.Builder{
				Params: calibrate.DefaultParams(),
				Pinner: &fakePinner{},
				TargetFor: syntheticCores(map[counter.CoreID]uint64{
					0: rate3GHz, 1: rate3GHz, 2: rate3GHz, 3: tc.deviant,
				}),
			}
			table, err := b.Build(calibrate.Anchor{Nanos: anchorNanos}, []counter.CoreID{0, 1, 2, 3})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil {
				// Truncated synthetic reads put each estimate within ~100 Hz.
				want := calibrate.MeanRate([]uint64{rate3GHz, rate3GHz, rate3GHz, tc.deviant})
				if diff := int64(table.RateHz) - int64(want); diff < -1000 || diff > 1000 {
					t.Errorf("RateHz = %d, want mean %d", table.RateHz, want)
				}
			}
		})
	}
}

func TestBuild_PinFailure(t *testing.T) {
	b := calibrate.Builder{
		Params:    calibrate.DefaultParams(),
		Pinner:    &fakePinner{failOn: map[counter.CoreID]bool{1: true}},
		TargetFor: syntheticCores(map[counter.CoreID]uint64{0: rate3GHz, 1: rate3GHz}),
	}
	if _, err := b.Build(calibrate.Anchor{Nanos: anchorNanos}, []counter.CoreID{0, 1}); err == nil {
		t.Error("expected Build() to fail when pinning fails")
	}
}

func TestBuild_Panic(t *testing.T) {
	ok := syntheticCores(map[counter.CoreID]uint64{0: rate3GHz})
	b := calibrate.Builder{
		Params: calibrate.DefaultParams(),
		Pinner: &fakePinner{},
		TargetFor: func(core counter.CoreID) calibrate.Target {
			if core == 1 {
				panic("no counter on this core")
			}
			return ok(core)
		},
	}
	_, err := b.Build(calibrate.Anchor{Nanos: anchorNanos}, []counter.CoreID{0, 1})
	if !errors.Is(err, calibrate.ErrCalibrationPanic) {
		t.Errorf("Build() error = %v, want ErrCalibrationPanic", err)
	}
}

func TestBuild_CoreMismatch(t *testing.T) {
	clk := countertest.NewManualClock(anchorNanos, time.Microsecond)
	migrating := &countertest.Synthetic{Clock: clk, RateHz: rate3GHz, Core: 0, MismatchAfter: 100, WrongCore: 1}
	b := calibrate.Builder{
		Params:    calibrate.DefaultParams(),
		Pinner:    &fakePinner{},
		TargetFor: func(counter.CoreID) calibrate.Target { return calibrate.Target{Counter: migrating, Clock: clk} },
	}
	_, err := b.Build(calibrate.Anchor{Nanos: anchorNanos}, []counter.CoreID{0})
	if !errors.Is(err, calibrate.ErrCoreMismatch) {
		t.Errorf("Build() error = %v, want ErrCoreMismatch", err)
	}
}

func TestValidateRates(t *testing.T) {
	const tol = 0.0005
	testCases := []struct {
		name    string
		rates   []uint64
		wantErr error
	}{
		{"single", []uint64{rate3GHz}, nil},
		{"identical", []uint64{rate3GHz, rate3GHz, rate3GHz}, nil},
		{"at tolerance", []uint64{2_000_000_000, 2_001_000_000}, nil},
		{"just beyond", []uint64{2_000_000_000, 2_001_000_001}, calibrate.ErrInconsistentRates},
		{"one far off", []uint64{rate3GHz, rate3GHz, 2_900_000_000}, calibrate.ErrInconsistentRates},
		{"zero rate", []uint64{0, rate3GHz}, calibrate.ErrInconsistentRates},
		{"empty", nil, calibrate.ErrNoCores},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := calibrate.ValidateRates(tc.rates, tol); !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateRates(%v) = %v, want %v", tc.rates, err, tc.wantErr)
			}
		})
	}
}

func TestMeanRate(t *testing.T) {
	testCases := []struct {
		rates []uint64
		want  uint64
	}{
		{nil, 0},
		{[]uint64{7}, 7},
		{[]uint64{1, 2}, 1},
		{[]uint64{3_000_000_000, 3_000_000_002}, 3_000_000_001},
		{[]uint64{1<<63 + 1, 1<<63 + 3}, 1<<63 + 2},
	}
	for _, tc := range testCases {
		if got := calibrate.MeanRate(tc.rates); got != tc.want {
			t.Errorf("MeanRate(%v) = %d, want %d", tc.rates, got, tc.want)
		}
	}
}
