package stress_test

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/randomizedcoder/tscclock/internal/coarse"
	"github.com/randomizedcoder/tscclock/internal/counter"
	"github.com/randomizedcoder/tscclock/internal/stress"
)

func TestRun_Monotonic(t *testing.T) {
	var c atomic.Uint64
	rep, err := stress.Run(stress.Config{
		Workers:  4,
		Duration: 20 * time.Millisecond,
		Clock:    func() uint64 { return c.Add(1) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.OK() {
		t.Errorf("report not OK: %+v", rep)
	}
	if rep.Readings == 0 {
		t.Error("no readings")
	}
	var sum uint64
	for _, n := range rep.PerWorker {
		sum += n
	}
	if sum != rep.Readings {
		t.Errorf("per-worker sum %d != readings %d", sum, rep.Readings)
	}
}

func TestRun_Coarse(t *testing.T) {
	rep, err := stress.Run(stress.Config{
		Workers:  2,
		Duration: 10 * time.Millisecond,
		Clock:    coarse.Now,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.OK() {
		t.Errorf("coarse clock regressed: %+v", rep)
	}
}

// backwards steps back by 10 on every 100th reading.
type backwards struct {
	mu sync.Mutex
	v  uint64
	n  uint64
}

func (b *backwards) read() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	if b.n%100 == 0 {
		b.v -= 10
		return b.v
	}
	b.v += 3
	return b.v
}

func TestRun_DetectsRegression(t *testing.T) {
	b := &backwards{v: 1 << 20}
	rep, err := stress.Run(stress.Config{
		Workers:  1,
		Duration: 10 * time.Millisecond,
		Clock:    b.read,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.OK() {
		t.Fatalf("regression not detected: %+v", rep)
	}
	if rep.Regressions == 0 {
		t.Errorf("Regressions = 0")
	}
	if rep.MaxRegression != 10 {
		t.Errorf("MaxRegression = %d, want 10", rep.MaxRegression)
	}
}

// singleProc runs the rest of the test with one P, where a spinning
// checker would starve the workers.
func singleProc(t *testing.T) {
	t.Helper()
	prev := runtime.GOMAXPROCS(1)
	t.Cleanup(func() { runtime.GOMAXPROCS(prev) })
}

func TestRun_SingleProc(t *testing.T) {
	singleProc(t)
	var c atomic.Uint64
	for i := 0; i < 10; i++ {
		rep, err := stress.Run(stress.Config{
			Workers:  2,
			Duration: 10 * time.Millisecond,
			Clock:    func() uint64 { return c.Add(1) },
		})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !rep.OK() {
			t.Fatalf("run %d: report not OK: %+v", i, rep)
		}
		for w, n := range rep.PerWorker {
			if n == 0 {
				t.Errorf("run %d: worker %d took no readings", i, w)
			}
		}
	}
}

func TestRun_DetectsRegressionSingleProc(t *testing.T) {
	singleProc(t)
	b := &backwards{v: 1 << 20}
	rep, err := stress.Run(stress.Config{
		Workers:  1,
		Duration: 10 * time.Millisecond,
		Clock:    b.read,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.OK() || rep.Regressions == 0 {
		t.Fatalf("regression not detected: %+v", rep)
	}
}

func TestReport_OKNeedsReadings(t *testing.T) {
	if (stress.Report{AfterJoin: true}).OK() {
		t.Error("empty report is OK")
	}
	if !(stress.Report{Readings: 1, PerWorker: []uint64{1}, AfterJoin: true}).OK() {
		t.Error("clean report is not OK")
	}
}

func TestRun_BadConfig(t *testing.T) {
	if _, err := stress.Run(stress.Config{Workers: 0, Clock: coarse.Now}); err == nil {
		t.Error("zero workers accepted")
	}
	if _, err := stress.Run(stress.Config{Workers: 1}); err == nil {
		t.Error("nil clock accepted")
	}
}

type failPinner struct{}

func (failPinner) Pin(counter.CoreID) error { return errors.New("pin refused") }

func TestRun_PinFailure(t *testing.T) {
	_, err := stress.Run(stress.Config{
		Workers:  2,
		Duration: 5 * time.Millisecond,
		Clock:    coarse.Now,
		Pinner:   failPinner{},
		Cores:    []counter.CoreID{0},
	})
	if err == nil {
		t.Fatal("pin failure not reported")
	}
}

func BenchmarkRun(b *testing.B) {
	var c atomic.Uint64
	for i := 0; i < b.N; i++ {
		if _, err := stress.Run(stress.Config{
			Workers:  2,
			Duration: time.Millisecond,
			Clock:    func() uint64 { return c.Add(1) },
		}); err != nil {
			b.Fatal(err)
		}
	}
}
