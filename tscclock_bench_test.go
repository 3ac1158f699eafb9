package tscclock_test

import (
	"testing"
	"time"

	"github.com/randomizedcoder/tscclock"
)

// Long interval so Tick() returns false (we're measuring check overhead)
const benchInterval = time.Hour

// Sink variables to prevent compiler from eliminating benchmark loops
var (
	sinkCycles uint64
	sinkTick   bool
	sinkTime   time.Time
)

func BenchmarkNowCycles(b *testing.B) {
	_ = tscclock.NowCycles() // calibrate outside the timer
	b.ReportAllocs()
	b.ResetTimer()

	var v uint64
	for i := 0; i < b.N; i++ {
		v = tscclock.NowCycles()
	}
	sinkCycles = v
}

func BenchmarkNowCycles_Parallel(b *testing.B) {
	_ = tscclock.NowCycles()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var v uint64
		for pb.Next() {
			v = tscclock.NowCycles()
		}
		sinkCycles = v
	})
}

func BenchmarkTimeNow(b *testing.B) {
	b.ReportAllocs()

	var v time.Time
	for i := 0; i < b.N; i++ {
		v = time.Now()
	}
	sinkTime = v
}

func BenchmarkInstant_Elapsed(b *testing.B) {
	start := tscclock.Now()
	b.ReportAllocs()
	b.ResetTimer()

	var d time.Duration
	for i := 0; i < b.N; i++ {
		d = start.Elapsed()
	}
	sinkCycles = uint64(d)
}

func BenchmarkTicker_Tick(b *testing.B) {
	t := tscclock.NewTicker(benchInterval)
	b.ReportAllocs()
	b.ResetTimer()

	var result bool
	for i := 0; i < b.N; i++ {
		result = t.Tick()
	}
	sinkTick = result
}

func BenchmarkStdTicker_Tick(b *testing.B) {
	t := time.NewTicker(benchInterval)
	defer t.Stop()
	b.ReportAllocs()
	b.ResetTimer()

	var result bool
	for i := 0; i < b.N; i++ {
		select {
		case <-t.C:
			result = true
		default:
			result = false
		}
	}
	sinkTick = result
}
