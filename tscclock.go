// Package tscclock is a low-overhead monotonic clock for instrumentation.
//
// On x86 Linux hosts whose time stamp counter is trustworthy, readings
// come straight from the TSC with no system call. The package decides
// once per process, on first use, whether the TSC can be trusted:
//   - globally stable: the kernel uses the TSC as its clock source, so one
//     offset serves every core
//   - per-core stable: the CPU has a constant, non-stop TSC and RDTSCP;
//     each core is calibrated on a pinned thread and gets its own offset
//   - unstable: readings fall back to the coarse OS monotonic clock
//
// First use blocks for calibration, typically tens of milliseconds. After
// that every function here is lock-free and allocation-free.
//
// Set TSCCLOCK_DISABLE=true to always use the coarse clock.
package tscclock

import "github.com/randomizedcoder/tscclock/internal/clockstate"

// NowCycles returns a monotonically increasing value in the clock's
// private unit: TSC ticks when the hardware clock is available,
// nanoseconds otherwise. Multiply by NanosPerCycle for nanoseconds.
func NowCycles() uint64 {
	return clockstate.Get().NowCycles()
}

// NanosPerCycle returns the nanoseconds per NowCycles unit: 1e9 divided by
// the TSC rate, or exactly 1.0 on the coarse clock.
func NanosPerCycle() float64 {
	return clockstate.Get().NanosPerCycle()
}

// IsHardwareClockAvailable reports whether NowCycles reads the TSC.
func IsHardwareClockAvailable() bool {
	return clockstate.Get().HardwareAvailable()
}

// Level describes the classification, e.g. "globally-stable".
func Level() string {
	return clockstate.Get().Level().String()
}
