// Package coarse is the fallback time source used when the cycle counter
// cannot be trusted.
package coarse

import (
	_ "unsafe" // Required for go:linkname
)

// nanotime returns the runtime's monotonic clock in nanoseconds.
//
// Note: This uses go:linkname to access an internal runtime function.
// It may break in future Go versions, though it has been stable.
//
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// Monotonic returns the runtime's monotonic clock in nanoseconds. It is
// precise, and is the clock calibration measures the counter against.
func Monotonic() int64 {
	return nanotime()
}

// Runtime adapts Monotonic to an interface with a Nanotime method.
type Runtime struct{}

// Nanotime returns Monotonic().
func (Runtime) Nanotime() int64 {
	return nanotime()
}
