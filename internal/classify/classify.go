// Package classify decides, from OS-exposed configuration, how far the
// cycle counter can be trusted.
package classify

import (
	"slices"

	"k8s.io/klog/v2"
)

// Level is the trust placed in the cycle counter.
type Level int

const (
	// Unstable means the counter must not be used.
	Unstable Level = iota
	// PerCoreStable means each core runs the counter at a constant rate but
	// cores are not synchronized; reads need a per-core offset.
	PerCoreStable
	// GloballyStable means the kernel keeps the counter synchronized across
	// all cores and one offset serves every core.
	GloballyStable
)

func (l Level) String() string {
	switch l {
	case GloballyStable:
		return "globally-stable"
	case PerCoreStable:
		return "per-core-stable"
	default:
		return "unstable"
	}
}

// Stable reports whether the counter is usable at either tier.
func (l Level) Stable() bool {
	return l != Unstable
}

// Probe exposes the signals the classifier inspects.
type Probe interface {
	// ClockSource returns the kernel's selected clock source.
	ClockSource() (string, error)
	// CPUFlags returns the CPU feature flags advertised by the kernel.
	CPUFlags() ([]string, error)
	// CounterSupportsCoreID reports whether the counter can be read
	// together with the executing core id.
	CounterSupportsCoreID() bool
}

// hardwareClockSource is the kernel's name for the TSC clock source.
const hardwareClockSource = "tsc"

// perCoreFlags must all be present for per-core use: a constant rate, no
// stop in deep C-states, and RDTSCP for core-attributed reads.
var perCoreFlags = []string{"constant_tsc", "nonstop_tsc", "rdtscp"}

// Classify returns the stability level. Any error reading configuration
// counts as evidence of instability; Classify never fails.
func Classify(p Probe) Level {
	src, err := p.ClockSource()
	if err != nil {
		klog.V(1).Infof("clock source unreadable: %v", err)
		return Unstable
	}
	if src == hardwareClockSource {
		return GloballyStable
	}

	flags, err := p.CPUFlags()
	if err != nil {
		klog.V(1).Infof("cpu flags unreadable: %v", err)
		return Unstable
	}
	for _, f := range perCoreFlags {
		if !slices.Contains(flags, f) {
			klog.V(1).Infof("cpu lacks %q, clock source %q: counter unstable", f, src)
			return Unstable
		}
	}
	if !p.CounterSupportsCoreID() {
		klog.V(1).Info("counter cannot report core id: counter unstable")
		return Unstable
	}
	return PerCoreStable
}
