//go:build amd64

package counter

import "github.com/klauspost/cpuid"

// rdtsc reads the CPU's Time Stamp Counter.
// Implemented in tsc_amd64.s
func rdtsc() uint64

// rdtscp reads the Time Stamp Counter and the IA32_TSC_AUX register
// in one instruction.
// Implemented in tsc_amd64.s
func rdtscp() (tsc uint64, aux uint32)

// Linux programs TSC_AUX with (node << 12) | cpu.
const auxCPUMask = 0xfff

// TSC is the x86 Time Stamp Counter.
//
// Typical cost:
//   - Read(): ~7-10ns (RDTSC)
//   - ReadWithCore(): ~10-30ns (RDTSCP waits for prior instructions)
type TSC struct {
	rdtscp bool
}

var hardware = &TSC{rdtscp: cpuid.CPU.RDTSCP()}

// Hardware returns the TSC source. The boolean is always true on amd64.
func Hardware() (Source, bool) {
	return hardware, true
}

// Read returns the raw TSC value.
func (*TSC) Read() uint64 {
	return rdtsc()
}

// ReadWithCore returns the raw TSC value and the core that produced it.
//
// Must only be called when SupportsCoreID is true; RDTSCP faults on CPUs
// that lack it.
func (*TSC) ReadWithCore() (uint64, CoreID) {
	tsc, aux := rdtscp()
	return tsc, CoreID(aux & auxCPUMask)
}

// SupportsCoreID reports whether the CPU implements RDTSCP.
func (t *TSC) SupportsCoreID() bool {
	return t.rdtscp
}
