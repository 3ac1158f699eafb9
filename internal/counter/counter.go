// Package counter reads the hardware cycle counter.
//
// The raw instructions live behind a single accessor per architecture
// (see tsc_amd64.s). Everything that calibrates or classifies the counter
// depends only on the Source interface, so it can run against a synthetic
// counter in tests (see package countertest).
package counter

// CoreID identifies one logical CPU as reported by the operating system.
type CoreID uint32

// Source is a free-running cycle counter.
//
// Implementations must be safe for concurrent use from any number of
// goroutines and must not allocate.
type Source interface {
	// Read returns the current counter value.
	Read() uint64

	// ReadWithCore returns the counter value together with the id of the
	// core that executed the read. Both values come from one instruction,
	// so a migration between cores cannot tear the pair.
	ReadWithCore() (uint64, CoreID)

	// SupportsCoreID reports whether ReadWithCore returns a meaningful core id.
	SupportsCoreID() bool
}
