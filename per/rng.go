package per

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === ExperimentKey ===

// ExperimentKey uniquely identifies a reproducible experiment.
// Two experiments with the same ExperimentKey and identical configuration
// generate bit-for-bit identical circuits.
type ExperimentKey int64

// NewExperimentKey creates an ExperimentKey from a seed value.
func NewExperimentKey(seed int64) ExperimentKey {
	return ExperimentKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemTomography seeds benchmark-instance generation.
	SubsystemTomography = "tomography"

	// SubsystemMitigation seeds PER-instance generation.
	SubsystemMitigation = "mitigation"

	// SubsystemExecutor seeds the reference simulator.
	SubsystemExecutor = "executor"
)

// SubsystemInstance returns the subsystem name for instance N of a parent
// subsystem, e.g. "tomography/instance_12".
func SubsystemInstance(parent string, id int) string {
	return fmt.Sprintf("%s/instance_%d", parent, id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: ForSubsystem is NOT thread-safe and must be called from a
// single goroutine. Derive touches no shared state and may be called
// concurrently; each returned *rand.Rand belongs to its caller.
type PartitionedRNG struct {
	key        ExperimentKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from an ExperimentKey.
func NewPartitionedRNG(key ExperimentKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := p.Derive(name)
	p.subsystems[name] = rng
	return rng
}

// Derive returns a fresh, uncached RNG seeded for name. Used for per-instance
// streams, where caching one generator per instance would only cost memory.
func (p *PartitionedRNG) Derive(name string) *rand.Rand {
	return rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
}

// Key returns the ExperimentKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() ExperimentKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
