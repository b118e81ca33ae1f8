package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey identifies a reproducible synthetic workload. Two workloads
// generated from the same key and parameters are identical.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemWorkload is the RNG stream used for workload-wide draws.
// It uses the master seed directly.
const SubsystemWorkload = "workload"

// SubsystemFlow returns the RNG stream name for one flow's arrivals and sizes.
func SubsystemFlow(id FlowID) string {
	return fmt.Sprintf("flow_%d", id)
}

// PartitionedRNG hands out deterministic, isolated RNG streams by name, so
// adding a flow to a workload does not perturb the draws of the others.
//
// Derivation: the workload stream uses the master seed; every other stream
// uses masterSeed XOR fnv1a64(name).
//
// Not safe for concurrent use.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the RNG for the named stream. Repeated calls with the
// same name return the same instance. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	seed := int64(p.key)
	if name != SubsystemWorkload {
		seed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(seed))
	p.streams[name] = rng
	return rng
}

// ForFlow is shorthand for ForSubsystem(SubsystemFlow(id)).
func (p *PartitionedRNG) ForFlow(id FlowID) *rand.Rand {
	return p.ForSubsystem(SubsystemFlow(id))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
