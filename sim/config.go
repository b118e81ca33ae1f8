package sim

import (
	"math"

	"github.com/fairqueue/fqsim/sim/trace"
)

// DeficitMode selects what DRR does with leftover credit when a flow drains.
type DeficitMode string

const (
	// DeficitReset zeroes the deficit when a flow drains and on reactivation.
	DeficitReset DeficitMode = "reset"
	// DeficitRetain carries leftover credit across idle periods.
	DeficitRetain DeficitMode = "retain"
)

// ValidDeficitModes is the set of recognized deficit modes. Empty means reset.
var ValidDeficitModes = map[DeficitMode]bool{"": true, DeficitReset: true, DeficitRetain: true}

// DefaultQuantum is the DRR quantum used when none is configured, in bits.
const DefaultQuantum int64 = 500

// Config groups the parameters of a single simulation run.
// The policy is fixed for the lifetime of the Simulator built from it.
type Config struct {
	Policy          PolicyKind         `yaml:"policy"`            // "gps", "rr" or "drr"
	Rate            float64            `yaml:"rate"`              // service rate in bits per time unit (> 0)
	Quantum         int64              `yaml:"quantum"`           // DRR base quantum in bits (0 = sized at Load to cover every packet)
	QuantumByWeight bool               `yaml:"quantum_by_weight"` // DRR quantum = round(weight × Quantum)
	DeficitMode     DeficitMode        `yaml:"deficit_mode"`      // DRR leftover-credit handling
	Horizon         float64            `yaml:"horizon"`           // stop once the next event lies past it (0 = unbounded)
	MaxPacketSize   int64              `yaml:"max_packet_size"`   // largest admissible packet (0 = derived from the trace)
	Weights         map[FlowID]float64 `yaml:"weights"`           // per-flow weight overrides
	Quanta          map[FlowID]int64   `yaml:"quanta"`            // per-flow DRR quantum overrides
	TraceLevel      string             `yaml:"trace_level"`       // "none" or "decisions"
}

// DefaultConfig returns a unit-rate configuration for the given policy.
func DefaultConfig(kind PolicyKind) Config {
	return Config{
		Policy:      kind,
		Rate:        1,
		Quantum:     DefaultQuantum,
		DeficitMode: DeficitReset,
	}
}

// Validate checks policy names and parameter ranges. Per-flow checks that
// depend on the trace (quantum coverage) happen in Simulator.Load.
func (c *Config) Validate() error {
	if !IsValidPolicy(string(c.Policy)) || c.Policy == "" {
		return configErr("policy", c.Policy, "unknown scheduling policy")
	}
	if !(c.Rate > 0) || math.IsInf(c.Rate, 0) {
		return configErr("rate", c.Rate, "service rate must be positive and finite")
	}
	if !ValidDeficitModes[c.DeficitMode] {
		return configErr("deficit_mode", c.DeficitMode, "unknown deficit mode")
	}
	if c.Horizon < 0 || math.IsNaN(c.Horizon) {
		return configErr("horizon", c.Horizon, "horizon must be non-negative")
	}
	if c.MaxPacketSize < 0 {
		return configErr("max_packet_size", c.MaxPacketSize, "max packet size must be non-negative")
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return configErr("trace_level", c.TraceLevel, "unknown trace level")
	}
	for id, w := range c.Weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return flowConfigErr(id, "weight", w, "weight must be positive")
		}
	}
	if c.Policy == PolicyDRR {
		if c.Quantum < 0 {
			return configErr("quantum", c.Quantum, "quantum must not be negative")
		}
		for id, q := range c.Quanta {
			if q <= 0 {
				return flowConfigErr(id, "quantum", q, "quantum must be positive")
			}
		}
	}
	return nil
}

// WeightFor resolves a flow's weight: a configured override wins, then the
// weight carried by the arrival record, then 1.
func (c *Config) WeightFor(id FlowID, recordWeight float64) float64 {
	if w, ok := c.Weights[id]; ok {
		return w
	}
	if recordWeight != 0 {
		return recordWeight
	}
	return 1
}

// QuantumFor resolves a flow's DRR quantum: a per-flow override wins, then the
// weight-scaled base quantum when QuantumByWeight is set, then the base quantum.
func (c *Config) QuantumFor(id FlowID, weight float64) int64 {
	if q, ok := c.Quanta[id]; ok {
		return q
	}
	if c.QuantumByWeight {
		return int64(math.Round(weight * float64(c.Quantum)))
	}
	return c.Quantum
}

func (c *Config) deficitMode() DeficitMode {
	if c.DeficitMode == "" {
		return DeficitReset
	}
	return c.DeficitMode
}
