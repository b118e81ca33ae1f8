package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/fairqueue/fqsim/sim"
	"gopkg.in/yaml.v3"
)

// Size distributions accepted by FlowSpec.Sizes.
const (
	SizeFixed   = "fixed"
	SizeUniform = "uniform"
)

// GeneratorSpec describes a synthetic workload. Loaded from YAML via
// LoadGeneratorSpec(path).
//
//	seed: 42
//	horizon: 10000
//	flows:
//	  - id: 1
//	    rate: 0.002
//	    weight: 2
//	    sizes: {type: uniform, min: 100, max: 1500}
type GeneratorSpec struct {
	Seed    int64      `yaml:"seed"`
	Horizon float64    `yaml:"horizon"`           // arrivals at or after the horizon are not generated
	Packets int        `yaml:"packets,omitempty"` // per-flow cap, 0 = unlimited
	Flows   []FlowSpec `yaml:"flows"`
}

// FlowSpec defines one flow's arrival process.
type FlowSpec struct {
	ID     sim.FlowID `yaml:"id"`
	Rate   float64    `yaml:"rate"`             // packets per time unit (Poisson)
	Weight float64    `yaml:"weight,omitempty"` // 0 = default weight
	Start  float64    `yaml:"start,omitempty"`  // first instant the flow may send
	Sizes  SizeSpec   `yaml:"sizes"`
}

// SizeSpec is a packet size distribution in bits.
type SizeSpec struct {
	Type string `yaml:"type"` // "fixed" or "uniform"
	Size int64  `yaml:"size,omitempty"`
	Min  int64  `yaml:"min,omitempty"`
	Max  int64  `yaml:"max,omitempty"`
}

// LoadGeneratorSpec reads and parses a YAML generator spec.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadGeneratorSpec(path string) (*GeneratorSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading generator spec: %w", err)
	}
	var spec GeneratorSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing generator spec: %w", err)
	}
	return &spec, nil
}

// Validate reports values Generate cannot honor.
func (s *GeneratorSpec) Validate() error {
	if !(s.Horizon > 0) || math.IsInf(s.Horizon, 0) {
		return fmt.Errorf("horizon must be positive and finite, got %g", s.Horizon)
	}
	if s.Packets < 0 {
		return fmt.Errorf("packets must be non-negative, got %d", s.Packets)
	}
	if len(s.Flows) == 0 {
		return fmt.Errorf("at least one flow is required")
	}
	seen := make(map[sim.FlowID]bool, len(s.Flows))
	for i, f := range s.Flows {
		if seen[f.ID] {
			return fmt.Errorf("flows[%d]: duplicate flow id %d", i, f.ID)
		}
		seen[f.ID] = true
		if f.Rate < 0 || math.IsNaN(f.Rate) || math.IsInf(f.Rate, 0) {
			return fmt.Errorf("flows[%d]: rate must be non-negative and finite, got %g", i, f.Rate)
		}
		if f.Weight < 0 || math.IsNaN(f.Weight) || math.IsInf(f.Weight, 0) {
			return fmt.Errorf("flows[%d]: weight must be non-negative, got %g", i, f.Weight)
		}
		if f.Start < 0 || math.IsNaN(f.Start) {
			return fmt.Errorf("flows[%d]: start must be non-negative, got %g", i, f.Start)
		}
		if err := f.Sizes.Validate(); err != nil {
			return fmt.Errorf("flows[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks a size distribution.
func (s SizeSpec) Validate() error {
	switch s.Type {
	case SizeFixed, "":
		if s.Size <= 0 {
			return fmt.Errorf("fixed size must be positive, got %d", s.Size)
		}
	case SizeUniform:
		if s.Min <= 0 || s.Max < s.Min {
			return fmt.Errorf("uniform sizes need 0 < min <= max, got [%d, %d]", s.Min, s.Max)
		}
	default:
		return fmt.Errorf("unknown size distribution %q", s.Type)
	}
	return nil
}

// LargestPacket returns the biggest packet any flow of the spec can produce.
func (s *GeneratorSpec) LargestPacket() int64 {
	var largest int64
	for _, f := range s.Flows {
		largest = max(largest, f.Sizes.Largest())
	}
	return largest
}

// Largest returns the biggest packet the distribution can produce.
func (s SizeSpec) Largest() int64 {
	if s.Type == SizeUniform {
		return s.Max
	}
	return s.Size
}
