package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRunConfig reads and parses a YAML run configuration file.
// Fields missing from the file keep the defaults of DefaultConfig(PolicyGPS).
//
//	policy: drr
//	rate: 1
//	quantum: 1500
//	quantum_by_weight: true
//	deficit_mode: reset
//	weights:
//	  1: 2.0
//	quanta:
//	  3: 3000
func LoadRunConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	cfg := DefaultConfig(PolicyGPS)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration as YAML, so a run can be reproduced exactly.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling run config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run config: %w", err)
	}
	return nil
}
