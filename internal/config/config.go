// Package config loads scheduler tunables from a YAML file: execution-unit
// counts per class, an II search ceiling, and output format defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the scheduler's resource model and output defaults. Of
// these, only the II ceiling is passed to the scheduling algorithm
// (internal/schedule).
type Config struct {
	// Execution-unit counts per class. The spec's five-slot VLIW (2 ALU, 1
	// Mulu, 1 Mem, 1 Branch) is the default. They are loaded and validated
	// but not read by the scheduler: bundle capacity and the resource-bound
	// II always use the fixed 2/1/1/1 layout.
	ALUUnits    int `yaml:"aluUnits"`
	MuluUnits   int `yaml:"muluUnits"`
	MemUnits    int `yaml:"memUnits"`
	BranchUnits int `yaml:"branchUnits"`

	// MaxII is the defensive II search ceiling (SchedulingError beyond it).
	// Zero means no ceiling beyond the body-length bound the scheduler
	// already guarantees terminates.
	MaxII int `yaml:"maxII"`

	// OutputFormat is "json" or "csv"; see cmd/vliwsched's -format flag.
	OutputFormat string `yaml:"outputFormat"`
}

// LoadConfig loads scheduler tunables from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfig checks if the configuration is valid.
func validateConfig(cfg *Config) error {
	if cfg.ALUUnits <= 0 {
		return fmt.Errorf("ALU unit count must be positive")
	}
	if cfg.MuluUnits <= 0 {
		return fmt.Errorf("Mulu unit count must be positive")
	}
	if cfg.MemUnits <= 0 {
		return fmt.Errorf("Mem unit count must be positive")
	}
	if cfg.BranchUnits <= 0 {
		return fmt.Errorf("Branch unit count must be positive")
	}
	if cfg.MaxII < 0 {
		return fmt.Errorf("II ceiling must not be negative")
	}

	validFormats := map[string]bool{"json": true, "csv": true}
	if !validFormats[cfg.OutputFormat] {
		return fmt.Errorf("unsupported output format: %s", cfg.OutputFormat)
	}

	return nil
}

// DefaultConfig returns the VLIW470 five-slot resource model from spec §1:
// two ALU, one Mulu, one Mem, one Branch, no II ceiling, JSON output.
func DefaultConfig() *Config {
	return &Config{
		ALUUnits:     2,
		MuluUnits:    1,
		MemUnits:     1,
		BranchUnits:  1,
		MaxII:        0,
		OutputFormat: "json",
	}
}
