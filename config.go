package orcaparse

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/nzhan/orcaparse/extract"
)

// Config is a run configuration. Filter maps property keys to L2-norm
// thresholds; files whose property exceeds its threshold are dropped.
type Config struct {
	Properties  []string           `toml:"properties"`
	Database    string             `toml:"database"`
	BufferSize  int                `toml:"buffer_size"`
	MaskCharges bool               `toml:"mask_charges"`
	Filter      map[string]float64 `toml:"filter"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Properties: []string{extract.Energy, extract.Forces},
		Database:   "dataset.db",
		BufferSize: 10,
	}
}

// LoadConfig reads a TOML run configuration, filling unset fields with
// defaults.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	cont, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(cont, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", filename, err)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10
	}
	return cfg, nil
}
