// Package config loads lifereg settings from a YAML file with LIFEREG_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"lifereg/internal/registry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIFEREG_"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the full lifereg configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" envPrefix:"STORE_"`
	Registry   RegistryConfig   `yaml:"registry" envPrefix:"REGISTRY_"`
	Simulation SimulationConfig `yaml:"simulation" envPrefix:"SIM_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // memory, sqlite
	Path   string `yaml:"path" env:"PATH"`
}

// RegistryConfig tunes the registry service.
type RegistryConfig struct {
	Capacity        int `yaml:"capacity" env:"CAPACITY"`
	MaxAdvanceSteps int `yaml:"max_advance_steps" env:"MAX_ADVANCE_STEPS"`
}

// SimulationConfig tunes history computation for simulate and scan.
type SimulationConfig struct {
	Batch int `yaml:"batch" env:"BATCH"`
	Limit int `yaml:"limit" env:"LIMIT"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"` // debug, info, warn, error
	JSON  bool   `yaml:"json" env:"JSON"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "lifereg.db",
		},
		Registry: RegistryConfig{
			Capacity:        registry.DefaultCapacity,
			MaxAdvanceSteps: registry.DefaultMaxAdvanceSteps,
		},
		Simulation: SimulationConfig{
			Batch: 100,
			Limit: 1001,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load reads path over the defaults and then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid store driver: %q (valid: %s, %s)", c.Store.Driver, DriverMemory, DriverSQLite)
	}
	if c.Registry.Capacity < 1 || c.Registry.Capacity > registry.MaxCapacity {
		return fmt.Errorf("registry.capacity must be in [1, %d], got %d", registry.MaxCapacity, c.Registry.Capacity)
	}
	if c.Registry.MaxAdvanceSteps < 1 {
		return fmt.Errorf("registry.max_advance_steps must be positive, got %d", c.Registry.MaxAdvanceSteps)
	}
	if c.Simulation.Batch < 1 || c.Simulation.Limit < 1 {
		return errors.New("simulation.batch and simulation.limit must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}
