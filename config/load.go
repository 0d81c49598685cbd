package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load builds a Config from an optional YAML file plus the environment.
// Precedence, lowest to highest: built-in defaults, file values, env vars.
// An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
		}

		expanded := ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// FromEnv builds a Config from the environment and defaults only.
func FromEnv() (*Config, error) {
	return Load("")
}
