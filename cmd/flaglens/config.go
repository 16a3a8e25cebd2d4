package main

import (
	"github.com/unbound-force/flaglens/internal/config"
)

// loadConfig reads the project configuration and applies CLI
// threshold overrides. A negative override is the "not provided"
// sentinel and leaves the configured value in place.
func loadConfig(path string, maxMissing, maxUnused int) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if maxMissing >= 0 {
		cfg.Audit.MaxMissing = maxMissing
	}
	if maxUnused >= 0 {
		cfg.Audit.MaxUnused = maxUnused
	}
	return cfg, nil
}
