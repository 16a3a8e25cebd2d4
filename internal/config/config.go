// Package config loads the optional .flaglens.yaml project
// configuration: per-repo defaults for the flag file location, scan
// excludes, audit thresholds, and the evaluation server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no
// explicit config path is given.
const DefaultFileName = ".flaglens.yaml"

// Config is the project configuration.
type Config struct {
	// FlagFile is the default flag configuration file for audit,
	// lint, and eval.
	FlagFile string `yaml:"flagFile"`

	Scan   Scan   `yaml:"scan"`
	Audit  Audit  `yaml:"audit"`
	Server Server `yaml:"server"`
}

// Scan configures the call-site scanner.
type Scan struct {
	Project  string   `yaml:"project"`
	Excludes []string `yaml:"excludes"`
}

// Audit configures CI thresholds. -1 means report-only.
type Audit struct {
	MaxMissing     int  `yaml:"maxMissing"`
	MaxUnused      int  `yaml:"maxUnused"`
	FailOnMismatch bool `yaml:"failOnMismatch"`
}

// Server configures the evaluation API server. Interval is the
// flag-source poll interval in seconds.
type Server struct {
	Addr     string `yaml:"addr"`
	APIKey   string `yaml:"apiKey"`
	Interval int    `yaml:"interval"`
}

// DefaultConfig returns the configuration used when no project file
// exists.
func DefaultConfig() *Config {
	return &Config{
		FlagFile: "flags.yaml",
		Scan:     Scan{Project: "default"},
		Audit:    Audit{MaxMissing: -1, MaxUnused: -1},
		Server:   Server{Addr: ":1031", Interval: 60},
	}
}

// Load reads the project configuration. An empty path means
// DefaultFileName in the working directory, and a missing default
// file is not an error. FLAGLENS_ADDR and FLAGLENS_API_KEY override
// the server section after the file is read.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	case explicit || !os.IsNotExist(err):
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FLAGLENS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FLAGLENS_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
}

func (c *Config) validate(path string) error {
	if c.Server.Interval <= 0 {
		return fmt.Errorf("config file %s: server.interval must be positive", path)
	}
	if c.Audit.MaxMissing < -1 {
		return fmt.Errorf("config file %s: audit.maxMissing must be -1 (report-only) or >= 0", path)
	}
	if c.Audit.MaxUnused < -1 {
		return fmt.Errorf("config file %s: audit.maxUnused must be -1 (report-only) or >= 0", path)
	}
	return nil
}
