// Package manifest defines the flag manifest produced by scans: the
// set of flag keys a codebase references, with types, defaults, and
// call sites, serialized as YAML or JSON.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unbound-force/flaglens/internal/flagconf"
	"github.com/unbound-force/flaglens/internal/scan"
)

// Manifest is the output of a scan run.
type Manifest struct {
	Project  string            `json:"project" yaml:"project"`
	Flags    []scan.Discovered `json:"flags" yaml:"flags"`
	Metadata Metadata          `json:"metadata" yaml:"metadata"`
}

// Metadata records provenance of a scan run.
type Metadata struct {
	App         string `json:"app,omitempty" yaml:"app,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	GeneratedAt string `json:"generatedAt" yaml:"generatedAt"`
}

// New builds a manifest stamped with the current UTC time.
func New(project, app, version string, flags []scan.Discovered) Manifest {
	if flags == nil {
		flags = []scan.Discovered{}
	}
	return Manifest{
		Project: project,
		Flags:   flags,
		Metadata: Metadata{
			App:         app,
			Version:     version,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Encode serializes the manifest in the given format.
func (m Manifest) Encode(format flagconf.Format) ([]byte, error) {
	switch format {
	case flagconf.FormatJSON:
		return json.MarshalIndent(m, "", "  ")
	case flagconf.FormatYAML:
		return yaml.Marshal(m)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
}

// Decode parses a manifest in the given format.
func Decode(data []byte, format flagconf.Format) (Manifest, error) {
	var m Manifest
	switch format {
	case flagconf.FormatJSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("parsing JSON manifest: %w", err)
		}
	case flagconf.FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("parsing YAML manifest: %w", err)
		}
	default:
		return Manifest{}, fmt.Errorf("unsupported manifest format %q", format)
	}
	return m, nil
}

// Load reads a manifest file, detecting the format from its path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest %q: %w", path, err)
	}
	return Decode(data, flagconf.DetectFormat(path, data))
}

// Keys returns the manifest's flag keys in listed order.
func (m Manifest) Keys() []string {
	keys := make([]string, len(m.Flags))
	for i, f := range m.Flags {
		keys[i] = f.Key
	}
	return keys
}

// Find returns the discovered flag with the given key, or nil.
func (m Manifest) Find(key string) *scan.Discovered {
	for i := range m.Flags {
		if m.Flags[i].Key == key {
			return &m.Flags[i]
		}
	}
	return nil
}
