package flagconf

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the serialization format of a flag file.
type Format string

// Supported flag file formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DetectFormat guesses the format of a flag file from its path,
// falling back to content sniffing when the extension is unknown.
// YAML is the default: every JSON document is also valid YAML, but
// an explicit .json extension keeps error messages honest.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes a flag file in the given format into a FlagSet.
// An empty document yields an empty, non-nil set.
func Parse(data []byte, format Format) (FlagSet, error) {
	var fs FlagSet
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &fs); err != nil {
			return nil, fmt.Errorf("parsing JSON flag file: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &fs); err != nil {
			return nil, fmt.Errorf("parsing YAML flag file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported flag file format %q", format)
	}
	if fs == nil {
		fs = FlagSet{}
	}
	return fs, nil
}

// Encode serializes a FlagSet in the given format.
func (fs FlagSet) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(fs, "", "  ")
	case FormatYAML:
		return yaml.Marshal(fs)
	default:
		return nil, fmt.Errorf("unsupported flag file format %q", format)
	}
}
