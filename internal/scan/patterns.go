// Package scan discovers feature flag evaluation call sites in a
// source tree by matching the call patterns of flag evaluation SDKs
// across languages.
package scan

import (
	"regexp"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

// Pattern pairs a compiled call-site regex with the flag value type
// the call resolves. Each regex captures the flag key in group 1.
type Pattern struct {
	Regex *regexp.Regexp
	Type  flagconf.ValueType
}

// patterns returns the compiled call-site patterns for every
// supported SDK. The list is append-only: removing a pattern makes
// previously discovered flags vanish from manifests.
func patterns() []Pattern {
	raw := []struct {
		pattern string
		typ     flagconf.ValueType
	}{
		// Go: ffclient-style package-level variation calls.
		{`BoolVariation\(\s*"([^"]+)"`, flagconf.TypeBoolean},
		{`StringVariation\(\s*"([^"]+)"`, flagconf.TypeString},
		{`IntVariation\(\s*"([^"]+)"`, flagconf.TypeNumber},
		{`Float64Variation\(\s*"([^"]+)"`, flagconf.TypeNumber},
		{`JSONVariation\(\s*"([^"]+)"`, flagconf.TypeObject},
		{`JSONArrayVariation\(\s*"([^"]+)"`, flagconf.TypeObject},

		// Go: OpenFeature SDK. The key is the second argument, after
		// the context.
		{`\.BooleanValue\([^,]*,\s*"([^"]+)"`, flagconf.TypeBoolean},
		{`\.StringValue\([^,]*,\s*"([^"]+)"`, flagconf.TypeString},
		{`\.FloatValue\([^,]*,\s*"([^"]+)"`, flagconf.TypeNumber},
		{`\.IntValue\([^,]*,\s*"([^"]+)"`, flagconf.TypeNumber},
		{`\.ObjectValue\([^,]*,\s*"([^"]+)"`, flagconf.TypeObject},

		// JS/TS/Java/Kotlin/Swift: OpenFeature SDK, double or single
		// quoted keys.
		{`\.getBooleanValue\(\s*["']([^"']+)["']`, flagconf.TypeBoolean},
		{`\.getStringValue\(\s*["']([^"']+)["']`, flagconf.TypeString},
		{`\.getNumberValue\(\s*["']([^"']+)["']`, flagconf.TypeNumber},
		{`\.getObjectValue\(\s*["']([^"']+)["']`, flagconf.TypeObject},
		{`\.getBooleanDetails\(\s*["']([^"']+)["']`, flagconf.TypeBoolean},
		{`\.getStringDetails\(\s*["']([^"']+)["']`, flagconf.TypeString},
		{`\.getNumberDetails\(\s*["']([^"']+)["']`, flagconf.TypeNumber},
		{`\.getObjectDetails\(\s*["']([^"']+)["']`, flagconf.TypeObject},

		// React hooks (OpenFeature React SDK).
		{`useBooleanFlagValue\(\s*["']([^"']+)["']`, flagconf.TypeBoolean},
		{`useStringFlagValue\(\s*["']([^"']+)["']`, flagconf.TypeString},
		{`useNumberFlagValue\(\s*["']([^"']+)["']`, flagconf.TypeNumber},
		{`useObjectFlagValue\(\s*["']([^"']+)["']`, flagconf.TypeObject},
		{`useBooleanFlagDetails\(\s*["']([^"']+)["']`, flagconf.TypeBoolean},
		{`useStringFlagDetails\(\s*["']([^"']+)["']`, flagconf.TypeString},
		{`useNumberFlagDetails\(\s*["']([^"']+)["']`, flagconf.TypeNumber},
		{`useObjectFlagDetails\(\s*["']([^"']+)["']`, flagconf.TypeObject},

		// Python: OpenFeature SDK.
		{`\.get_boolean_value\(\s*["']([^"']+)["']`, flagconf.TypeBoolean},
		{`\.get_string_value\(\s*["']([^"']+)["']`, flagconf.TypeString},
		{`\.get_float_value\(\s*["']([^"']+)["']`, flagconf.TypeNumber},
		{`\.get_integer_value\(\s*["']([^"']+)["']`, flagconf.TypeNumber},
		{`\.get_object_value\(\s*["']([^"']+)["']`, flagconf.TypeObject},

		// .NET: OpenFeature SDK.
		{`\.GetBooleanValueAsync\(\s*"([^"]+)"`, flagconf.TypeBoolean},
		{`\.GetStringValueAsync\(\s*"([^"]+)"`, flagconf.TypeString},
		{`\.GetDoubleValueAsync\(\s*"([^"]+)"`, flagconf.TypeNumber},
		{`\.GetIntegerValueAsync\(\s*"([^"]+)"`, flagconf.TypeNumber},
		{`\.GetObjectValueAsync\(\s*"([^"]+)"`, flagconf.TypeObject},

		// Ruby: OpenFeature SDK.
		{`\.fetch_boolean_value\(\s*["']([^"']+)["']`, flagconf.TypeBoolean},
		{`\.fetch_string_value\(\s*["']([^"']+)["']`, flagconf.TypeString},
		{`\.fetch_number_value\(\s*["']([^"']+)["']`, flagconf.TypeNumber},
		{`\.fetch_object_value\(\s*["']([^"']+)["']`, flagconf.TypeObject},
	}

	compiled := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		compiled = append(compiled, Pattern{
			Regex: regexp.MustCompile(r.pattern),
			Type:  r.typ,
		})
	}
	return compiled
}

// scannableExtensions lists the file extensions worth scanning.
var scannableExtensions = map[string]bool{
	".go":    true,
	".js":    true,
	".jsx":   true,
	".ts":    true,
	".tsx":   true,
	".py":    true,
	".java":  true,
	".kt":    true,
	".swift": true,
	".cs":    true,
	".rb":    true,
	".php":   true,
}
