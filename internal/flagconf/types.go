// Package flagconf defines the feature flag configuration model:
// variations, targeting rules, rollout strategies, and the parsing
// and validation of flag configuration files.
package flagconf

// ValueType enumerates the value types a flag can resolve to.
type ValueType string

// Flag value types. Integer and float flags both report "number",
// matching the type taxonomy used by flag evaluation SDKs.
const (
	TypeBoolean ValueType = "boolean"
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeObject  ValueType = "object"
	TypeUnknown ValueType = "unknown"
)

// Flag is the configuration of a single feature flag.
type Flag struct {
	// Variations maps a variation name to the value returned when
	// that variation is selected. Values may be booleans, strings,
	// numbers, or arbitrary mappings, but must share one type.
	Variations map[string]any `yaml:"variations,omitempty" json:"variations,omitempty"`

	// Targeting rules are evaluated in order before the default
	// rule; the first matching rule wins.
	Targeting []TargetingRule `yaml:"targeting,omitempty" json:"targeting,omitempty"`

	// DefaultRule applies when no targeting rule matches.
	DefaultRule *DefaultRule `yaml:"defaultRule,omitempty" json:"defaultRule,omitempty"`

	// ScheduledRollout lists configuration updates applied once
	// their date has passed, in order.
	ScheduledRollout []ScheduledStep `yaml:"scheduledRollout,omitempty" json:"scheduledRollout,omitempty"`

	// Experimentation bounds the flag to a time window; outside it
	// the flag resolves to the caller's default.
	Experimentation *Experimentation `yaml:"experimentation,omitempty" json:"experimentation,omitempty"`

	TrackEvents *bool          `yaml:"trackEvents,omitempty" json:"trackEvents,omitempty"`
	Disable     *bool          `yaml:"disable,omitempty" json:"disable,omitempty"`
	Version     string         `yaml:"version,omitempty" json:"version,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// TargetingRule selects a variation for contexts matching a query.
type TargetingRule struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Query is a rule expression over evaluation context attributes,
	// e.g. `beta eq true and country eq "NL"`.
	Query string `yaml:"query,omitempty" json:"query,omitempty"`

	// Exactly one of Variation or Percentage should be set.
	Variation  string             `yaml:"variation,omitempty" json:"variation,omitempty"`
	Percentage map[string]float64 `yaml:"percentage,omitempty" json:"percentage,omitempty"`

	Disable *bool `yaml:"disable,omitempty" json:"disable,omitempty"`
}

// DefaultRule resolves a flag when no targeting rule matches.
type DefaultRule struct {
	Variation          string              `yaml:"variation,omitempty" json:"variation,omitempty"`
	Percentage         map[string]float64  `yaml:"percentage,omitempty" json:"percentage,omitempty"`
	ProgressiveRollout *ProgressiveRollout `yaml:"progressiveRollout,omitempty" json:"progressiveRollout,omitempty"`
}

// ProgressiveRollout ramps a variation's share of traffic between
// two points in time.
type ProgressiveRollout struct {
	Initial *ProgressiveStep `yaml:"initial,omitempty" json:"initial,omitempty"`
	End     *ProgressiveStep `yaml:"end,omitempty" json:"end,omitempty"`
}

// ProgressiveStep is one endpoint of a progressive rollout.
type ProgressiveStep struct {
	Variation  string  `yaml:"variation,omitempty" json:"variation,omitempty"`
	Percentage float64 `yaml:"percentage,omitempty" json:"percentage,omitempty"`

	// Date in RFC 3339 format.
	Date string `yaml:"date,omitempty" json:"date,omitempty"`
}

// ScheduledStep is a partial flag update applied at a given date.
// Only the fields present in the step override the flag.
type ScheduledStep struct {
	// Date in RFC 3339 format.
	Date string `yaml:"date,omitempty" json:"date,omitempty"`

	Variations  map[string]any  `yaml:"variations,omitempty" json:"variations,omitempty"`
	Targeting   []TargetingRule `yaml:"targeting,omitempty" json:"targeting,omitempty"`
	DefaultRule *DefaultRule    `yaml:"defaultRule,omitempty" json:"defaultRule,omitempty"`
	Disable     *bool           `yaml:"disable,omitempty" json:"disable,omitempty"`
}

// Experimentation bounds flag evaluation to [Start, End).
type Experimentation struct {
	// Start and End in RFC 3339 format.
	Start string `yaml:"start,omitempty" json:"start,omitempty"`
	End   string `yaml:"end,omitempty" json:"end,omitempty"`
}

// FlagSet maps flag keys to their configuration.
type FlagSet map[string]Flag

// Keys returns the flag keys in the set, sorted.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

// Disabled reports whether the flag is explicitly disabled.
func (f Flag) Disabled() bool {
	return f.Disable != nil && *f.Disable
}

// TracksEvents reports whether evaluation events should be recorded
// for the flag. Defaults to true when unset.
func (f Flag) TracksEvents() bool {
	return f.TrackEvents == nil || *f.TrackEvents
}

// Type infers the flag's value type from its variation values.
// Returns TypeUnknown when variations are empty or mix types.
func (f Flag) Type() ValueType {
	t := TypeUnknown
	for _, v := range f.Variations {
		vt := typeOf(v)
		if t == TypeUnknown {
			t = vt
			continue
		}
		if vt != t {
			return TypeUnknown
		}
	}
	return t
}

// typeOf maps a variation value to its flag value type. YAML and
// JSON decoders disagree on integer representation (int vs float64),
// so every numeric Go type counts as a number.
func typeOf(v any) ValueType {
	switch v.(type) {
	case bool:
		return TypeBoolean
	case string:
		return TypeString
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return TypeNumber
	case map[string]any, map[any]any, []any:
		return TypeObject
	default:
		return TypeUnknown
	}
}

// sortStrings is an insertion sort; flag sets are small.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
