package flagconf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

func boolPtr(b bool) *bool { return &b }

// sampleYAML is a flag file exercising each flag value type with the
// keys and defaults the scanner fixtures use.
const sampleYAML = `
dark-mode:
  variations:
    enabled: true
    disabled: false
  defaultRule:
    variation: disabled
welcome-msg:
  variations:
    greeting: hello
    formal: good day
  defaultRule:
    variation: greeting
sample-rate:
  variations:
    low: 0.5
    high: 0.9
  defaultRule:
    percentage:
      low: 80
      high: 20
retry-count:
  variations:
    few: 3
    many: 10
  defaultRule:
    variation: few
app-config:
  variations:
    default: {}
    tuned:
      maxItems: 50
  defaultRule:
    variation: default
`

func TestParse_YAML(t *testing.T) {
	fs, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(fs) != 5 {
		t.Fatalf("expected 5 flags, got %d", len(fs))
	}

	wantTypes := map[string]ValueType{
		"dark-mode":   TypeBoolean,
		"welcome-msg": TypeString,
		"sample-rate": TypeNumber,
		"retry-count": TypeNumber,
		"app-config":  TypeObject,
	}
	for key, want := range wantTypes {
		flag, ok := fs[key]
		if !ok {
			t.Errorf("flag %q missing from parsed set", key)
			continue
		}
		if got := flag.Type(); got != want {
			t.Errorf("flag %q: Type() = %v, want %v", key, got, want)
		}
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	fs, err := Parse(nil, FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if fs == nil {
		t.Fatal("expected non-nil empty set")
	}
	if len(fs) != 0 {
		t.Fatalf("expected empty set, got %d flags", len(fs))
	}
}

func TestParse_JSONRoundTrip(t *testing.T) {
	fs, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	data, err := fs.Encode(FormatJSON)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	back, err := Parse(data, FormatJSON)
	if err != nil {
		t.Fatalf("re-Parse failed: %v", err)
	}
	if len(back) != len(fs) {
		t.Errorf("round trip lost flags: %d != %d", len(back), len(fs))
	}
	if back["dark-mode"].DefaultRule.Variation != "disabled" {
		t.Error("round trip lost defaultRule variation")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		path string
		data string
		want Format
	}{
		{"yaml extension", "flags.yaml", "", FormatYAML},
		{"yml extension", "flags.yml", "", FormatYAML},
		{"json extension", "flags.json", "", FormatJSON},
		{"no extension, json content", "flags", `{"a": {}}`, FormatJSON},
		{"no extension, yaml content", "flags", "a:\n  variations:", FormatYAML},
		{"uppercase extension", "FLAGS.JSON", "", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.path, []byte(tt.data)); got != tt.want {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"dark-mode", false},
		{"retry.count_v2", false},
		{"a", false},
		{"", true},
		{"-leading-dash", true},
		{".leading-dot", true},
		{"has space", true},
		{strings.Repeat("k", 128), false},
		{strings.Repeat("k", 129), true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		flag     Flag
		wantErrs []string
	}{
		{
			name: "valid single variation",
			flag: Flag{
				Variations:  map[string]any{"on": true, "off": false},
				DefaultRule: &DefaultRule{Variation: "off"},
			},
		},
		{
			name:     "no variations",
			flag:     Flag{DefaultRule: &DefaultRule{}},
			wantErrs: []string{"at least one variation is required"},
		},
		{
			name: "missing default rule",
			flag: Flag{
				Variations: map[string]any{"on": true},
			},
			wantErrs: []string{"defaultRule is required"},
		},
		{
			name: "unknown default variation",
			flag: Flag{
				Variations:  map[string]any{"on": true},
				DefaultRule: &DefaultRule{Variation: "nope"},
			},
			wantErrs: []string{`defaultRule references unknown variation "nope"`},
		},
		{
			name: "mixed variation types",
			flag: Flag{
				Variations:  map[string]any{"on": true, "msg": "hello"},
				DefaultRule: &DefaultRule{Variation: "on"},
			},
			wantErrs: []string{"variations must all share one value type"},
		},
		{
			name: "percentage does not sum to 100",
			flag: Flag{
				Variations: map[string]any{"a": "x", "b": "y"},
				DefaultRule: &DefaultRule{
					Percentage: map[string]float64{"a": 50, "b": 30},
				},
			},
			wantErrs: []string{"defaultRule percentage splits must sum to 100 (got 80.00)"},
		},
		{
			name: "percentage float imprecision tolerated",
			flag: Flag{
				Variations: map[string]any{"a": "x", "b": "y", "c": "z"},
				DefaultRule: &DefaultRule{
					Percentage: map[string]float64{"a": 33.33, "b": 33.33, "c": 33.34},
				},
			},
		},
		{
			name: "targeting rule without query",
			flag: Flag{
				Variations:  map[string]any{"on": true},
				Targeting:   []TargetingRule{{Variation: "on"}},
				DefaultRule: &DefaultRule{Variation: "on"},
			},
			wantErrs: []string{"targeting rule #1 must have a query"},
		},
		{
			name: "progressive rollout dates reversed",
			flag: Flag{
				Variations: map[string]any{"on": true, "off": false},
				DefaultRule: &DefaultRule{
					ProgressiveRollout: &ProgressiveRollout{
						Initial: &ProgressiveStep{Variation: "off", Date: "2026-09-01T00:00:00Z"},
						End:     &ProgressiveStep{Variation: "on", Date: "2026-08-01T00:00:00Z"},
					},
				},
			},
			wantErrs: []string{"progressive rollout initial date must be before end date"},
		},
		{
			name: "scheduled rollout out of order",
			flag: Flag{
				Variations:  map[string]any{"on": true, "off": false},
				DefaultRule: &DefaultRule{Variation: "off"},
				ScheduledRollout: []ScheduledStep{
					{Date: "2026-09-01T00:00:00Z"},
					{Date: "2026-08-01T00:00:00Z"},
				},
			},
			wantErrs: []string{"scheduled rollout step #2 date must be after step #1 date"},
		},
		{
			name: "experimentation start after end",
			flag: Flag{
				Variations:  map[string]any{"on": true},
				DefaultRule: &DefaultRule{Variation: "on"},
				Experimentation: &Experimentation{
					Start: "2026-09-01T00:00:00Z",
					End:   "2026-08-01T00:00:00Z",
				},
			},
			wantErrs: []string{"experimentation start date must be before end date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.flag.Validate()
			if len(tt.wantErrs) == 0 {
				if len(got) != 0 {
					t.Fatalf("expected valid flag, got errors: %v", got)
				}
				return
			}
			for _, want := range tt.wantErrs {
				if !containsString(got, want) {
					t.Errorf("missing error %q in %v", want, got)
				}
			}
		})
	}
}

func TestValidateSet(t *testing.T) {
	fs := FlagSet{
		"good": {
			Variations:  map[string]any{"on": true},
			DefaultRule: &DefaultRule{Variation: "on"},
		},
		"bad key!": {
			Variations:  map[string]any{"on": true},
			DefaultRule: &DefaultRule{Variation: "on"},
		},
		"no-default": {
			Variations: map[string]any{"on": true},
		},
	}

	problems := ValidateSet(fs)
	if _, ok := problems["good"]; ok {
		t.Error("valid flag reported as invalid")
	}
	if len(problems["bad key!"]) == 0 {
		t.Error("invalid key not reported")
	}
	if len(problems["no-default"]) == 0 {
		t.Error("missing defaultRule not reported")
	}
}

func TestDisabledAndTracksEvents(t *testing.T) {
	f := Flag{}
	if f.Disabled() {
		t.Error("unset disable should mean enabled")
	}
	if !f.TracksEvents() {
		t.Error("unset trackEvents should default to true")
	}

	f.Disable = boolPtr(true)
	f.TrackEvents = boolPtr(false)
	if !f.Disabled() {
		t.Error("disable=true should report Disabled")
	}
	if f.TracksEvents() {
		t.Error("trackEvents=false should turn tracking off")
	}
}

func TestSchema_ValidatesSampleConfig(t *testing.T) {
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
	if err != nil {
		t.Fatalf("failed to parse schema JSON: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", sch); err != nil {
		t.Fatalf("failed to add schema resource: %v", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		t.Fatalf("failed to compile schema: %v", err)
	}

	fs, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	data, err := fs.Encode(FormatJSON)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse encoded flag set: %v", err)
	}
	if err := compiled.Validate(inst); err != nil {
		t.Errorf("sample flag set does not conform to schema:\n%v", err)
	}
}

func TestSchema_RejectsUnknownFields(t *testing.T) {
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
	if err != nil {
		t.Fatalf("failed to parse schema JSON: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", sch); err != nil {
		t.Fatalf("failed to add schema resource: %v", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		t.Fatalf("failed to compile schema: %v", err)
	}

	bad := `{"my-flag": {"variations": {"on": true}, "bogus": 1}}`
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(bad))
	if err != nil {
		t.Fatalf("failed to parse instance: %v", err)
	}
	if err := compiled.Validate(inst); err == nil {
		t.Error("expected schema violation for unknown field, got none")
	}
}

func TestValidateSchema_AcceptsSampleYAML(t *testing.T) {
	if err := ValidateSchema([]byte(sampleYAML), FormatYAML); err != nil {
		t.Errorf("sample YAML should pass schema validation: %v", err)
	}
}

func TestValidateSchema_RejectsUnknownFields(t *testing.T) {
	bad := `{"my-flag": {"variations": {"on": true}, "bogus": 1}}`
	if err := ValidateSchema([]byte(bad), FormatJSON); err == nil {
		t.Error("expected schema violation for unknown field, got none")
	}
}

func TestValidateSchema_RejectsBadKey(t *testing.T) {
	bad := "!bad key!:\n  variations:\n    on: true\n"
	if err := ValidateSchema([]byte(bad), FormatYAML); err == nil {
		t.Error("expected schema violation for malformed flag key, got none")
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
