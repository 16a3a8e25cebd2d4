package evaluate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

func boolPtr(b bool) *bool { return &b }

// sampleFlags configures one flag per value type, keyed and typed
// like the scanner fixtures.
func sampleFlags() flagconf.FlagSet {
	return flagconf.FlagSet{
		"dark-mode": {
			Variations:  map[string]any{"enabled": true, "disabled": false},
			DefaultRule: &flagconf.DefaultRule{Variation: "disabled"},
			Targeting: []flagconf.TargetingRule{
				{Name: "beta users", Query: `beta eq true`, Variation: "enabled"},
			},
		},
		"welcome-msg": {
			Variations:  map[string]any{"greeting": "hello", "formal": "good day"},
			DefaultRule: &flagconf.DefaultRule{Variation: "greeting"},
		},
		"sample-rate": {
			Variations:  map[string]any{"low": 0.1, "high": 0.9},
			DefaultRule: &flagconf.DefaultRule{Variation: "low"},
		},
		"retry-count": {
			Variations:  map[string]any{"few": 3, "many": 10},
			DefaultRule: &flagconf.DefaultRule{Variation: "few"},
		},
		"app-config": {
			Variations: map[string]any{
				"default": map[string]any{"maxItems": 10},
				"tuned":   map[string]any{"maxItems": 50},
			},
			DefaultRule: &flagconf.DefaultRule{Variation: "default"},
		},
	}
}

// clientAt pins the client's clock for rollout tests.
func clientAt(fs flagconf.FlagSet, at time.Time) *Client {
	c := New(fs)
	c.now = func() time.Time { return at }
	return c
}

func TestTypedAccessors_DefaultRules(t *testing.T) {
	c := New(sampleFlags())
	ctx := NewContext("user-1")

	if v := c.BoolValue("dark-mode", ctx, true); v != false {
		t.Errorf("BoolValue = %v, want false", v)
	}
	if v := c.StringValue("welcome-msg", ctx, "fallback"); v != "hello" {
		t.Errorf("StringValue = %q, want hello", v)
	}
	if v := c.FloatValue("sample-rate", ctx, 0.5); v != 0.1 {
		t.Errorf("FloatValue = %v, want 0.1", v)
	}
	if v := c.IntValue("retry-count", ctx, 7); v != 3 {
		t.Errorf("IntValue = %v, want 3", v)
	}
	obj := c.ObjectValue("app-config", ctx, map[string]any{})
	if obj["maxItems"] != 10 {
		t.Errorf("ObjectValue = %v, want maxItems 10", obj)
	}
}

func TestMissingFlags_ReturnCallerDefaults(t *testing.T) {
	// The five lookups the fixture file issues, against an empty
	// flag set: every call falls back to its literal default.
	c := New(flagconf.FlagSet{})
	ctx := Context{}

	if v := c.BoolValue("dark-mode", ctx, false); v != false {
		t.Errorf("dark-mode = %v, want false", v)
	}
	if v := c.StringValue("welcome-msg", ctx, "hello"); v != "hello" {
		t.Errorf("welcome-msg = %q, want hello", v)
	}
	if v := c.FloatValue("sample-rate", ctx, 0.5); v != 0.5 {
		t.Errorf("sample-rate = %v, want 0.5", v)
	}
	if v := c.IntValue("retry-count", ctx, 3); v != 3 {
		t.Errorf("retry-count = %v, want 3", v)
	}
	obj := c.ObjectValue("app-config", ctx, map[string]any{})
	if len(obj) != 0 {
		t.Errorf("app-config = %v, want empty mapping", obj)
	}

	_, detail := c.BoolValueDetails("dark-mode", ctx, false)
	if detail.Reason != ReasonError || detail.ErrorCode != CodeFlagNotFound {
		t.Errorf("detail = %+v, want FLAG_NOT_FOUND error", detail)
	}
	if !errors.Is(detail.Err, ErrFlagNotFound) {
		t.Errorf("err = %v, want ErrFlagNotFound", detail.Err)
	}
}

func TestTypeMismatch_ReturnsDefault(t *testing.T) {
	c := New(sampleFlags())
	ctx := NewContext("user-1")

	// welcome-msg holds strings; asking for a bool must not panic.
	v, detail := c.BoolValueDetails("welcome-msg", ctx, true)
	if v != true {
		t.Errorf("value = %v, want caller default", v)
	}
	if detail.ErrorCode != CodeTypeMismatch {
		t.Errorf("errorCode = %v, want TYPE_MISMATCH", detail.ErrorCode)
	}
	if !errors.Is(detail.Err, ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", detail.Err)
	}
}

func TestIntCoercion(t *testing.T) {
	fs := flagconf.FlagSet{
		"whole-float": {
			Variations:  map[string]any{"v": 3.0},
			DefaultRule: &flagconf.DefaultRule{Variation: "v"},
		},
		"fractional": {
			Variations:  map[string]any{"v": 0.5},
			DefaultRule: &flagconf.DefaultRule{Variation: "v"},
		},
	}
	c := New(fs)
	ctx := Context{}

	if v := c.IntValue("whole-float", ctx, 0); v != 3 {
		t.Errorf("whole float: got %d, want 3", v)
	}
	v, detail := c.IntValueDetails("fractional", ctx, 9)
	if v != 9 || detail.ErrorCode != CodeTypeMismatch {
		t.Errorf("fractional float: got %d (%v), want default 9 with TYPE_MISMATCH", v, detail.ErrorCode)
	}

	// The reverse coercion: integer variation read as float.
	if f := c.FloatValue("whole-float", ctx, 0); f != 3.0 {
		t.Errorf("int as float: got %v, want 3.0", f)
	}
}

func TestDisabledFlag(t *testing.T) {
	fs := sampleFlags()
	f := fs["dark-mode"]
	f.Disable = boolPtr(true)
	fs["dark-mode"] = f

	c := New(fs)
	v, detail := c.BoolValueDetails("dark-mode", NewContext("u"), true)
	if v != true {
		t.Errorf("value = %v, want caller default", v)
	}
	if detail.Reason != ReasonDisabled {
		t.Errorf("reason = %v, want DISABLED", detail.Reason)
	}
	if detail.Err != nil {
		t.Errorf("disabled is not an error, got %v", detail.Err)
	}
}

func TestTargetingRule_Match(t *testing.T) {
	c := New(sampleFlags())

	beta := NewContext("user-1").WithAttribute("beta", true)
	v, detail := c.BoolValueDetails("dark-mode", beta, false)
	if v != true {
		t.Errorf("beta user: value = %v, want true", v)
	}
	if detail.Reason != ReasonTargetingMatch {
		t.Errorf("reason = %v, want TARGETING_MATCH", detail.Reason)
	}
	if detail.Variant != "enabled" {
		t.Errorf("variant = %q, want enabled", detail.Variant)
	}

	regular := NewContext("user-2").WithAttribute("beta", false)
	if v := c.BoolValue("dark-mode", regular, false); v != false {
		t.Errorf("regular user: value = %v, want false", v)
	}
}

func TestTargetingRule_StringQuery(t *testing.T) {
	fs := flagconf.FlagSet{
		"welcome-msg": {
			Variations: map[string]any{"greeting": "hello", "dutch": "hallo"},
			Targeting: []flagconf.TargetingRule{
				{Query: `country eq "NL"`, Variation: "dutch"},
			},
			DefaultRule: &flagconf.DefaultRule{Variation: "greeting"},
		},
	}
	c := New(fs)

	nl := NewContext("u").WithAttribute("country", "NL")
	if v := c.StringValue("welcome-msg", nl, ""); v != "hallo" {
		t.Errorf("NL user: %q, want hallo", v)
	}
	us := NewContext("u").WithAttribute("country", "US")
	if v := c.StringValue("welcome-msg", us, ""); v != "hello" {
		t.Errorf("US user: %q, want hello", v)
	}
}

func TestTargetingRule_DisabledRuleSkipped(t *testing.T) {
	fs := sampleFlags()
	f := fs["dark-mode"]
	f.Targeting[0].Disable = boolPtr(true)
	fs["dark-mode"] = f

	c := New(fs)
	beta := NewContext("user-1").WithAttribute("beta", true)
	if v := c.BoolValue("dark-mode", beta, false); v != false {
		t.Errorf("disabled rule must not match, got %v", v)
	}
}

func TestPercentageSplit_Deterministic(t *testing.T) {
	fs := flagconf.FlagSet{
		"sample-rate": {
			Variations: map[string]any{"low": 0.1, "high": 0.9},
			DefaultRule: &flagconf.DefaultRule{
				Percentage: map[string]float64{"low": 50, "high": 50},
			},
		},
	}
	c := New(fs)

	ctx := NewContext("user-42")
	first, detail := c.FloatValueDetails("sample-rate", ctx, 0)
	if detail.Reason != ReasonSplit {
		t.Errorf("reason = %v, want SPLIT", detail.Reason)
	}
	for i := 0; i < 20; i++ {
		if v := c.FloatValue("sample-rate", ctx, 0); v != first {
			t.Fatalf("evaluation %d flipped: %v != %v", i, v, first)
		}
	}
}

func TestPercentageSplit_Distribution(t *testing.T) {
	fs := flagconf.FlagSet{
		"rollout": {
			Variations: map[string]any{"on": true, "off": false},
			DefaultRule: &flagconf.DefaultRule{
				Percentage: map[string]float64{"on": 30, "off": 70},
			},
		},
	}
	c := New(fs)

	on := 0
	const n = 5000
	for i := 0; i < n; i++ {
		if c.BoolValue("rollout", NewContext(fmt.Sprintf("user-%d", i)), false) {
			on++
		}
	}
	share := float64(on) / n * 100
	if share < 25 || share > 35 {
		t.Errorf("on share = %.1f%%, want ~30%%", share)
	}
}

func TestProgressiveRollout(t *testing.T) {
	fs := flagconf.FlagSet{
		"new-engine": {
			Variations: map[string]any{"old": false, "new": true},
			DefaultRule: &flagconf.DefaultRule{
				ProgressiveRollout: &flagconf.ProgressiveRollout{
					Initial: &flagconf.ProgressiveStep{Variation: "old", Percentage: 0, Date: "2026-08-01T00:00:00Z"},
					End:     &flagconf.ProgressiveStep{Variation: "new", Percentage: 100, Date: "2026-08-31T00:00:00Z"},
				},
			},
		},
	}

	count := func(c *Client) int {
		on := 0
		for i := 0; i < 500; i++ {
			if c.BoolValue("new-engine", NewContext(fmt.Sprintf("user-%d", i)), false) {
				on++
			}
		}
		return on
	}

	before := clientAt(fs, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	if on := count(before); on != 0 {
		t.Errorf("before start: %d users on new variation, want 0", on)
	}

	after := clientAt(fs, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC))
	if on := count(after); on != 500 {
		t.Errorf("after end: %d users on new variation, want 500", on)
	}

	midway := clientAt(fs, time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC))
	on := count(midway)
	if on < 150 || on > 350 {
		t.Errorf("midway: %d/500 on new variation, want ~250", on)
	}
}

func TestScheduledRollout(t *testing.T) {
	fs := flagconf.FlagSet{
		"retry-count": {
			Variations:  map[string]any{"few": 3, "many": 10},
			DefaultRule: &flagconf.DefaultRule{Variation: "few"},
			ScheduledRollout: []flagconf.ScheduledStep{
				{
					Date:        "2026-08-20T00:00:00Z",
					DefaultRule: &flagconf.DefaultRule{Variation: "many"},
				},
			},
		},
	}

	before := clientAt(fs, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	if v := before.IntValue("retry-count", Context{}, 0); v != 3 {
		t.Errorf("before step: %d, want 3", v)
	}

	after := clientAt(fs, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
	if v := after.IntValue("retry-count", Context{}, 0); v != 10 {
		t.Errorf("after step: %d, want 10", v)
	}
}

func TestExperimentationWindow(t *testing.T) {
	fs := flagconf.FlagSet{
		"experiment": {
			Variations:  map[string]any{"on": true, "off": false},
			DefaultRule: &flagconf.DefaultRule{Variation: "on"},
			Experimentation: &flagconf.Experimentation{
				Start: "2026-08-01T00:00:00Z",
				End:   "2026-08-31T00:00:00Z",
			},
		},
	}

	inside := clientAt(fs, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
	if v := inside.BoolValue("experiment", Context{}, false); v != true {
		t.Error("inside window: want configured variation")
	}

	tests := []struct {
		name string
		at   time.Time
	}{
		{"before window", time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)},
		{"after window", time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)},
		{"at end boundary", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clientAt(fs, tt.at)
			v, detail := c.BoolValueDetails("experiment", Context{}, false)
			if v != false {
				t.Errorf("value = %v, want caller default", v)
			}
			if detail.Reason != ReasonDisabled {
				t.Errorf("reason = %v, want DISABLED", detail.Reason)
			}
		})
	}
}

func TestSetFlags_SwapsConfiguration(t *testing.T) {
	c := New(sampleFlags())
	ctx := Context{}

	if v := c.StringValue("welcome-msg", ctx, ""); v != "hello" {
		t.Fatalf("initial value = %q", v)
	}

	c.SetFlags(flagconf.FlagSet{
		"welcome-msg": {
			Variations:  map[string]any{"v2": "howdy"},
			DefaultRule: &flagconf.DefaultRule{Variation: "v2"},
		},
	})
	if v := c.StringValue("welcome-msg", ctx, ""); v != "howdy" {
		t.Errorf("after swap = %q, want howdy", v)
	}
}

func TestAnonymousContext_Bucketing(t *testing.T) {
	fs := flagconf.FlagSet{
		"split": {
			Variations: map[string]any{"a": "a", "b": "b"},
			DefaultRule: &flagconf.DefaultRule{
				Percentage: map[string]float64{"a": 50, "b": 50},
			},
		},
	}
	c := New(fs)

	first := c.StringValue("split", Context{}, "")
	for i := 0; i < 10; i++ {
		if v := c.StringValue("split", Context{}, ""); v != first {
			t.Fatal("anonymous bucketing must be stable per flag")
		}
	}
}

func TestTrackEvents_Propagated(t *testing.T) {
	fs := sampleFlags()
	f := fs["dark-mode"]
	f.TrackEvents = boolPtr(false)
	fs["dark-mode"] = f

	c := New(fs)
	_, detail := c.BoolValueDetails("dark-mode", NewContext("u"), false)
	if detail.TrackEvents {
		t.Error("trackEvents=false should disable event recording")
	}
	_, detail = c.StringValueDetails("welcome-msg", NewContext("u"), "")
	if !detail.TrackEvents {
		t.Error("unset trackEvents should enable event recording")
	}
}
