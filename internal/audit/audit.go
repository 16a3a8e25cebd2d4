// Package audit cross-checks the flags a codebase references against
// the flags a configuration file defines. It reports flags the code
// uses but the config lacks, flags the config carries but nothing
// references, and flags whose code-side type disagrees with the
// configured variations.
package audit

import (
	"fmt"
	"sort"

	"github.com/unbound-force/flaglens/internal/flagconf"
	"github.com/unbound-force/flaglens/internal/manifest"
	"github.com/unbound-force/flaglens/internal/scan"
)

// Kind classifies an audit finding.
type Kind string

const (
	// KindMissing: the code references a flag the configuration does
	// not define. Every lookup falls back to the inline default.
	KindMissing Kind = "missing"

	// KindUnused: the configuration defines a flag no scanned code
	// references. Usually a leftover from a finished rollout.
	KindUnused Kind = "unused"

	// KindMismatch: the accessor type in code does not match the type
	// of the configured variations.
	KindMismatch Kind = "type-mismatch"
)

// Finding is one discrepancy between code and configuration.
type Finding struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key"`

	// CodeType and ConfigType are set for type mismatches.
	CodeType   flagconf.ValueType `json:"codeType,omitempty"`
	ConfigType flagconf.ValueType `json:"configType,omitempty"`

	// References locate the flag in code. Empty for unused flags.
	References []scan.Reference `json:"references,omitempty"`
}

func (f Finding) String() string {
	switch f.Kind {
	case KindMissing:
		return fmt.Sprintf("%s: referenced in code but not configured", f.Key)
	case KindUnused:
		return fmt.Sprintf("%s: configured but never referenced", f.Key)
	case KindMismatch:
		return fmt.Sprintf("%s: code expects %s, configuration holds %s", f.Key, f.CodeType, f.ConfigType)
	default:
		return f.Key
	}
}

// Summary holds aggregate counts for an audit.
type Summary struct {
	FlagsInCode   int `json:"flagsInCode"`
	FlagsInConfig int `json:"flagsInConfig"`
	Missing       int `json:"missing"`
	Unused        int `json:"unused"`
	Mismatched    int `json:"mismatched"`
}

// Clean reports whether the audit found nothing.
func (s Summary) Clean() bool {
	return s.Missing == 0 && s.Unused == 0 && s.Mismatched == 0
}

// Report is the complete audit output.
type Report struct {
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
}

// Options configures audit thresholds for CI gating.
type Options struct {
	// MaxMissing fails the audit when more flags are missing from the
	// configuration. Negative means no limit.
	MaxMissing int

	// MaxUnused fails the audit when more configured flags go
	// unreferenced. Negative means no limit.
	MaxUnused int

	// AllowMismatch downgrades type mismatches from failures to
	// findings.
	AllowMismatch bool
}

// DefaultOptions gates on nothing: report-only.
func DefaultOptions() Options {
	return Options{MaxMissing: -1, MaxUnused: -1, AllowMismatch: true}
}

// Run audits the manifest against the configuration.
func Run(m manifest.Manifest, fs flagconf.FlagSet) *Report {
	var findings []Finding

	seen := make(map[string]bool, len(m.Flags))
	for _, disc := range m.Flags {
		seen[disc.Key] = true

		flag, ok := fs[disc.Key]
		if !ok {
			findings = append(findings, Finding{
				Kind:       KindMissing,
				Key:        disc.Key,
				CodeType:   disc.Type,
				References: disc.References,
			})
			continue
		}

		codeType := disc.Type
		configType := flag.Type()
		if codeType == flagconf.TypeUnknown || configType == flagconf.TypeUnknown {
			continue
		}
		if codeType != configType {
			findings = append(findings, Finding{
				Kind:       KindMismatch,
				Key:        disc.Key,
				CodeType:   codeType,
				ConfigType: configType,
				References: disc.References,
			})
		}
	}

	for _, key := range fs.Keys() {
		if !seen[key] {
			findings = append(findings, Finding{Kind: KindUnused, Key: key})
		}
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		return findings[i].Key < findings[j].Key
	})

	return &Report{
		Findings: findings,
		Summary:  summarize(findings, len(m.Flags), len(fs)),
	}
}

func summarize(findings []Finding, inCode, inConfig int) Summary {
	s := Summary{FlagsInCode: inCode, FlagsInConfig: inConfig}
	for _, f := range findings {
		switch f.Kind {
		case KindMissing:
			s.Missing++
		case KindUnused:
			s.Unused++
		case KindMismatch:
			s.Mismatched++
		}
	}
	return s
}

// CheckThresholds returns an error when the report violates the
// configured gates, for use as a CI exit condition.
func (r *Report) CheckThresholds(opts Options) error {
	if opts.MaxMissing >= 0 && r.Summary.Missing > opts.MaxMissing {
		return fmt.Errorf("%d missing flags exceed the limit of %d", r.Summary.Missing, opts.MaxMissing)
	}
	if opts.MaxUnused >= 0 && r.Summary.Unused > opts.MaxUnused {
		return fmt.Errorf("%d unused flags exceed the limit of %d", r.Summary.Unused, opts.MaxUnused)
	}
	if !opts.AllowMismatch && r.Summary.Mismatched > 0 {
		return fmt.Errorf("%d flags have mismatched types", r.Summary.Mismatched)
	}
	return nil
}
