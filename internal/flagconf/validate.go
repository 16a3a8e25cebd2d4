package flagconf

import (
	"fmt"
	"regexp"
	"time"
)

// keyRegex constrains flag keys: leading alphanumeric, then
// alphanumeric plus ._-, at most 128 characters total.
var keyRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ValidateKey checks a flag key's format.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("flag key is required")
	}
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("flag key %q must start with an alphanumeric and contain only alphanumerics, '.', '_', '-' (max 128 chars)", key)
	}
	return nil
}

// Validate checks a flag's internal consistency and returns every
// problem found, one message per issue. A nil result means the flag
// is valid.
func (f Flag) Validate() []string {
	var errs []string

	if len(f.Variations) == 0 {
		errs = append(errs, "at least one variation is required")
	}
	if f.Type() == TypeUnknown && len(f.Variations) > 0 {
		errs = append(errs, "variations must all share one value type")
	}

	if f.DefaultRule == nil {
		errs = append(errs, "defaultRule is required")
	} else {
		errs = append(errs, f.validateRule("defaultRule", f.DefaultRule.Variation, f.DefaultRule.Percentage)...)
		if pr := f.DefaultRule.ProgressiveRollout; pr != nil {
			errs = append(errs, f.validateProgressive(pr)...)
		}
	}

	for i, rule := range f.Targeting {
		label := fmt.Sprintf("targeting rule #%d", i+1)
		if rule.Query == "" {
			errs = append(errs, label+" must have a query")
		}
		errs = append(errs, f.validateRule(label, rule.Variation, rule.Percentage)...)
	}

	errs = append(errs, f.validateSchedule()...)

	if exp := f.Experimentation; exp != nil && exp.Start != "" && exp.End != "" {
		start, serr := time.Parse(time.RFC3339, exp.Start)
		end, eerr := time.Parse(time.RFC3339, exp.End)
		switch {
		case serr != nil || eerr != nil:
			errs = append(errs, "experimentation dates must be RFC 3339")
		case !start.Before(end):
			errs = append(errs, "experimentation start date must be before end date")
		}
	}

	return errs
}

// validateRule checks a variation reference and percentage split
// shared by targeting rules and the default rule.
func (f Flag) validateRule(label, variation string, percentage map[string]float64) []string {
	var errs []string

	if variation != "" {
		if _, ok := f.Variations[variation]; !ok {
			errs = append(errs, fmt.Sprintf("%s references unknown variation %q", label, variation))
		}
	}

	if len(percentage) > 0 {
		var total float64
		for name, pct := range percentage {
			if _, ok := f.Variations[name]; !ok {
				errs = append(errs, fmt.Sprintf("%s percentage references unknown variation %q", label, name))
			}
			if pct < 0 {
				errs = append(errs, fmt.Sprintf("%s percentage for %q cannot be negative", label, name))
			}
			total += pct
		}
		// Tolerate float imprecision in user-authored splits.
		if total < 99.9 || total > 100.1 {
			errs = append(errs, fmt.Sprintf("%s percentage splits must sum to 100 (got %.2f)", label, total))
		}
	}

	return errs
}

// validateProgressive checks progressive rollout date ordering and
// variation references.
func (f Flag) validateProgressive(pr *ProgressiveRollout) []string {
	var errs []string

	if pr.Initial == nil || pr.End == nil {
		return []string{"progressive rollout requires both initial and end steps"}
	}
	for _, step := range []*ProgressiveStep{pr.Initial, pr.End} {
		if step.Variation != "" {
			if _, ok := f.Variations[step.Variation]; !ok {
				errs = append(errs, fmt.Sprintf("progressive rollout references unknown variation %q", step.Variation))
			}
		}
	}
	if pr.Initial.Date != "" && pr.End.Date != "" {
		initial, ierr := time.Parse(time.RFC3339, pr.Initial.Date)
		end, eerr := time.Parse(time.RFC3339, pr.End.Date)
		switch {
		case ierr != nil || eerr != nil:
			errs = append(errs, "progressive rollout dates must be RFC 3339")
		case !initial.Before(end):
			errs = append(errs, "progressive rollout initial date must be before end date")
		}
	}

	return errs
}

// validateSchedule checks that scheduled rollout steps have strictly
// increasing dates.
func (f Flag) validateSchedule() []string {
	var errs []string
	for i := 1; i < len(f.ScheduledRollout); i++ {
		prev, curr := f.ScheduledRollout[i-1].Date, f.ScheduledRollout[i].Date
		if prev == "" || curr == "" {
			continue
		}
		pt, perr := time.Parse(time.RFC3339, prev)
		ct, cerr := time.Parse(time.RFC3339, curr)
		if perr != nil || cerr != nil {
			errs = append(errs, fmt.Sprintf("scheduled rollout step #%d has a non-RFC 3339 date", i+1))
			continue
		}
		if !pt.Before(ct) {
			errs = append(errs, fmt.Sprintf("scheduled rollout step #%d date must be after step #%d date", i+1, i))
		}
	}
	return errs
}

// ValidateSet validates every flag in the set, returning a map of
// flag key to its validation problems. Valid flags are omitted.
func ValidateSet(fs FlagSet) map[string][]string {
	problems := make(map[string][]string)
	for key, flag := range fs {
		var errs []string
		if err := ValidateKey(key); err != nil {
			errs = append(errs, err.Error())
		}
		errs = append(errs, flag.Validate()...)
		if len(errs) > 0 {
			problems[key] = errs
		}
	}
	return problems
}
