package evaluate

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/nikunjy/rules/parser"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

// resolution is the untyped outcome of resolving a flag.
type resolution struct {
	value       any
	variant     string
	reason      Reason
	trackEvents bool
	errorCode   ErrorCode
	err         error
}

// resolve runs the full resolution pipeline for one flag.
func (c *Client) resolve(key string, evalCtx Context) resolution {
	flag, ok := c.snapshot()[key]
	if !ok {
		return resolution{
			reason:      ReasonError,
			errorCode:   CodeFlagNotFound,
			trackEvents: true,
			err:         fmt.Errorf("flag %q: %w", key, ErrFlagNotFound),
		}
	}

	now := c.now()
	flag = applySchedule(flag, now)

	if flag.Disabled() {
		return resolution{reason: ReasonDisabled, trackEvents: flag.TracksEvents()}
	}
	if !inExperimentationWindow(flag.Experimentation, now) {
		return resolution{reason: ReasonDisabled, trackEvents: flag.TracksEvents()}
	}

	for _, rule := range flag.Targeting {
		if rule.Disable != nil && *rule.Disable {
			continue
		}
		if rule.Query == "" {
			continue
		}
		// parser.Evaluate returns false for malformed queries, so an
		// invalid rule falls through like a non-match.
		if !parser.Evaluate(rule.Query, evalCtx.queryInput()) {
			continue
		}

		res := c.applyRule(key, flag, rule.Variation, rule.Percentage, nil, evalCtx)
		if res.err != nil {
			// A malformed rule falls through to later rules and the
			// default, so a half-edited flag degrades instead of
			// erroring.
			continue
		}
		if res.reason == ReasonStatic {
			res.reason = ReasonTargetingMatch
		}
		res.trackEvents = flag.TracksEvents()
		return res
	}

	if flag.DefaultRule == nil {
		return resolution{
			reason:      ReasonError,
			errorCode:   CodeGeneral,
			trackEvents: flag.TracksEvents(),
			err:         fmt.Errorf("flag %q has no default rule", key),
		}
	}

	res := c.applyRule(key, flag, flag.DefaultRule.Variation,
		flag.DefaultRule.Percentage, flag.DefaultRule.ProgressiveRollout, evalCtx)
	res.trackEvents = flag.TracksEvents()
	return res
}

// applyRule resolves a single rule: fixed variation, percentage
// split, or progressive rollout.
func (c *Client) applyRule(key string, flag flagconf.Flag, variation string,
	percentage map[string]float64, progressive *flagconf.ProgressiveRollout,
	evalCtx Context) resolution {

	switch {
	case progressive != nil && progressive.Initial != nil && progressive.End != nil:
		return c.applyProgressive(key, flag, progressive, evalCtx)

	case len(percentage) > 0:
		name := pickBucket(percentage, bucket(key, evalCtx.TargetingKey))
		value, ok := flag.Variations[name]
		if !ok {
			return resolution{
				reason:    ReasonError,
				errorCode: CodeGeneral,
				err:       fmt.Errorf("flag %q: percentage selected unknown variation %q", key, name),
			}
		}
		return resolution{value: value, variant: name, reason: ReasonSplit}

	case variation != "":
		value, ok := flag.Variations[variation]
		if !ok {
			return resolution{
				reason:    ReasonError,
				errorCode: CodeGeneral,
				err:       fmt.Errorf("flag %q: rule references unknown variation %q", key, variation),
			}
		}
		return resolution{value: value, variant: variation, reason: ReasonStatic}

	default:
		return resolution{
			reason:    ReasonError,
			errorCode: CodeGeneral,
			err:       fmt.Errorf("flag %q: rule selects no variation", key),
		}
	}
}

// applyProgressive ramps traffic from the initial variation to the
// end variation between the two step dates.
func (c *Client) applyProgressive(key string, flag flagconf.Flag,
	pr *flagconf.ProgressiveRollout, evalCtx Context) resolution {

	pct := progressivePercentage(pr, c.now())
	name := pr.Initial.Variation
	if bucket(key, evalCtx.TargetingKey) < pct {
		name = pr.End.Variation
	}

	value, ok := flag.Variations[name]
	if !ok {
		return resolution{
			reason:    ReasonError,
			errorCode: CodeGeneral,
			err:       fmt.Errorf("flag %q: progressive rollout references unknown variation %q", key, name),
		}
	}
	return resolution{value: value, variant: name, reason: ReasonSplit}
}

// progressivePercentage computes the share of traffic on the end
// variation at time now, linearly interpolated between the steps.
func progressivePercentage(pr *flagconf.ProgressiveRollout, now time.Time) float64 {
	initialPct := pr.Initial.Percentage
	endPct := pr.End.Percentage
	if endPct == 0 && pr.End.Date != "" {
		// An end step without a percentage means "fully rolled out".
		endPct = 100
	}

	start, serr := time.Parse(time.RFC3339, pr.Initial.Date)
	end, eerr := time.Parse(time.RFC3339, pr.End.Date)
	if serr != nil || eerr != nil || !start.Before(end) {
		return initialPct
	}

	switch {
	case now.Before(start):
		return initialPct
	case !now.Before(end):
		return endPct
	default:
		elapsed := now.Sub(start).Seconds()
		total := end.Sub(start).Seconds()
		return initialPct + (endPct-initialPct)*(elapsed/total)
	}
}

// applySchedule overlays every scheduled step whose date has passed.
func applySchedule(flag flagconf.Flag, now time.Time) flagconf.Flag {
	for _, step := range flag.ScheduledRollout {
		date, err := time.Parse(time.RFC3339, step.Date)
		if err != nil || now.Before(date) {
			continue
		}
		if step.Variations != nil {
			flag.Variations = step.Variations
		}
		if step.Targeting != nil {
			flag.Targeting = step.Targeting
		}
		if step.DefaultRule != nil {
			flag.DefaultRule = step.DefaultRule
		}
		if step.Disable != nil {
			flag.Disable = step.Disable
		}
	}
	return flag
}

// inExperimentationWindow reports whether now falls inside the
// flag's [start, end) window. A nil window is always open.
func inExperimentationWindow(exp *flagconf.Experimentation, now time.Time) bool {
	if exp == nil {
		return true
	}
	if exp.Start != "" {
		start, err := time.Parse(time.RFC3339, exp.Start)
		if err == nil && now.Before(start) {
			return false
		}
	}
	if exp.End != "" {
		end, err := time.Parse(time.RFC3339, exp.End)
		if err == nil && !now.Before(end) {
			return false
		}
	}
	return true
}

// bucket hashes (flag key, targeting key) into [0, 100) with 0.001
// granularity. The flag key participates so one user is not stuck on
// the same side of every rollout.
func bucket(flagKey, targetingKey string) float64 {
	h := fnv.New64a()
	h.Write([]byte(flagKey))
	h.Write([]byte("/"))
	h.Write([]byte(targetingKey))
	return float64(h.Sum64()%100000) / 1000
}

// pickBucket maps a bucket value onto a percentage split. Variation
// names are walked in sorted order so the mapping is stable across
// processes.
func pickBucket(percentage map[string]float64, b float64) string {
	names := make([]string, 0, len(percentage))
	for name := range percentage {
		names = append(names, name)
	}
	sort.Strings(names)

	var cumulative float64
	for _, name := range names {
		cumulative += percentage[name]
		if b < cumulative {
			return name
		}
	}
	// Splits that sum below 100 dump the remainder on the last
	// variation rather than failing the evaluation.
	return names[len(names)-1]
}
