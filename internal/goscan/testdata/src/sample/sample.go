// Package sample is a fixture exercising every supported flag
// evaluation call shape.
package sample

import "context"

type evalContext map[string]any

type client struct{}

func (client) BooleanValue(ctx context.Context, key string, def bool, ec evalContext) (bool, error) {
	return def, nil
}

func (client) StringValue(ctx context.Context, key string, def string, ec evalContext) (string, error) {
	return def, nil
}

func (client) FloatValue(ctx context.Context, key string, def float64, ec evalContext) (float64, error) {
	return def, nil
}

func (client) IntValue(ctx context.Context, key string, def int64, ec evalContext) (int64, error) {
	return def, nil
}

func (client) ObjectValue(ctx context.Context, key string, def any, ec evalContext) (any, error) {
	return def, nil
}

func BoolVariation(key string, user any, def bool) (bool, error) { return def, nil }

// Accessors issues the five typed lookups with literal keys and
// defaults.
func Accessors(ctx context.Context, c client) {
	darkMode, _ := c.BooleanValue(ctx, "dark-mode", false, nil)
	welcome, _ := c.StringValue(ctx, "welcome-msg", "hello", nil)
	rate, _ := c.FloatValue(ctx, "sample-rate", 0.5, nil)
	count, _ := c.IntValue(ctx, "retry-count", 3, nil)
	cfg, _ := c.ObjectValue(ctx, "app-config", map[string]any{}, nil)

	_, _, _, _, _ = darkMode, welcome, rate, count, cfg
}

// Branchy references a flag inside a function with real branching,
// so complexity accounting has something to measure.
func Branchy(ctx context.Context, c client, n int) int {
	enabled, _ := c.BooleanValue(ctx, "dark-mode", false, nil)
	total := 0
	for i := 0; i < n; i++ {
		if enabled && i%2 == 0 {
			total += i
		} else if i%3 == 0 {
			total -= i
		}
	}
	return total
}

// DynamicKey builds its key at runtime and must not be reported.
func DynamicKey(ctx context.Context, c client, tenant string) bool {
	v, _ := c.BooleanValue(ctx, tenant+"-rollout", false, nil)
	return v
}

// PackageLevel uses the ffclient-style package function form.
func PackageLevel() bool {
	v, _ := BoolVariation("legacy-toggle", nil, true)
	return v
}

// MultiLine spreads a call across lines; regex scanners miss the
// argument pairing here.
func MultiLine(ctx context.Context, c client) string {
	v, _ := c.StringValue(
		ctx,
		"banner-text",
		"welcome",
		nil,
	)
	return v
}
