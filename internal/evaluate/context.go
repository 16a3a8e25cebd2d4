package evaluate

// Context carries the attributes a flag is evaluated against.
type Context struct {
	// TargetingKey identifies the evaluation subject (user, device,
	// request). Percentage bucketing is deterministic per
	// (flag, targeting key) pair. Empty means anonymous: buckets
	// then depend on the flag key alone.
	TargetingKey string

	// Attributes are the fields targeting queries run over.
	Attributes map[string]any
}

// NewContext creates a Context for the given targeting key.
func NewContext(targetingKey string) Context {
	return Context{TargetingKey: targetingKey}
}

// WithAttribute returns a copy of the context with one attribute
// added.
func (c Context) WithAttribute(key string, value any) Context {
	attrs := make(map[string]any, len(c.Attributes)+1)
	for k, v := range c.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	c.Attributes = attrs
	return c
}

// queryInput flattens the context for rule queries. The targeting
// key is visible to queries as "targetingKey".
func (c Context) queryInput() map[string]any {
	input := make(map[string]any, len(c.Attributes)+1)
	for k, v := range c.Attributes {
		input[k] = v
	}
	if c.TargetingKey != "" {
		input["targetingKey"] = c.TargetingKey
	}
	return input
}
