package evaluate

import (
	"fmt"
	"sync"
	"time"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

// Client evaluates flags against a configuration set. It is safe for
// concurrent use; SetFlags swaps the set atomically, which is how
// retriever pollers push updates.
type Client struct {
	mu    sync.RWMutex
	flags flagconf.FlagSet

	// now is a test seam; production clients use time.Now.
	now func() time.Time
}

// New creates a Client over the given flag set.
func New(flags flagconf.FlagSet) *Client {
	if flags == nil {
		flags = flagconf.FlagSet{}
	}
	return &Client{flags: flags, now: time.Now}
}

// SetFlags replaces the client's flag set.
func (c *Client) SetFlags(flags flagconf.FlagSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if flags == nil {
		flags = flagconf.FlagSet{}
	}
	c.flags = flags
}

// snapshot returns the current flag set for one resolution.
func (c *Client) snapshot() flagconf.FlagSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags
}

// BoolValue resolves a boolean flag, returning the default when the
// flag is missing, disabled, or not a boolean.
func (c *Client) BoolValue(key string, evalCtx Context, def bool) bool {
	v, _ := c.BoolValueDetails(key, evalCtx, def)
	return v
}

// BoolValueDetails is BoolValue plus the resolution detail.
func (c *Client) BoolValueDetails(key string, evalCtx Context, def bool) (bool, Detail) {
	res := c.resolve(key, evalCtx)
	if res.err != nil || res.value == nil {
		return def, res.detail(def)
	}
	v, ok := res.value.(bool)
	if !ok {
		return def, res.mismatch(key, def, "boolean")
	}
	return v, res.detail(v)
}

// StringValue resolves a string flag.
func (c *Client) StringValue(key string, evalCtx Context, def string) string {
	v, _ := c.StringValueDetails(key, evalCtx, def)
	return v
}

// StringValueDetails is StringValue plus the resolution detail.
func (c *Client) StringValueDetails(key string, evalCtx Context, def string) (string, Detail) {
	res := c.resolve(key, evalCtx)
	if res.err != nil || res.value == nil {
		return def, res.detail(def)
	}
	v, ok := res.value.(string)
	if !ok {
		return def, res.mismatch(key, def, "string")
	}
	return v, res.detail(v)
}

// FloatValue resolves a numeric flag as a float64. Integer-valued
// variations coerce cleanly.
func (c *Client) FloatValue(key string, evalCtx Context, def float64) float64 {
	v, _ := c.FloatValueDetails(key, evalCtx, def)
	return v
}

// FloatValueDetails is FloatValue plus the resolution detail.
func (c *Client) FloatValueDetails(key string, evalCtx Context, def float64) (float64, Detail) {
	res := c.resolve(key, evalCtx)
	if res.err != nil || res.value == nil {
		return def, res.detail(def)
	}
	v, ok := toFloat(res.value)
	if !ok {
		return def, res.mismatch(key, def, "number")
	}
	return v, res.detail(v)
}

// IntValue resolves an integer flag. Float-valued variations coerce
// only when they carry no fractional part; 0.5 is a mismatch, 3.0 is
// a 3.
func (c *Client) IntValue(key string, evalCtx Context, def int64) int64 {
	v, _ := c.IntValueDetails(key, evalCtx, def)
	return v
}

// IntValueDetails is IntValue plus the resolution detail.
func (c *Client) IntValueDetails(key string, evalCtx Context, def int64) (int64, Detail) {
	res := c.resolve(key, evalCtx)
	if res.err != nil || res.value == nil {
		return def, res.detail(def)
	}
	v, ok := toInt(res.value)
	if !ok {
		return def, res.mismatch(key, def, "integer")
	}
	return v, res.detail(v)
}

// ObjectValue resolves a mapping flag.
func (c *Client) ObjectValue(key string, evalCtx Context, def map[string]any) map[string]any {
	v, _ := c.ObjectValueDetails(key, evalCtx, def)
	return v
}

// ObjectValueDetails is ObjectValue plus the resolution detail.
func (c *Client) ObjectValueDetails(key string, evalCtx Context, def map[string]any) (map[string]any, Detail) {
	res := c.resolve(key, evalCtx)
	if res.err != nil || res.value == nil {
		return def, res.detail(def)
	}
	v, ok := res.value.(map[string]any)
	if !ok {
		return def, res.mismatch(key, def, "object")
	}
	return v, res.detail(v)
}

// RawValueDetails resolves a flag without type coercion. The server
// evaluation endpoint uses it since the caller's expected type is
// not known there.
func (c *Client) RawValueDetails(key string, evalCtx Context) (any, Detail) {
	res := c.resolve(key, evalCtx)
	return res.value, res.detail(res.value)
}

// detail builds the Detail for a resolution carrying the given
// returned value.
func (r resolution) detail(value any) Detail {
	return Detail{
		Value:       value,
		Variant:     r.variant,
		Reason:      r.reason,
		ErrorCode:   r.errorCode,
		TrackEvents: r.trackEvents,
		Err:         r.err,
	}
}

// mismatch builds the Detail for a type coercion failure.
func (r resolution) mismatch(key string, def any, want string) Detail {
	return Detail{
		Value:       def,
		Reason:      ReasonError,
		ErrorCode:   CodeTypeMismatch,
		TrackEvents: r.trackEvents,
		Err:         fmt.Errorf("flag %q: variant %q is not a %s: %w", key, r.variant, want, ErrTypeMismatch),
	}
}

// toFloat coerces any numeric variation value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toInt coerces a numeric variation value to int64, rejecting
// fractional floats.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case float32:
		if float64(n) == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
