// Package evaluate resolves feature flags against a configuration
// set: typed accessors with caller-supplied defaults on top of
// targeting rules, percentage splits, and rollout strategies.
package evaluate

import "errors"

// Reason explains how a flag value was resolved.
type Reason string

// Resolution reasons.
const (
	// ReasonStatic: the default rule selected a fixed variation.
	ReasonStatic Reason = "STATIC"

	// ReasonTargetingMatch: a targeting rule's query matched the
	// evaluation context.
	ReasonTargetingMatch Reason = "TARGETING_MATCH"

	// ReasonSplit: the value came from a percentage split bucket.
	ReasonSplit Reason = "SPLIT"

	// ReasonDisabled: the flag is disabled or outside its
	// experimentation window; the caller's default was returned.
	ReasonDisabled Reason = "DISABLED"

	// ReasonError: resolution failed; the caller's default was
	// returned.
	ReasonError Reason = "ERROR"
)

// ErrorCode classifies a failed resolution.
type ErrorCode string

// Resolution error codes.
const (
	CodeFlagNotFound ErrorCode = "FLAG_NOT_FOUND"
	CodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	CodeGeneral      ErrorCode = "GENERAL"
)

// Sentinel resolution errors. Detail.Err wraps one of these so
// callers can branch with errors.Is.
var (
	ErrFlagNotFound = errors.New("flag not found")
	ErrTypeMismatch = errors.New("flag value type mismatch")
)

// Detail describes one flag resolution.
type Detail struct {
	// Value is the resolved value; on failure it is the caller's
	// default.
	Value any `json:"value"`

	// Variant names the variation selected, empty on failure.
	Variant string `json:"variant,omitempty"`

	Reason    Reason    `json:"reason"`
	ErrorCode ErrorCode `json:"errorCode,omitempty"`

	// TrackEvents reflects the flag's trackEvents setting so callers
	// know whether to record an evaluation event.
	TrackEvents bool `json:"-"`

	// Err carries the resolution error, nil on success.
	Err error `json:"-"`
}
