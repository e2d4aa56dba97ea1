// Package tgerrors defines the sentinel error kinds the gateway's
// components return, so the HTTP surface can map them to status codes
// without inspecting upstream RPC error strings itself.
package tgerrors

import "errors"

// Sentinel errors returned by internal/tgstream components. Wrap with
// fmt.Errorf("...: %w", ErrUpstreamTransient) to attach context; callers use
// errors.Is to classify.
var (
	// ErrRangeNotSatisfiable means the requested byte range falls
	// outside [0, size).
	ErrRangeNotSatisfiable = errors.New("tgstream: range not satisfiable")

	// ErrUpstreamRateLimit wraps a FLOOD_WAIT response from the RPC
	// network; callers may retry once after the carried delay.
	ErrUpstreamRateLimit = errors.New("tgstream: upstream rate limited")

	// ErrUpstreamTransient covers connection resets, timeouts, and
	// other retryable network failures talking to a DC.
	ErrUpstreamTransient = errors.New("tgstream: upstream transient failure")

	// ErrUpstreamAuthMisroute covers DC_ID_INVALID and related errors
	// that indicate the request reached the wrong data center.
	ErrUpstreamAuthMisroute = errors.New("tgstream: upstream auth misroute")

	// ErrCallerCancellation means the HTTP client disconnected or the
	// request context was canceled mid-stream.
	ErrCallerCancellation = errors.New("tgstream: caller canceled")
)

// RateLimit carries the FLOOD_WAIT delay alongside ErrUpstreamRateLimit
// so a retrying caller knows how long to back off.
type RateLimit struct {
	Seconds int
	err     error
}

func NewRateLimit(seconds int) *RateLimit {
	return &RateLimit{Seconds: seconds, err: ErrUpstreamRateLimit}
}

func (e *RateLimit) Error() string { return ErrUpstreamRateLimit.Error() }
func (e *RateLimit) Unwrap() error { return e.err }
