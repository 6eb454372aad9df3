package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRequest marks input the gateway refuses before any work.
var ErrInvalidRequest = errors.New("invalid request")

// RateLimitedError is returned when the caller's window is full.
type RateLimitedError struct {
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit of %d requests exceeded, retry after %s", e.Limit, e.RetryAfter.Round(time.Second))
}

// UpstreamError is returned when the completion provider failed or timed
// out. The request may be retried.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "upstream: " + e.Message
	}
	return fmt.Sprintf("upstream: %s: %v", e.Message, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}
