// Package ratelimit enforces a fixed-window request cap per (caller, action).
//
// The window is the TTL of a counter in the shared store: the counter is
// created with the window as its expiry and simply disappears when the window
// lapses. A burst straddling a window boundary can therefore admit close to
// twice the limit; that imprecision is accepted.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/sirupsen/logrus"
)

// FailurePolicy decides what Check does when the store is unreachable.
type FailurePolicy int

const (
	// FailOpen admits requests while the store is down.
	FailOpen FailurePolicy = iota + 1
	// FailClosed rejects requests while the store is down.
	FailClosed
)

func (p FailurePolicy) String() string {
	switch p {
	case FailOpen:
		return "open"
	case FailClosed:
		return "closed"
	default:
		return "unset"
	}
}

// ParseFailurePolicy parses "open" or "closed".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	default:
		return 0, fmt.Errorf("invalid rate limit failure policy %q (want open or closed)", s)
	}
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// Degraded is set when the store failed and the policy decided.
	Degraded bool
}

// RetryAfter returns how long a denied caller should wait.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter checks and counts requests against the shared store.
type Limiter struct {
	store  kvstore.Store
	keys   kvstore.Keyspace
	policy FailurePolicy
	logger *logrus.Logger
	now    func() time.Time
}

// New creates a limiter. The failure policy has no default and must be set.
func New(store kvstore.Store, keys kvstore.Keyspace, policy FailurePolicy, logger *logrus.Logger) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store must not be nil")
	}
	if policy != FailOpen && policy != FailClosed {
		return nil, errors.New("ratelimit: failure policy must be open or closed")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Limiter{
		store:  store,
		keys:   keys,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Policy returns the configured failure policy.
func (l *Limiter) Policy() FailurePolicy {
	return l.policy
}

// Check counts one request for (callerID, action) unless the window is full.
func (l *Limiter) Check(ctx context.Context, callerID, action string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{}, fmt.Errorf("ratelimit: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return Decision{}, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}

	key := l.keys.RateLimit(callerID, action)
	now := l.now()

	count, err := l.currentCount(ctx, key)
	if err != nil {
		return l.degrade(callerID, action, limit, window, now, err)
	}

	if count >= limit {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   now.Add(l.windowLeft(ctx, key, window)),
		}, nil
	}

	newCount, err := l.store.IncrementWithTTL(ctx, key, window)
	if err != nil {
		return l.degrade(callerID, action, limit, window, now, err)
	}

	// a concurrent caller filled the window between the read and the increment
	if newCount > int64(limit) {
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   now.Add(l.windowLeft(ctx, key, window)),
		}, nil
	}

	return Decision{
		Allowed:   true,
		Remaining: limit - int(newCount),
		ResetAt:   now.Add(window),
	}, nil
}

// ResetCaller drops every window of callerID.
func (l *Limiter) ResetCaller(ctx context.Context, callerID string) error {
	_, err := l.store.DeletePrefix(ctx, l.keys.RateLimitPrefix(callerID))
	return err
}

func (l *Limiter) currentCount(ctx context.Context, key string) (int, error) {
	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(string(raw))
	if err != nil {
		// a corrupt counter is treated as an empty window
		l.logger.WithField("key", key).Warn("Non-numeric rate limit counter")
		return 0, nil
	}
	return n, nil
}

func (l *Limiter) windowLeft(ctx context.Context, key string, window time.Duration) time.Duration {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return window
	}
	return ttl
}

// degrade applies the failure policy to any store error.
func (l *Limiter) degrade(callerID, action string, limit int, window time.Duration, now time.Time, cause error) (Decision, error) {
	l.logger.WithFields(logrus.Fields{
		"caller_id":   callerID,
		"action":      action,
		"policy":      l.policy.String(),
		"unavailable": kvstore.IsUnavailable(cause),
	}).WithError(cause).Warn("Rate limit store failed")

	if l.policy == FailOpen {
		return Decision{
			Allowed:   true,
			Remaining: limit,
			ResetAt:   now.Add(window),
			Degraded:  true,
		}, nil
	}

	return Decision{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   now.Add(window),
		Degraded:  true,
	}, nil
}
