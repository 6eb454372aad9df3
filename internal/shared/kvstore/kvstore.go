// Package kvstore defines the contract of the shared TTL-capable key/value
// cache backend used by the gateway and provides an in-process implementation.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist (or has expired).
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrBackendUnavailable wraps any failure talking to the backend.
	ErrBackendUnavailable = errors.New("kvstore: backend unavailable")
)

// NoExpiry is returned by TTL for keys that exist but never expire.
const NoExpiry time.Duration = -1

// Store is the set of operations the gateway needs from the cache backend.
// Implementations must make IncrementWithTTL atomic: the increment and the
// TTL assignment of a newly created counter happen together.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IncrementWithTTL(ctx context.Context, key string, ttlIfNew time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	// DeletePrefix removes every key starting with prefix and reports how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Pinger is implemented by stores that can report backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IsUnavailable reports whether err is a backend failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
