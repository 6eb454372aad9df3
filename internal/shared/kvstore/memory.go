package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a single-process Store backed by go-cache. It is meant for
// development and tests; state is not shared across gateway instances.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStore creates a store that sweeps expired items every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	val, found := m.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}

	switch v := val.(type) {
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), nil
	default:
		return nil, fmt.Errorf("kvstore: unexpected value type %T for %s", val, key)
	}
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Set(key, stored, expiration(ttl))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(key)
	return nil
}

// IncrementWithTTL increments the counter at key, creating it with ttlIfNew
// when absent. The whole operation holds the store lock.
func (m *MemoryStore) IncrementWithTTL(_ context.Context, key string, ttlIfNew time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, exp, found := m.cache.GetWithExpiration(key)
	if !found {
		m.cache.Set(key, int64(1), expiration(ttlIfNew))
		return 1, nil
	}

	current, ok := asCounter(val)
	if !ok {
		// a corrupt counter starts a fresh window
		m.cache.Set(key, int64(1), expiration(ttlIfNew))
		return 1, nil
	}

	ttl := cache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			// expired between the janitor runs
			m.cache.Set(key, int64(1), expiration(ttlIfNew))
			return 1, nil
		}
	} else {
		ttl = expiration(ttlIfNew)
	}

	current++
	m.cache.Set(key, current, ttl)
	return current, nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	_, exp, found := m.cache.GetWithExpiration(key)
	if !found {
		return 0, ErrNotFound
	}
	if exp.IsZero() {
		return NoExpiry, nil
	}
	return time.Until(exp), nil
}

// DeletePrefix removes every live key starting with prefix.
func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds for the in-process store.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func asCounter(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return cache.NoExpiration
	}
	return ttl
}
