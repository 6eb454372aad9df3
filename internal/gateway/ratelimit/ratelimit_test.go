package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, error) { return nil, down() }
func (downStore) Set(context.Context, string, []byte, time.Duration) error {
	return down()
}
func (downStore) Delete(context.Context, string) error { return down() }
func (downStore) IncrementWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, down()
}
func (downStore) TTL(context.Context, string) (time.Duration, error) { return 0, down() }
func (downStore) DeletePrefix(context.Context, string) (int64, error) {
	return 0, down()
}

// brokenIncrStore fails increments with an error that is not marked as
// backend unavailability.
type brokenIncrStore struct {
	*kvstore.MemoryStore
}

func (brokenIncrStore) IncrementWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func down() error {
	return fmt.Errorf("%w: connection refused", kvstore.ErrBackendUnavailable)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newLimiter(t *testing.T, store kvstore.Store, policy FailurePolicy) *Limiter {
	t.Helper()
	l, err := New(store, kvstore.NewKeyspace("test:"), policy, quietLogger())
	require.NoError(t, err)
	return l
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	l := newLimiter(t, kvstore.NewMemoryStore(time.Minute), FailClosed)

	d, err := l.Check(ctx, "user-1", "ai-request", 2, 60*time.Second)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Remaining)

	d, err = l.Check(ctx, "user-1", "ai-request", 2, 60*time.Second)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)

	d, err = l.Check(ctx, "user-1", "ai-request", 2, 60*time.Second)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)
	require.False(t, d.Degraded)

	retry := d.RetryAfter(time.Now())
	require.Greater(t, retry, time.Duration(0))
	require.LessOrEqual(t, retry, 60*time.Second)
}

func TestLimiter_KeysAreScoped(t *testing.T) {
	ctx := context.Background()
	l := newLimiter(t, kvstore.NewMemoryStore(time.Minute), FailClosed)

	d, err := l.Check(ctx, "user-1", "ai-request", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Check(ctx, "user-2", "ai-request", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Check(ctx, "user-1", "export", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Check(ctx, "user-1", "ai-request", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestLimiter_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	l := newLimiter(t, kvstore.NewMemoryStore(time.Minute), FailClosed)

	d, err := l.Check(ctx, "user-1", "a", 1, 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Check(ctx, "user-1", "a", 1, 30*time.Millisecond)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	time.Sleep(50 * time.Millisecond)

	d, err = l.Check(ctx, "user-1", "a", 1, 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestLimiter_ResetCaller(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(time.Minute)
	l := newLimiter(t, store, FailClosed)

	for _, action := range []string{"chat", "export"} {
		d, err := l.Check(ctx, "u", action, 1, time.Minute)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Check(ctx, "other", "chat", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	require.NoError(t, l.ResetCaller(ctx, "u"))

	for _, action := range []string{"chat", "export"} {
		d, err := l.Check(ctx, "u", action, 1, time.Minute)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err = l.Check(ctx, "other", "chat", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.Error(t, newLimiter(t, downStore{}, FailOpen).ResetCaller(ctx, "u"))
}

func TestLimiter_CorruptCounterStartsFreshWindow(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(time.Minute)
	l := newLimiter(t, store, FailClosed)

	keys := kvstore.NewKeyspace("test:")
	require.NoError(t, store.Set(ctx, keys.RateLimit("u1", "chat"), []byte("garbage"), 0))

	d, err := l.Check(ctx, "u1", "chat", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.False(t, d.Degraded)
	require.Equal(t, 1, d.Remaining)

	d, err = l.Check(ctx, "u1", "chat", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Check(ctx, "u1", "chat", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestLimiter_PolicyCoversEveryStoreError(t *testing.T) {
	store := brokenIncrStore{kvstore.NewMemoryStore(time.Minute)}

	d, err := newLimiter(t, store, FailOpen).Check(context.Background(), "u", "a", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.True(t, d.Degraded)

	d, err = newLimiter(t, store, FailClosed).Check(context.Background(), "u", "a", 5, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.True(t, d.Degraded)
}

func TestLimiter_FailOpen(t *testing.T) {
	l := newLimiter(t, downStore{}, FailOpen)

	d, err := l.Check(context.Background(), "u", "a", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.True(t, d.Degraded)
	require.Equal(t, 5, d.Remaining)
}

func TestLimiter_FailClosed(t *testing.T) {
	l := newLimiter(t, downStore{}, FailClosed)

	d, err := l.Check(context.Background(), "u", "a", 5, time.Minute)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.True(t, d.Degraded)
	require.Equal(t, 0, d.Remaining)
}

func TestLimiter_InvalidArguments(t *testing.T) {
	l := newLimiter(t, kvstore.NewMemoryStore(time.Minute), FailOpen)

	_, err := l.Check(context.Background(), "u", "a", 0, time.Minute)
	require.Error(t, err)

	_, err = l.Check(context.Background(), "u", "a", 1, 0)
	require.Error(t, err)
}

func TestNew_RequiresPolicy(t *testing.T) {
	_, err := New(kvstore.NewMemoryStore(time.Minute), kvstore.NewKeyspace(""), 0, nil)
	require.Error(t, err)

	_, err = New(nil, kvstore.NewKeyspace(""), FailOpen, nil)
	require.Error(t, err)
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("open")
	require.NoError(t, err)
	require.Equal(t, FailOpen, p)

	p, err = ParseFailurePolicy("closed")
	require.NoError(t, err)
	require.Equal(t, FailClosed, p)

	_, err = ParseFailurePolicy("")
	require.Error(t, err)
}
