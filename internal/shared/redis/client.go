package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/go-redis/redis/v8"
)

// incrWithTTL increments KEYS[1] and, when the counter was just created or
// carries no expiry, sets its TTL to ARGV[1] milliseconds in the same step.
// A value that is not an integer is replaced by a fresh counter.
var incrWithTTL = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v and not string.match(v, '^%-?%d+$') then
	redis.call('SET', KEYS[1], '1', 'PX', ARGV[1])
	return 1
end
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// scanBatch is the SCAN COUNT hint and the DEL batch size of DeletePrefix.
const scanBatch = 100

// Client implements kvstore.Store on top of Redis.
type Client struct {
	client *redis.Client
}

var _ kvstore.Store = (*Client)(nil)

// New creates a new Redis client
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis ping failed: %w", err)
	}

	return &Client{client: client}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Get retrieves a value by key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return val, nil
}

// Set stores a value with TTL
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete removes a key
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// IncrementWithTTL atomically increments a counter, assigning ttlIfNew when
// the counter is created.
func (c *Client) IncrementWithTTL(ctx context.Context, key string, ttlIfNew time.Duration) (int64, error) {
	ms := ttlIfNew.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	n, err := incrWithTTL.Run(ctx, c.client, []string{key}, ms).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// DeletePrefix scans for keys starting with prefix and deletes them in
// batches. Keys written during the scan may survive.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	batch := make([]string, 0, scanBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return unavailable(err)
		}
		deleted += n
		batch = batch[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, escapePattern(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, unavailable(err)
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// TTL returns the remaining time to live of a key
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	// go-redis reports the -2/-1 sentinels unscaled
	switch ttl {
	case -2:
		return 0, kvstore.ErrNotFound
	case -1:
		return kvstore.NoExpiry, nil
	}
	return ttl, nil
}

// escapePattern quotes the glob metacharacters of a literal key prefix.
func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", kvstore.ErrBackendUnavailable, err)
}
