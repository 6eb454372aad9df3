package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/routing"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
)

const (
	// DefaultTTL is how long an idle conversation stays cached.
	DefaultTTL = 2 * time.Hour

	// DefaultMaxMessages is the number of recent messages Compress keeps.
	DefaultMaxMessages = 20

	// DefaultPinnedMarker identifies an assistant "system notice" that
	// survives compression.
	DefaultPinnedMarker = "sistema"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one cached conversation turn.
type Message struct {
	ID             string       `json:"id"`
	Role           Role         `json:"role"`
	Content        string       `json:"content"`
	Timestamp      time.Time    `json:"timestamp"`
	Tier           routing.Tier `json:"tier,omitempty"`
	CostMinorUnits int64        `json:"costMinorUnits,omitempty"`
	TokenCount     int64        `json:"tokenCount,omitempty"`
}

// Context is the cached working state of a conversation.
type Context struct {
	Messages            []Message    `json:"messages"`
	TotalTokens         int64        `json:"totalTokens"`
	TotalCostMinorUnits int64        `json:"totalCostMinorUnits"`
	LastTier            routing.Tier `json:"lastTier,omitempty"`
	CompressionLevel    int          `json:"compressionLevel"`
}

// Cache stores conversation contexts keyed by (caller, conversation).
type Cache struct {
	store        kvstore.Store
	keys         kvstore.Keyspace
	ttl          time.Duration
	pinnedMarker string
}

// New creates a new conversation cache. Zero ttl and empty marker fall back
// to DefaultTTL and DefaultPinnedMarker.
func New(store kvstore.Store, keys kvstore.Keyspace, ttl time.Duration, pinnedMarker string) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pinnedMarker == "" {
		pinnedMarker = DefaultPinnedMarker
	}
	return &Cache{
		store:        store,
		keys:         keys,
		ttl:          ttl,
		pinnedMarker: pinnedMarker,
	}
}

// Get retrieves a cached context. It returns kvstore.ErrNotFound when the
// conversation is unknown or expired.
func (c *Cache) Get(ctx context.Context, callerID, conversationID string) (*Context, error) {
	val, err := c.store.Get(ctx, c.keys.Conversation(callerID, conversationID))
	if err != nil {
		return nil, err
	}

	var conv Context
	if err := json.Unmarshal(val, &conv); err != nil {
		return nil, fmt.Errorf("failed to deserialize conversation: %w", err)
	}

	return &conv, nil
}

// Set stores a context, restarting its TTL
func (c *Cache) Set(ctx context.Context, callerID, conversationID string, conv *Context) error {
	if conv == nil {
		return errors.New("cache: nil conversation")
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to serialize conversation: %w", err)
	}

	return c.store.Set(ctx, c.keys.Conversation(callerID, conversationID), data, c.ttl)
}

// Delete removes a cached context
func (c *Cache) Delete(ctx context.Context, callerID, conversationID string) error {
	return c.store.Delete(ctx, c.keys.Conversation(callerID, conversationID))
}

// DeleteAll removes every cached conversation of callerID.
func (c *Cache) DeleteAll(ctx context.Context, callerID string) (int64, error) {
	return c.store.DeletePrefix(ctx, c.keys.ConversationPrefix(callerID))
}

// Append adds msg to conv and updates the running totals.
func Append(conv *Context, msg Message) {
	conv.Messages = append(conv.Messages, msg)
	conv.TotalTokens += msg.TokenCount
	conv.TotalCostMinorUnits += msg.CostMinorUnits
	if msg.Tier != "" {
		conv.LastTier = msg.Tier
	}
}

// Compress returns a copy of conv holding at most the last maxMessages
// messages plus, if one was dropped, the first pinned assistant notice.
// Dropped messages are gone for good. TotalTokens is rebuilt from the kept
// messages; the accumulated cost is not.
func (c *Cache) Compress(conv *Context, maxMessages int) *Context {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}

	out := *conv
	out.CompressionLevel = conv.CompressionLevel + 1

	if len(conv.Messages) <= maxMessages {
		out.Messages = append([]Message(nil), conv.Messages...)
		out.TotalTokens = sumTokens(out.Messages)
		return &out
	}

	cut := len(conv.Messages) - maxMessages
	kept := make([]Message, 0, maxMessages+1)
	for _, m := range conv.Messages[:cut] {
		if c.isPinned(m) {
			kept = append(kept, m)
			break
		}
	}
	kept = append(kept, conv.Messages[cut:]...)

	out.Messages = kept
	out.TotalTokens = sumTokens(kept)
	return &out
}

func (c *Cache) isPinned(m Message) bool {
	return m.Role == RoleAssistant && strings.Contains(m.Content, c.pinnedMarker)
}

func sumTokens(msgs []Message) int64 {
	var total int64
	for _, m := range msgs {
		total += m.TokenCount
	}
	return total
}
