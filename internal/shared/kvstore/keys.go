package kvstore

import "fmt"

// DefaultPrefix namespaces every key written by the gateway.
const DefaultPrefix = "racha-ai:"

// Keyspace builds the backend keys for each entity kind.
type Keyspace struct {
	Prefix string
}

// NewKeyspace returns a Keyspace, falling back to DefaultPrefix.
func NewKeyspace(prefix string) Keyspace {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyspace{Prefix: prefix}
}

func (k Keyspace) Conversation(callerID, conversationID string) string {
	return fmt.Sprintf("%sconversation:%s:%s:context", k.Prefix, callerID, conversationID)
}

func (k Keyspace) DailyCosts(callerID, date string) string {
	return fmt.Sprintf("%sai:costs:%s:%s", k.Prefix, callerID, date)
}

func (k Keyspace) RateLimit(callerID, action string) string {
	return fmt.Sprintf("%srate_limit:%s:%s", k.Prefix, callerID, action)
}

// The prefixes below select every key of one kind owned by a caller.

func (k Keyspace) ConversationPrefix(callerID string) string {
	return fmt.Sprintf("%sconversation:%s:", k.Prefix, callerID)
}

func (k Keyspace) DailyCostsPrefix(callerID string) string {
	return fmt.Sprintf("%sai:costs:%s:", k.Prefix, callerID)
}

func (k Keyspace) RateLimitPrefix(callerID string) string {
	return fmt.Sprintf("%srate_limit:%s:", k.Prefix, callerID)
}
