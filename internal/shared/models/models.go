package models

import "time"

// APIKey represents a gateway API key. CallerID is the app user the key
// belongs to; every rate window, ledger entry and conversation is scoped by it.
type APIKey struct {
	ID                 string
	KeyHash            string
	KeyPrefix          string
	Name               string
	CallerID           string
	RateLimitPerMinute int
	IsActive           bool
	LastUsedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Request outcomes stored in GatewayLog.Status
const (
	StatusOK            = "ok"
	StatusRateLimited   = "rate_limited"
	StatusUpstreamError = "upstream_error"
)

// GatewayLog represents a request log entry
type GatewayLog struct {
	RequestID        string    `json:"request_id"`
	CallerID         string    `json:"caller_id"`
	ConversationID   *string   `json:"conversation_id,omitempty"`
	Tier             string    `json:"tier,omitempty"`
	Model            string    `json:"model,omitempty"`
	CostMinorUnits   int64     `json:"cost_minor_units"`
	LatencyMs        int       `json:"latency_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Compressed       bool      `json:"compressed"`
	Status           string    `json:"status"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
