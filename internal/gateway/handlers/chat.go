package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/gateway"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/cache"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/ledger"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/routing"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Service is the gateway surface served over HTTP.
type Service interface {
	Chat(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatResponse, error)
	DailyCostSummary(ctx context.Context, callerID, date string) (*ledger.CostSummary, error)
	CostOptimizationSuggestions(ctx context.Context, callerID string) (*ledger.Suggestions, error)
	Conversation(ctx context.Context, callerID, conversationID string) (*cache.Context, error)
	DeleteConversation(ctx context.Context, callerID, conversationID string) error
	ForgetCaller(ctx context.Context, callerID string) error
}

type ChatHandler struct {
	svc    Service
	logger *logrus.Logger
}

func NewChatHandler(svc Service, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		svc:    svc,
		logger: logger,
	}
}

type chatRequest struct {
	ConversationID string            `json:"conversationId"`
	Messages       []gateway.Message `json:"messages"`
	ForceTier      string            `json:"forceTier"`
	Context        string            `json:"context"`
}

// HandleChat handles POST /v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := APIKeyFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	var body chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	tier, err := routing.ParseTier(body.ForceTier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.svc.Chat(r.Context(), gateway.ChatRequest{
		CallerID:       apiKey.CallerID,
		ConversationID: body.ConversationID,
		Messages:       body.Messages,
		ForceTier:      tier,
		Context:        body.Context,
		RateLimit:      apiKey.RateLimitPerMinute,
	})

	// the caller is gone; bookkeeping already ran, there is nobody to answer
	if r.Context().Err() != nil {
		h.logger.WithField("caller_id", apiKey.CallerID).Info("Client disconnected before chat response")
		return
	}

	if err != nil {
		h.writeChatError(w, err)
		return
	}

	setRateLimitHeaders(w, resp.RateLimitLimit, resp.RateLimitRemaining, resp.RateLimitResetAt)
	w.Header().Set("X-Request-ID", resp.RequestID)
	w.Header().Set("X-Cost-Minor-Units", strconv.FormatInt(resp.CostMinorUnits, 10))
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error) {
	var limited *gateway.RateLimitedError
	var upstream *gateway.UpstreamError

	switch {
	case errors.As(err, &limited):
		setRateLimitHeaders(w, limited.Limit, 0, limited.ResetAt)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", upstream.Message)
	default:
		h.writeServiceError(w, err)
	}
}

// writeServiceError maps the errors shared by every endpoint.
func (h *ChatHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, kvstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case kvstore.IsUnavailable(err):
		h.logger.WithError(err).Error("Store unavailable")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable")
	default:
		h.logger.WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit, remaining int, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !resetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
