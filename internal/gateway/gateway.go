// Package gateway composes rate limiting, tier routing, the completion call
// and spend/conversation bookkeeping around a single chat request.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/cache"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/ledger"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/metrics"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/providers"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/ratelimit"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/routing"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/i18n"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/logger"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/models"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// ActionChat is the rate limit action of Chat.
const ActionChat = "chat"

const (
	defaultCompletionTimeout = 60 * time.Second
	defaultBookkeepTimeout   = 5 * time.Second
	defaultCompressThreshold = 30
)

// Stage is a step of the per-request state machine. It is only reported in
// logs; nothing is persisted between requests.
type Stage string

const (
	StageRateChecking    Stage = "rate_checking"
	StageClassifying     Stage = "classifying"
	StageRouting         Stage = "routing"
	StageCompleting      Stage = "completing"
	StageCostRecording   Stage = "cost_recording"
	StageContextUpdating Stage = "context_updating"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// Completer is the outbound completion provider.
type Completer interface {
	ModelFor(tier routing.Tier) string
	Complete(ctx context.Context, model, systemPrompt string, messages []openai.ChatCompletionMessage) (*providers.ChatResponse, error)
}

// AuditSink receives one record per chat request.
type AuditSink interface {
	LogRequest(ctx context.Context, log *models.GatewayLog) error
}

// Message is one turn of the inbound conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the inbound chat call.
type ChatRequest struct {
	CallerID       string
	ConversationID string
	Messages       []Message
	ForceTier      routing.Tier
	// Context is an optional note about the conversation, sent to the model
	// ahead of the messages.
	Context string
	// RateLimit overrides the default per-window cap when positive.
	RateLimit int
}

// ChatResponse is the structured result of a successful Chat.
type ChatResponse struct {
	Text               string       `json:"text"`
	Tier               routing.Tier `json:"tier"`
	Model              string       `json:"model"`
	InputTokens        int          `json:"inputTokens"`
	OutputTokens       int          `json:"outputTokens"`
	CostMinorUnits     int64        `json:"costMinorUnits"`
	RequestID          string       `json:"requestId"`
	Timestamp          time.Time    `json:"timestamp"`
	RateLimitLimit     int          `json:"-"`
	RateLimitRemaining int          `json:"-"`
	RateLimitResetAt   time.Time    `json:"-"`
}

// Config wires a Gateway. Audit and Metrics are optional; without Metrics
// the gateway records into unregistered collectors.
type Config struct {
	Limiter       *ratelimit.Limiter
	Classifier    *routing.Classifier
	Router        *routing.Router
	Completer     Completer
	Ledger        *ledger.Ledger
	Conversations *cache.Cache
	Localizer     *i18n.Localizer
	Audit         AuditSink
	Metrics       *metrics.Metrics
	Logger        *logrus.Logger

	SystemPrompt         string
	RateLimit            int
	RateWindow           time.Duration
	CompletionTimeout    time.Duration
	CompressThreshold    int
	CompressKeepMessages int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Gateway is stateless: every decision re-reads the shared store.
type Gateway struct {
	limiter       *ratelimit.Limiter
	classifier    *routing.Classifier
	router        *routing.Router
	completer     Completer
	ledger        *ledger.Ledger
	conversations *cache.Cache
	localizer     *i18n.Localizer
	audit         AuditSink
	metrics       *metrics.Metrics
	logger        *logrus.Logger

	systemPrompt      string
	rateLimit         int
	rateWindow        time.Duration
	completionTimeout time.Duration
	compressThreshold int
	compressKeep      int
	now               func() time.Time
}

// New validates cfg and builds a Gateway.
func New(cfg Config) (*Gateway, error) {
	switch {
	case cfg.Limiter == nil:
		return nil, errors.New("gateway: rate limiter must not be nil")
	case cfg.Classifier == nil:
		return nil, errors.New("gateway: classifier must not be nil")
	case cfg.Router == nil:
		return nil, errors.New("gateway: router must not be nil")
	case cfg.Completer == nil:
		return nil, errors.New("gateway: completer must not be nil")
	case cfg.Ledger == nil:
		return nil, errors.New("gateway: ledger must not be nil")
	case cfg.Conversations == nil:
		return nil, errors.New("gateway: conversation cache must not be nil")
	case cfg.Localizer == nil:
		return nil, errors.New("gateway: localizer must not be nil")
	case cfg.RateLimit <= 0:
		return nil, errors.New("gateway: rate limit must be positive")
	case cfg.RateWindow <= 0:
		return nil, errors.New("gateway: rate window must be positive")
	}

	g := &Gateway{
		limiter:           cfg.Limiter,
		classifier:        cfg.Classifier,
		router:            cfg.Router,
		completer:         cfg.Completer,
		ledger:            cfg.Ledger,
		conversations:     cfg.Conversations,
		localizer:         cfg.Localizer,
		audit:             cfg.Audit,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		systemPrompt:      cfg.SystemPrompt,
		rateLimit:         cfg.RateLimit,
		rateWindow:        cfg.RateWindow,
		completionTimeout: cfg.CompletionTimeout,
		compressThreshold: cfg.CompressThreshold,
		compressKeep:      cfg.CompressKeepMessages,
		now:               cfg.Now,
	}
	if g.metrics == nil {
		g.metrics = metrics.New(nil)
	}
	if g.logger == nil {
		g.logger = logger.Discard()
	}
	if g.completionTimeout <= 0 {
		g.completionTimeout = defaultCompletionTimeout
	}
	if g.compressThreshold <= 0 {
		g.compressThreshold = defaultCompressThreshold
	}
	if g.compressKeep <= 0 {
		g.compressKeep = cache.DefaultMaxMessages
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Chat runs one request through rate checking, classification, routing,
// the completion call and bookkeeping. Only *RateLimitedError,
// *UpstreamError and ErrInvalidRequest reach the caller; ledger and
// conversation failures are logged and swallowed.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	text, err := req.validate()
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	log := logger.WithCaller(g.logger, req.CallerID, requestID)
	started := g.now()

	// RateChecking
	limit := g.rateLimit
	if req.RateLimit > 0 {
		limit = req.RateLimit
	}

	decision, err := g.limiter.Check(ctx, req.CallerID, ActionChat, limit, g.rateWindow)
	if err != nil {
		log.WithField("stage", StageRateChecking).WithError(err).Error("Rate limit check failed")
		g.metrics.RecordChat("", StageFailed.String())
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if decision.Degraded {
		g.metrics.RecordRateLimitDegraded(g.limiterPolicy())
	}
	if !decision.Allowed {
		retryAfter := decision.RetryAfter(g.now())
		log.WithFields(logrus.Fields{
			"stage":       StageRateChecking,
			"limit":       limit,
			"retry_after": retryAfter.String(),
		}).Info("Rate limited")

		g.metrics.RecordRateLimitDenied(ActionChat)
		g.metrics.RecordChat("", models.StatusRateLimited)
		g.writeAudit(ctx, &models.GatewayLog{
			RequestID: requestID,
			CallerID:  req.CallerID,
			Status:    models.StatusRateLimited,
			CreatedAt: started,
		}, req.ConversationID)

		return nil, &RateLimitedError{Limit: limit, RetryAfter: retryAfter, ResetAt: decision.ResetAt}
	}

	// Classifying, Routing
	complexity := g.classifier.Classify(text)
	tier := g.router.Route(routing.MessageLength(text), complexity, req.ForceTier)
	model := g.completer.ModelFor(tier)

	log = log.WithFields(logrus.Fields{
		"tier":       tier,
		"model":      model,
		"complexity": complexity,
	})
	log.WithField("stage", StageRouting).Debug("Request routed")

	// Completing. The call is detached from the caller so that spend already
	// incurred upstream is still booked after a disconnect.
	detached := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(detached, g.completionTimeout)
	defer cancel()

	callStart := time.Now()
	resp, err := g.completer.Complete(callCtx, model, g.systemPrompt, g.providerMessages(req))
	if err != nil {
		g.metrics.RecordCompletion(tier.String(), "error", time.Since(callStart))
		g.metrics.RecordChat(tier.String(), models.StatusUpstreamError)
		log.WithField("stage", StageCompleting).WithError(err).Error("Completion failed")

		msg := err.Error()
		g.writeAudit(detached, &models.GatewayLog{
			RequestID:    requestID,
			CallerID:     req.CallerID,
			Tier:         tier.String(),
			Model:        model,
			LatencyMs:    int(time.Since(callStart).Milliseconds()),
			Status:       models.StatusUpstreamError,
			ErrorMessage: &msg,
			CreatedAt:    started,
		}, req.ConversationID)

		return nil, &UpstreamError{Message: fmt.Sprintf("%s model unavailable", tier), Err: err}
	}
	g.metrics.RecordCompletion(tier.String(), "ok", time.Since(callStart))

	// CostRecording
	inputTokens := resp.Usage.PromptTokens
	outputTokens := resp.Usage.CompletionTokens
	cost := routing.Cost(tier, inputTokens, outputTokens)
	g.metrics.RecordUsage(tier.String(), cost, inputTokens, outputTokens)

	bookCtx, bookCancel := context.WithTimeout(detached, defaultBookkeepTimeout)
	defer bookCancel()

	if err := g.ledger.Record(bookCtx, req.CallerID, tier, cost, int64(inputTokens+outputTokens)); err != nil {
		g.metrics.RecordStoreError("ledger")
		log.WithField("stage", StageCostRecording).WithError(err).Warn("Failed to record cost")
	}

	// ContextUpdating
	now := g.now()
	compressed := false
	if req.ConversationID != "" {
		compressed = g.appendReply(bookCtx, log, req, cache.Message{
			ID:             requestID,
			Role:           cache.RoleAssistant,
			Content:        resp.Content,
			Timestamp:      now,
			Tier:           tier,
			CostMinorUnits: cost,
			TokenCount:     int64(outputTokens),
		})
	}

	g.metrics.RecordChat(tier.String(), models.StatusOK)
	g.writeAudit(bookCtx, &models.GatewayLog{
		RequestID:        requestID,
		CallerID:         req.CallerID,
		Tier:             tier.String(),
		Model:            model,
		CostMinorUnits:   cost,
		LatencyMs:        resp.LatencyMs,
		PromptTokens:     inputTokens,
		CompletionTokens: outputTokens,
		TotalTokens:      inputTokens + outputTokens,
		Compressed:       compressed,
		Status:           models.StatusOK,
		CreatedAt:        started,
	}, req.ConversationID)

	log.WithFields(logrus.Fields{
		"stage":         StageDone,
		"cost":          cost,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	}).Info("Chat completed")

	return &ChatResponse{
		Text:               resp.Content,
		Tier:               tier,
		Model:              model,
		InputTokens:        inputTokens,
		OutputTokens:       outputTokens,
		CostMinorUnits:     cost,
		RequestID:          requestID,
		Timestamp:          now,
		RateLimitLimit:     limit,
		RateLimitRemaining: decision.Remaining,
		RateLimitResetAt:   decision.ResetAt,
	}, nil
}

// appendReply adds the assistant reply to the cached conversation, creating
// it if needed and compressing it past the threshold. It reports whether a
// compression happened.
func (g *Gateway) appendReply(ctx context.Context, log *logrus.Entry, req ChatRequest, msg cache.Message) bool {
	log = log.WithFields(logrus.Fields{
		"stage":           StageContextUpdating,
		"conversation_id": req.ConversationID,
	})

	conv, err := g.conversations.Get(ctx, req.CallerID, req.ConversationID)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		conv = &cache.Context{}
	case kvstore.IsUnavailable(err):
		// overwriting with a fresh context would lose history the store still holds
		g.metrics.RecordStoreError("conversation")
		log.WithError(err).Warn("Failed to load conversation")
		return false
	case err != nil:
		log.WithError(err).Warn("Discarding unreadable conversation")
		conv = &cache.Context{}
	}

	cache.Append(conv, msg)

	compressed := false
	if len(conv.Messages) > g.compressThreshold {
		conv = g.conversations.Compress(conv, g.compressKeep)
		compressed = true
		g.metrics.RecordCompression()
		log.WithField("compression_level", conv.CompressionLevel).Debug("Conversation compressed")
	}

	if err := g.conversations.Set(ctx, req.CallerID, req.ConversationID, conv); err != nil {
		g.metrics.RecordStoreError("conversation")
		log.WithError(err).Warn("Failed to save conversation")
	}
	return compressed
}

// providerMessages converts the inbound turns, prefixed by the optional
// context note.
func (g *Gateway) providerMessages(req ChatRequest) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if note := strings.TrimSpace(req.Context); note != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: g.localizer.Default(i18n.MsgConversationContext, map[string]interface{}{"Context": note}),
		})
	}
	for _, m := range req.Messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (g *Gateway) writeAudit(ctx context.Context, entry *models.GatewayLog, conversationID string) {
	if g.audit == nil {
		return
	}
	if conversationID != "" {
		entry.ConversationID = &conversationID
	}
	if err := g.audit.LogRequest(ctx, entry); err != nil {
		g.logger.WithField("request_id", entry.RequestID).WithError(err).Warn("Failed to write audit log")
	}
}

func (g *Gateway) limiterPolicy() string {
	return g.limiter.Policy().String()
}

// DailyCostSummary returns the caller's spend for date (YYYY-MM-DD, today
// when empty). It returns kvstore.ErrNotFound when nothing was recorded.
func (g *Gateway) DailyCostSummary(ctx context.Context, callerID, date string) (*ledger.CostSummary, error) {
	if callerID == "" {
		return nil, invalid("caller id is required")
	}
	if date != "" {
		if _, err := time.Parse(ledger.DateLayout, date); err != nil {
			return nil, invalid(fmt.Sprintf("date %q is not YYYY-MM-DD", date))
		}
	}
	return g.ledger.DailySummary(ctx, callerID, date)
}

// CostOptimizationSuggestions returns advice derived from today's spend.
func (g *Gateway) CostOptimizationSuggestions(ctx context.Context, callerID string) (*ledger.Suggestions, error) {
	if callerID == "" {
		return nil, invalid("caller id is required")
	}
	return g.ledger.Suggestions(ctx, callerID)
}

// Conversation returns the cached context of a conversation.
func (g *Gateway) Conversation(ctx context.Context, callerID, conversationID string) (*cache.Context, error) {
	if callerID == "" || conversationID == "" {
		return nil, invalid("caller id and conversation id are required")
	}
	return g.conversations.Get(ctx, callerID, conversationID)
}

// DeleteConversation drops a cached conversation.
func (g *Gateway) DeleteConversation(ctx context.Context, callerID, conversationID string) error {
	if callerID == "" || conversationID == "" {
		return invalid("caller id and conversation id are required")
	}
	return g.conversations.Delete(ctx, callerID, conversationID)
}

// ForgetCaller erases everything the gateway stores for callerID: rate
// windows, daily cost summaries and every cached conversation. Each kind is
// attempted even when another fails.
func (g *Gateway) ForgetCaller(ctx context.Context, callerID string) error {
	if callerID == "" {
		return invalid("caller id is required")
	}
	// the key separator would let the prefix reach other callers' keys
	if strings.Contains(callerID, ":") {
		return invalid("caller id must not contain ':'")
	}

	var errs []error
	if err := g.limiter.ResetCaller(ctx, callerID); err != nil {
		errs = append(errs, fmt.Errorf("rate limits: %w", err))
	}
	costs, err := g.ledger.Forget(ctx, callerID)
	if err != nil {
		errs = append(errs, fmt.Errorf("cost summaries: %w", err))
	}
	conversations, err := g.conversations.DeleteAll(ctx, callerID)
	if err != nil {
		errs = append(errs, fmt.Errorf("conversations: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	g.logger.WithFields(logrus.Fields{
		"caller_id":      callerID,
		"cost_summaries": costs,
		"conversations":  conversations,
	}).Info("Caller data removed")
	return nil
}

func (s Stage) String() string { return string(s) }

// validate checks the request and returns the text to classify: the content
// of the last user turn.
func (r ChatRequest) validate() (string, error) {
	if strings.TrimSpace(r.CallerID) == "" {
		return "", invalid("caller id is required")
	}
	if len(r.Messages) == 0 {
		return "", invalid("at least one message is required")
	}
	if r.ForceTier != "" && !r.ForceTier.Valid() {
		return "", invalid(fmt.Sprintf("unknown tier %q", r.ForceTier))
	}

	for i, m := range r.Messages {
		if m.Role != string(cache.RoleUser) && m.Role != string(cache.RoleAssistant) {
			return "", invalid(fmt.Sprintf("message %d has unsupported role %q", i, m.Role))
		}
	}

	last := r.Messages[len(r.Messages)-1]
	if last.Role != string(cache.RoleUser) || strings.TrimSpace(last.Content) == "" {
		return "", invalid("last message must be a non-empty user message")
	}
	return last.Content, nil
}
