package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/routing"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/config"
	"github.com/sashabaranov/go-openai"
)

// Manager resolves tiers to models and models to providers, and retries
// transient provider failures on the same model.
type Manager struct {
	providers map[string]Provider
	models    map[routing.Tier]string
	retries   int
	backoff   time.Duration
	maxTokens int
}

// NewManager creates a new provider manager
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		providers: make(map[string]Provider),
		models: map[routing.Tier]string{
			routing.TierLight:    cfg.ModelLight,
			routing.TierStandard: cfg.ModelStandard,
			routing.TierPremium:  cfg.ModelPremium,
		},
		retries:   cfg.CompletionRetries,
		backoff:   cfg.RetryBackoff,
		maxTokens: cfg.MaxOutputTokens,
	}
	if m.retries < 0 {
		m.retries = 0
	}

	// Initialize providers based on available API keys
	if cfg.OpenAIAPIKey != "" {
		m.Register(NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
	}
	if cfg.AnthropicAPIKey != "" {
		m.Register(NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL))
	}

	return m
}

// Register adds or replaces a provider under its name
func (m *Manager) Register(p Provider) {
	m.providers[p.GetProviderName()] = p
}

// ModelFor returns the model configured for a tier
func (m *Manager) ModelFor(tier routing.Tier) string {
	return m.models[tier]
}

// Validate checks that every tier maps to a configured provider
func (m *Manager) Validate() error {
	for _, tier := range routing.Tiers {
		model := m.models[tier]
		if model == "" {
			return fmt.Errorf("no model configured for tier %s", tier)
		}
		if _, _, err := m.GetProvider(model); err != nil {
			return fmt.Errorf("tier %s: %w", tier, err)
		}
	}
	return nil
}

// GetProvider returns the provider for a given model
func (m *Manager) GetProvider(model string) (Provider, string, error) {
	providerName := detectProvider(model)
	if providerName == "" {
		return nil, "", fmt.Errorf("unknown model: %s", model)
	}

	provider, ok := m.providers[providerName]
	if !ok {
		return nil, "", fmt.Errorf("provider %s not configured (check API key)", providerName)
	}

	return provider, providerName, nil
}

// detectProvider determines which provider a model belongs to
func detectProvider(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return "openai"
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	}
	return ""
}

// Complete sends one completion to the provider serving model. Retryable
// failures are retried on the same model; the caller's tier is never
// swapped for another.
func (m *Manager) Complete(ctx context.Context, model, systemPrompt string, messages []openai.ChatCompletionMessage) (*ChatResponse, error) {
	provider, _, err := m.GetProvider(model)
	if err != nil {
		return nil, err
	}

	req := ChatRequest{
		Model:     model,
		System:    systemPrompt,
		Messages:  messages,
		MaxTokens: m.maxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= m.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(m.backoff * time.Duration(attempt)):
			}
		}

		resp, err := provider.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryableError(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// isRetryableError reports whether a failure is transient (rate limit,
// timeout, server error)
func isRetryableError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused")
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
