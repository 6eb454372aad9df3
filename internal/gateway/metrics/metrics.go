package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides methods to record metrics
type Metrics struct {
	// Chat metrics
	chatRequests       *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec

	// Spend metrics
	costMinorUnits *prometheus.CounterVec
	tokensUsed     *prometheus.CounterVec

	// Rate limit metrics
	rateLimitDenied   *prometheus.CounterVec
	rateLimitDegraded *prometheus.CounterVec

	// Store metrics
	storeErrors              *prometheus.CounterVec
	conversationCompressions prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		chatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "racha_ai_chat_requests_total",
			Help: "Total number of chat requests by tier and outcome",
		}, []string{"tier", "status"}),

		completionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "racha_ai_completion_duration_seconds",
			Help:    "Duration of provider completion calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"tier", "status"}),

		costMinorUnits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "racha_ai_cost_minor_units_total",
			Help: "Accumulated cost in minor currency units",
		}, []string{"tier"}),

		tokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "racha_ai_tokens_total",
			Help: "Tokens consumed by direction",
		}, []string{"tier", "direction"}),

		rateLimitDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "racha_ai_rate_limit_denied_total",
			Help: "Requests denied by the rate limiter",
		}, []string{"action"}),

		rateLimitDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "racha_ai_rate_limit_degraded_total",
			Help: "Rate limit decisions taken by failure policy",
		}, []string{"policy"}),

		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "racha_ai_store_errors_total",
			Help: "Swallowed key-value store failures by component",
		}, []string{"component"}),

		conversationCompressions: factory.NewCounter(prometheus.CounterOpts{
			Name: "racha_ai_conversation_compressions_total",
			Help: "Total number of conversation compressions",
		}),
	}
}

// RecordChat records the outcome of a chat request
func (m *Metrics) RecordChat(tier, status string) {
	m.chatRequests.WithLabelValues(tier, status).Inc()
}

// RecordCompletion records a provider call
func (m *Metrics) RecordCompletion(tier, status string, duration time.Duration) {
	m.completionDuration.WithLabelValues(tier, status).Observe(duration.Seconds())
}

// RecordUsage records spend and token usage of a completed request
func (m *Metrics) RecordUsage(tier string, cost int64, inputTokens, outputTokens int) {
	m.costMinorUnits.WithLabelValues(tier).Add(float64(cost))
	m.tokensUsed.WithLabelValues(tier, "input").Add(float64(inputTokens))
	m.tokensUsed.WithLabelValues(tier, "output").Add(float64(outputTokens))
}

// RecordRateLimitDenied records a denied request
func (m *Metrics) RecordRateLimitDenied(action string) {
	m.rateLimitDenied.WithLabelValues(action).Inc()
}

// RecordRateLimitDegraded records a decision taken without the store
func (m *Metrics) RecordRateLimitDegraded(policy string) {
	m.rateLimitDegraded.WithLabelValues(policy).Inc()
}

// RecordStoreError records a swallowed store failure
func (m *Metrics) RecordStoreError(component string) {
	m.storeErrors.WithLabelValues(component).Inc()
}

// RecordCompression records a conversation compression
func (m *Metrics) RecordCompression() {
	m.conversationCompressions.Inc()
}
