package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordChat("light", "ok")
	m.RecordChat("light", "ok")
	m.RecordUsage("light", 3, 12, 7)
	m.RecordRateLimitDegraded("open")
	m.RecordStoreError("ledger")
	m.RecordCompression()
	m.RecordCompletion("light", "ok", 20*time.Millisecond)

	require.Equal(t, 2.0, counterValue(t, reg, "racha_ai_chat_requests_total", map[string]string{"tier": "light", "status": "ok"}))
	require.Equal(t, 3.0, counterValue(t, reg, "racha_ai_cost_minor_units_total", map[string]string{"tier": "light"}))
	require.Equal(t, 7.0, counterValue(t, reg, "racha_ai_tokens_total", map[string]string{"tier": "light", "direction": "output"}))
	require.Equal(t, 1.0, counterValue(t, reg, "racha_ai_rate_limit_degraded_total", map[string]string{"policy": "open"}))
	require.Equal(t, 1.0, counterValue(t, reg, "racha_ai_store_errors_total", map[string]string{"component": "ledger"}))
	require.Equal(t, 1.0, counterValue(t, reg, "racha_ai_conversation_compressions_total", nil))
}

func TestMetrics_InstancesAreIndependent(t *testing.T) {
	regA, regB := prometheus.NewRegistry(), prometheus.NewRegistry()
	a, b := New(regA), New(regB)

	a.RecordRateLimitDenied("chat")

	require.Equal(t, 1.0, counterValue(t, regA, "racha_ai_rate_limit_denied_total", map[string]string{"action": "chat"}))
	require.Zero(t, counterValue(t, regB, "racha_ai_rate_limit_denied_total", map[string]string{"action": "chat"}))
	b.RecordRateLimitDenied("chat")

	// unregistered collectors still record
	require.NotPanics(t, func() { New(nil).RecordChat("", "failed") })

	// a registry rejects a second set of the same collectors
	require.Panics(t, func() { New(regA) })
}
