// Package ledger accumulates advisory per-caller, per-day AI spend.
//
// Record is a plain read-modify-write of one JSON document per (caller, day).
// Two gateways recording for the same caller at the same instant can lose one
// of the updates; the ledger is for reporting, not billing.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/routing"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/i18n"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
)

const (
	// DateLayout is the calendar-day format used in keys and queries.
	DateLayout = "2006-01-02"

	// DefaultRetention is how long a day's summary is kept.
	DefaultRetention = 24 * time.Hour

	premiumRequestThreshold  = 2
	standardRequestThreshold = 10
	heavyUsageThreshold      = 50
	premiumSavingsRate       = 0.6
	standardSavingsRate      = 0.3
)

// TierUsage is the spend attributed to one tier.
type TierUsage struct {
	Requests int64 `json:"requests"`
	Cost     int64 `json:"cost"`
	Tokens   int64 `json:"tokens"`
}

// CostSummary is one caller's spend for one calendar day.
type CostSummary struct {
	TotalCostMinorUnits int64                       `json:"totalCostMinorUnits"`
	RequestCount        int64                       `json:"requestCount"`
	TokensUsed          int64                       `json:"tokensUsed"`
	PerTier             map[routing.Tier]*TierUsage `json:"perTier"`
}

// NewCostSummary returns an empty summary with a bucket for every tier.
func NewCostSummary() *CostSummary {
	s := &CostSummary{PerTier: make(map[routing.Tier]*TierUsage, len(routing.Tiers))}
	for _, tier := range routing.Tiers {
		s.PerTier[tier] = &TierUsage{}
	}
	return s
}

// Tier returns the bucket for tier, never nil.
func (s *CostSummary) Tier(tier routing.Tier) TierUsage {
	if u, ok := s.PerTier[tier]; ok && u != nil {
		return *u
	}
	return TierUsage{}
}

func (s *CostSummary) add(tier routing.Tier, cost, tokens int64) {
	s.TotalCostMinorUnits += cost
	s.RequestCount++
	s.TokensUsed += tokens

	u, ok := s.PerTier[tier]
	if !ok || u == nil {
		u = &TierUsage{}
		s.PerTier[tier] = u
	}
	u.Requests++
	u.Cost += cost
	u.Tokens += tokens
}

// Suggestions is the cost-optimization report for a caller.
type Suggestions struct {
	CurrentUsage               *CostSummary `json:"currentUsage"`
	Suggestions                []string     `json:"suggestions"`
	EstimatedSavingsMinorUnits int64        `json:"estimatedSavingsMinorUnits"`
}

// Ledger records and reads daily cost summaries.
type Ledger struct {
	store     kvstore.Store
	keys      kvstore.Keyspace
	retention time.Duration
	location  *time.Location
	localizer *i18n.Localizer
	now       func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.retention = d
		}
	}
}

// WithLocation sets the time zone that decides calendar days (UTC by default).
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger. The localizer renders suggestion texts.
func New(store kvstore.Store, keys kvstore.Keyspace, localizer *i18n.Localizer, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger: store must not be nil")
	}
	if localizer == nil {
		return nil, errors.New("ledger: localizer must not be nil")
	}

	l := &Ledger{
		store:     store,
		keys:      keys,
		retention: DefaultRetention,
		location:  time.UTC,
		localizer: localizer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Today returns the current calendar day in the ledger's time zone.
func (l *Ledger) Today() string {
	return l.now().In(l.location).Format(DateLayout)
}

// Record adds one completed request to the caller's summary for today.
func (l *Ledger) Record(ctx context.Context, callerID string, tier routing.Tier, costMinorUnits int64, tokens int64) error {
	key := l.keys.DailyCosts(callerID, l.Today())

	summary, err := l.load(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		summary = NewCostSummary()
	} else if err != nil {
		return err
	}

	summary.add(tier, costMinorUnits, tokens)

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize cost summary: %w", err)
	}

	return l.store.Set(ctx, key, data, l.retention)
}

// DailySummary returns the caller's summary for date (YYYY-MM-DD, today when
// empty). It returns kvstore.ErrNotFound when nothing was recorded.
func (l *Ledger) DailySummary(ctx context.Context, callerID, date string) (*CostSummary, error) {
	if date == "" {
		date = l.Today()
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	return l.load(ctx, l.keys.DailyCosts(callerID, date))
}

// Forget drops every daily summary of callerID and returns how many were
// removed.
func (l *Ledger) Forget(ctx context.Context, callerID string) (int64, error) {
	return l.store.DeletePrefix(ctx, l.keys.DailyCostsPrefix(callerID))
}

// Suggestions derives cost-saving advice from today's summary.
func (l *Ledger) Suggestions(ctx context.Context, callerID string) (*Suggestions, error) {
	summary, err := l.DailySummary(ctx, callerID, "")
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return nil, err
	}

	return l.Suggest(summary), nil
}

// Suggest is the pure derivation behind Suggestions. summary may be nil.
func (l *Ledger) Suggest(summary *CostSummary) *Suggestions {
	out := &Suggestions{CurrentUsage: summary, Suggestions: []string{}}

	if summary != nil {
		savings := 0.0

		if premium := summary.Tier(routing.TierPremium); premium.Requests > premiumRequestThreshold {
			out.Suggestions = append(out.Suggestions, l.localizer.Default(i18n.MsgReducePremium, nil))
			savings += float64(premium.Cost) * premiumSavingsRate
		}

		if standard := summary.Tier(routing.TierStandard); standard.Requests > standardRequestThreshold {
			out.Suggestions = append(out.Suggestions, l.localizer.Default(i18n.MsgReduceStandard, nil))
			savings += float64(standard.Cost) * standardSavingsRate
		}

		if summary.RequestCount > heavyUsageThreshold {
			out.Suggestions = append(out.Suggestions, l.localizer.Default(i18n.MsgHeavyUsage, nil))
		}

		out.EstimatedSavingsMinorUnits = int64(math.Round(savings))
	}

	if len(out.Suggestions) == 0 {
		out.Suggestions = append(out.Suggestions, l.localizer.Default(i18n.MsgOptimized, nil))
	}

	return out
}

func (l *Ledger) load(ctx context.Context, key string) (*CostSummary, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	summary := NewCostSummary()
	if err := json.Unmarshal(raw, summary); err != nil {
		return nil, fmt.Errorf("failed to deserialize cost summary: %w", err)
	}
	for _, tier := range routing.Tiers {
		if summary.PerTier[tier] == nil {
			summary.PerTier[tier] = &TierUsage{}
		}
	}
	return summary, nil
}
