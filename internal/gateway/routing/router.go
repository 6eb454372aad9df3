package routing

import (
	"math/rand"
	"sync"
	"time"
)

const (
	simpleFloorLength = 500
	longMessageLength = 2000
)

// RandomSource yields uniform samples in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// Router picks a tier for a message. It blends a deterministic floor for
// trivial messages with a randomized mix whose shares depend on complexity.
type Router struct {
	rnd RandomSource
}

// NewRouter returns a router drawing from rnd. The source must be safe for
// concurrent use if the router is shared; see NewLockedSource.
func NewRouter(rnd RandomSource) *Router {
	if rnd == nil {
		rnd = NewLockedSource(time.Now().UnixNano())
	}
	return &Router{rnd: rnd}
}

// Route returns override when it is set, otherwise samples the policy.
func (r *Router) Route(messageLength int, complexity Complexity, override Tier) Tier {
	if override != "" {
		return override
	}

	if complexity == ComplexitySimple && messageLength < simpleFloorLength {
		return TierLight
	}

	sample := r.rnd.Float64() * 100

	if complexity == ComplexityComplex || messageLength > longMessageLength {
		switch {
		case sample < 15:
			return TierPremium
		case sample < 50:
			return TierStandard
		default:
			return TierLight
		}
	}

	switch {
	case sample < 70:
		return TierLight
	case sample < 95:
		return TierStandard
	default:
		return TierPremium
	}
}

// LockedSource is a RandomSource safe for concurrent use.
type LockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLockedSource seeds a new concurrency-safe source.
func NewLockedSource(seed int64) *LockedSource {
	return &LockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *LockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}
