package rotation

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// Scoring configuration constants.
const (
	defaultMaxJitter = 0.05
	freshnessHorizon = 168 * time.Hour
	streakBandLow    = 2
	streakBandHigh   = 3
	maxMastery       = 100.0
)

// Weights is the fixed weight vector of the rotation score. It sums to 1.
type Weights struct {
	MasteryGap     float64 `json:"mastery_gap"`
	RecentMistakes float64 `json:"recent_mistakes"`
	Variety        float64 `json:"variety"`
	StreakTarget   float64 `json:"streak_target"`
	Freshness      float64 `json:"freshness"`
}

// DefaultWeights returns the documented weight vector.
func DefaultWeights() Weights {
	return Weights{
		MasteryGap:     0.35,
		RecentMistakes: 0.25,
		Variety:        0.20,
		StreakTarget:   0.10,
		Freshness:      0.10,
	}
}

// Map returns the weights keyed for the audit event.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		"MASTERY_GAP":     w.MasteryGap,
		"RECENT_MISTAKES": w.RecentMistakes,
		"VARIETY":         w.Variety,
		"STREAK_TARGET":   w.StreakTarget,
		"FRESHNESS":       w.Freshness,
	}
}

// Signals are the per-item inputs of one score. Mastery is 0 when unknown and
// LastPlayed is zero when the item was never played.
type Signals struct {
	Mastery          float64
	LeakMatch        bool
	RecentlyFeatured bool
	LastPlayed       time.Time
	Now              time.Time
}

// ScorerOption applies a configuration option to the Scorer.
type ScorerOption func(*Scorer)

// WithWeights overrides the weight vector.
func WithWeights(w Weights) ScorerOption {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithJitter replaces the random tie breaker. fn must return values in [0, 1).
func WithJitter(fn func() float64) ScorerOption {
	return func(s *Scorer) {
		if fn != nil {
			s.jitter = fn
		}
	}
}

// WithMaxJitter bounds the tie breaker added to each score.
func WithMaxJitter(limit float64) ScorerOption {
	return func(s *Scorer) {
		if limit >= 0 {
			s.maxJitter = limit
		}
	}
}

// Scorer computes rotation scores. It is not safe for concurrent use.
type Scorer struct {
	weights   Weights
	maxJitter float64
	jitter    func() float64
}

// NewScorer creates a Scorer with the default weights and a jitter source
// seeded from the clock.
func NewScorer(opts ...ScorerOption) *Scorer {
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // tie breaking only
	s := &Scorer{
		weights:   DefaultWeights(),
		maxJitter: defaultMaxJitter,
		jitter:    rng.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns the active weight vector.
func (s *Scorer) Weights() Weights { return s.weights }

// Score computes the weighted score of item.
func (s *Scorer) Score(item Item, sig Signals) float64 {
	w := s.weights
	mastery := math.Max(0, math.Min(maxMastery, sig.Mastery))

	score := (maxMastery - mastery) / maxMastery * w.MasteryGap
	if sig.LeakMatch {
		score += w.RecentMistakes
	}
	if !sig.RecentlyFeatured {
		score += w.Variety
	}
	if item.Difficulty >= streakBandLow && item.Difficulty <= streakBandHigh {
		score += w.StreakTarget
	}
	if !sig.LastPlayed.IsZero() {
		since := sig.Now.Sub(sig.LastPlayed)
		score += math.Max(0, math.Min(1, float64(since)/float64(freshnessHorizon))) * w.Freshness
	}
	return score + s.jitter()*s.maxJitter
}

// MatchesLeak reports whether item drills any of leaks, by its declared
// leak list or by a case-insensitive match between focus and category.
func MatchesLeak(item Item, leaks []string) bool {
	focus := normalize(item.Focus)
	for _, l := range leaks {
		cat := normalize(l)
		if cat == "" {
			continue
		}
		for _, il := range item.Leaks {
			if normalize(il) == cat {
				return true
			}
		}
		if focus != "" && (strings.Contains(cat, focus) || strings.Contains(focus, cat)) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(strings.ReplaceAll(s, "_", " ")))
}
