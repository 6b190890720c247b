package rotation

import (
	"context"
	"time"

	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/pipeline"
)

// Item is a catalog entry. Leaks lists the leak categories the item drills.
type Item struct {
	ID         string   `json:"id" yaml:"id" validate:"required"`
	Name       string   `json:"name" yaml:"name" validate:"required"`
	Category   string   `json:"category" yaml:"category" validate:"required"`
	Focus      string   `json:"focus" yaml:"focus"`
	Difficulty int      `json:"difficulty" yaml:"difficulty" validate:"gte=1,lte=5"`
	Leaks      []string `json:"leaks,omitempty" yaml:"leaks"`
}

// Scored pairs an item with its rotation score.
type Scored struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// Featured is the hero slot of a selection.
type Featured struct {
	GameID       string  `json:"game_id"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	Focus        string  `json:"focus"`
	Difficulty   int     `json:"difficulty"`
	XPMultiplier float64 `json:"xp_multiplier"`
	StreakBonus  bool    `json:"streak_bonus"`
	Mastery      float64 `json:"mastery"`
}

// Challenge is the daily challenge slot. TimeLimitMin is nil for untimed challenges.
type Challenge struct {
	GameID       string `json:"game_id"`
	Name         string `json:"name"`
	Focus        string `json:"focus"`
	Difficulty   int    `json:"difficulty"`
	XPReward     int    `json:"xp_reward"`
	TimeLimitMin *int   `json:"time_limit_min"`
}

// Rationale explains a selection.
type Rationale struct {
	Reasons []string `json:"reasons"`
	Weights Weights  `json:"weights"`
}

// Selection is the content chosen for one epoch.
type Selection struct {
	Timestamp   time.Time  `json:"timestamp"`
	RotationID  string     `json:"rotation_id"`
	Featured    Featured   `json:"featured"`
	Challenge   *Challenge `json:"challenge,omitempty"`
	Recommended []Item     `json:"recommended"`
	LeakGames   []Item     `json:"leak_games"`
	Rationale   Rationale  `json:"rationale"`
}

func (s *Selection) clone() *Selection {
	if s == nil {
		return nil
	}
	c := *s
	if s.Challenge != nil {
		ch := *s.Challenge
		c.Challenge = &ch
	}
	c.Recommended = append([]Item(nil), s.Recommended...)
	c.LeakGames = append([]Item(nil), s.LeakGames...)
	c.Rationale.Reasons = append([]string(nil), s.Rationale.Reasons...)
	return &c
}

// HistoryEntry records which items took the featured and challenge slots.
type HistoryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	RotationID  string    `json:"rotation_id"`
	FeaturedID  string    `json:"featured_id"`
	ChallengeID string    `json:"challenge_id,omitempty"`
}

// State is what the scheduler persists between restarts. History is newest first.
type State struct {
	Selection  *Selection           `json:"selection,omitempty"`
	History    []HistoryEntry       `json:"history"`
	LastPlayed map[string]time.Time `json:"last_played,omitempty"`
}

// Cache persists scheduler state. Load returns a zero State when nothing is stored.
type Cache interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

// Catalog supplies the items to rotate over.
type Catalog interface {
	Items(ctx context.Context) ([]Item, error)
}

// Emitter records the rotation audit event.
type Emitter interface {
	Emit(ctx context.Context, p model.Payload, source string) pipeline.Receipt
}
