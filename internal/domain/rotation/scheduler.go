// Package rotation picks the featured game, daily challenge, recommendations
// and leak-fixing shortlist once per epoch.
package rotation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/drillcore/internal/domain/bus"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/pkg/logger"
	"github.com/okian/drillcore/pkg/metrics"
)

const (
	source = "rotation"

	defaultEpoch         = 24 * time.Hour
	defaultVarietyWindow = 7 * 24 * time.Hour
	defaultHistoryCap    = 30
	defaultMasteryFloor  = 70.0
	defaultLeakGamesCap  = 6
	defaultRecommended   = 8
	rationaleWindow      = 3 * 24 * time.Hour
	rationaleLeaks       = 3
)

// Scheduler owns the current selection, the rotation history and the
// externally supplied mastery and leak read models. It is safe for concurrent use.
type Scheduler struct {
	mu sync.Mutex

	catalog Catalog
	cache   Cache
	emitter Emitter
	scorer  *Scorer
	log     logger.Logger
	now     func() time.Time

	epoch         time.Duration
	varietyWindow time.Duration
	historyCap    int
	masteryFloor  float64
	leakGamesCap  int
	recommended   int

	mastery map[string]float64
	leaks   []string
	state   State
	items   []Item
}

// NewScheduler creates a Scheduler. catalog, cache and emitter may be nil.
func NewScheduler(catalog Catalog, cache Cache, emitter Emitter, opts ...Option) *Scheduler {
	s := &Scheduler{
		catalog:       catalog,
		cache:         cache,
		emitter:       emitter,
		log:           logger.Nop(),
		now:           time.Now,
		epoch:         defaultEpoch,
		varietyWindow: defaultVarietyWindow,
		historyCap:    defaultHistoryCap,
		masteryFloor:  defaultMasteryFloor,
		leakGamesCap:  defaultLeakGamesCap,
		recommended:   defaultRecommended,
		mastery:       make(map[string]float64),
		state:         State{LastPlayed: make(map[string]time.Time)},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scorer == nil {
		s.scorer = NewScorer()
	}
	return s
}

// Init loads the cached state and rotates when there is no selection or
// the current one is at least one epoch old.
func (s *Scheduler) Init(ctx context.Context) (*Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rotation init: %w", err)
	}
	s.mu.Lock()
	if s.cache != nil {
		st, err := s.cache.Load(ctx)
		if err != nil {
			s.log.Warn(ctx, "rotation cache unavailable", logger.Error(err))
		} else {
			s.restoreLocked(st)
		}
	}

	if sel := s.state.Selection; sel != nil && s.now().Sub(sel.Timestamp) < s.epoch {
		sel.LeakGames = s.leakGamesLocked(s.catalogLocked(ctx))
		out := sel.clone()
		s.mu.Unlock()
		return out, nil
	}
	sel, audit := s.rotateLocked(ctx)
	s.mu.Unlock()
	s.audit(ctx, audit)
	return sel, nil
}

func (s *Scheduler) restoreLocked(st State) {
	s.state.Selection = st.Selection
	s.state.History = st.History
	for id, t := range st.LastPlayed {
		if t.After(s.state.LastPlayed[id]) {
			s.state.LastPlayed[id] = t
		}
	}
}

// Rotate scores the catalog and replaces the current selection.
func (s *Scheduler) Rotate(ctx context.Context) (*Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}
	s.mu.Lock()
	sel, audit := s.rotateLocked(ctx)
	s.mu.Unlock()
	s.audit(ctx, audit)
	return sel, nil
}

// audit records the rotation outside the scheduler lock, since the
// pipeline delivers to bus subscribers synchronously.
func (s *Scheduler) audit(ctx context.Context, p model.DailyRotation) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, p, source)
	}
}

func (s *Scheduler) rotateLocked(ctx context.Context) (*Selection, model.DailyRotation) {
	now := s.now()
	items := s.catalogLocked(ctx)
	scored := s.scoreLocked(items, now)

	sel := &Selection{
		Timestamp:  now,
		RotationID: "rot_" + uuid.NewString(),
	}
	featured := scored[0].Item
	sel.Featured = s.featured(featured)
	if ch, ok := challengeOf(scored); ok {
		sel.Challenge = challenge(ch)
	}
	for _, sc := range scored[1:] {
		if len(sel.Recommended) == s.recommended {
			break
		}
		sel.Recommended = append(sel.Recommended, sc.Item)
	}
	sel.LeakGames = s.leakGamesLocked(items)
	sel.Rationale = s.rationaleLocked(sel, now)

	entry := HistoryEntry{Timestamp: now, RotationID: sel.RotationID, FeaturedID: featured.ID}
	if sel.Challenge != nil {
		entry.ChallengeID = sel.Challenge.GameID
	}
	s.state.History = append([]HistoryEntry{entry}, s.state.History...)
	if len(s.state.History) > s.historyCap {
		s.state.History = s.state.History[:s.historyCap]
	}
	s.state.Selection = sel
	s.saveLocked(ctx)

	metrics.RecordRotation(len(items))
	s.log.Info(ctx, "content rotated",
		logger.String("rotation_id", sel.RotationID),
		logger.String("featured", featured.ID),
		logger.String("challenge", entry.ChallengeID),
	)
	return sel.clone(), model.DailyRotation{
		RotationID:  sel.RotationID,
		FeaturedID:  featured.ID,
		ChallengeID: entry.ChallengeID,
		Recommended: ids(sel.Recommended),
		LeakGames:   ids(sel.LeakGames),
		Weights:     s.scorer.Weights().Map(),
	}
}

func (s *Scheduler) catalogLocked(ctx context.Context) []Item {
	if s.catalog != nil {
		items, err := s.catalog.Items(ctx)
		switch {
		case err != nil:
			s.log.Warn(ctx, "catalog unavailable, using built-in list", logger.Error(err))
		case len(items) == 0:
			s.log.Warn(ctx, "catalog empty, using built-in list")
		default:
			s.items = items
			return items
		}
	}
	if s.items == nil {
		s.items = DefaultCatalog()
	}
	return s.items
}

// scoreLocked returns items by descending score; ties keep catalog order.
func (s *Scheduler) scoreLocked(items []Item, now time.Time) []Scored {
	recent := make(map[string]struct{})
	cutoff := now.Add(-s.varietyWindow)
	for _, h := range s.state.History {
		if h.Timestamp.After(cutoff) {
			recent[h.FeaturedID] = struct{}{}
			if h.ChallengeID != "" {
				recent[h.ChallengeID] = struct{}{}
			}
		}
	}

	scored := make([]Scored, len(items))
	for i, it := range items {
		_, featured := recent[it.ID]
		scored[i] = Scored{Item: it, Score: s.scorer.Score(it, Signals{
			Mastery:          s.mastery[it.ID],
			LeakMatch:        MatchesLeak(it, s.leaks),
			RecentlyFeatured: featured,
			LastPlayed:       s.state.LastPlayed[it.ID],
			Now:              now,
		})}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// challengeOf picks the best item outside the featured item's category,
// falling back to the runner-up.
func challengeOf(scored []Scored) (Item, bool) {
	if len(scored) < 2 {
		return Item{}, false
	}
	for _, sc := range scored[1:] {
		if sc.Item.Category != scored[0].Item.Category {
			return sc.Item, true
		}
	}
	return scored[1].Item, true
}

func (s *Scheduler) featured(it Item) Featured {
	mastery := s.mastery[it.ID]
	focus := "Perfect Your " + it.Focus
	switch {
	case mastery < 50:
		focus = "Master " + it.Focus
	case mastery < 85:
		focus = "Complete " + it.Focus
	}
	return Featured{
		GameID:       it.ID,
		Title:        "Daily Challenge",
		Subtitle:     it.Name,
		Focus:        focus,
		Difficulty:   it.Difficulty,
		XPMultiplier: 1 + float64(it.Difficulty)*0.25,
		StreakBonus:  true,
		Mastery:      mastery,
	}
}

func challenge(it Item) *Challenge {
	c := &Challenge{
		GameID:     it.ID,
		Name:       it.Name,
		Focus:      it.Focus,
		Difficulty: it.Difficulty,
		XPReward:   100 + it.Difficulty*50,
	}
	if it.Difficulty > 2 {
		limit := 30
		c.TimeLimitMin = &limit
	}
	return c
}

// leakGamesLocked lists items with known mastery under the floor or drilling
// an active leak, in catalog order.
func (s *Scheduler) leakGamesLocked(items []Item) []Item {
	out := make([]Item, 0, s.leakGamesCap)
	for _, it := range items {
		if len(out) == s.leakGamesCap {
			break
		}
		m, known := s.mastery[it.ID]
		if (known && m < s.masteryFloor) || MatchesLeak(it, s.leaks) {
			out = append(out, it)
		}
	}
	return out
}

func (s *Scheduler) rationaleLocked(sel *Selection, now time.Time) Rationale {
	var reasons []string
	if m := sel.Featured.Mastery; m < s.masteryFloor {
		reasons = append(reasons, fmt.Sprintf("LOW_MASTERY: %.0f%%", m))
	}
	if len(s.leaks) > 0 {
		top := s.leaks
		if len(top) > rationaleLeaks {
			top = top[:rationaleLeaks]
		}
		reasons = append(reasons, "TARGETING_LEAKS: "+strings.Join(top, ", "))
	}
	recent := 0
	for _, h := range s.state.History {
		if h.Timestamp.After(now.Add(-rationaleWindow)) {
			recent++
		}
	}
	if recent == 0 {
		reasons = append(reasons, "NEW_USER: First rotation")
	} else {
		reasons = append(reasons, fmt.Sprintf("VARIETY: Avoiding last %d selections", recent))
	}
	return Rationale{Reasons: reasons, Weights: s.scorer.Weights()}
}

func (s *Scheduler) saveLocked(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, s.snapshotLocked()); err != nil {
		s.log.Warn(ctx, "rotation cache save failed", logger.Error(err))
	}
}

func (s *Scheduler) snapshotLocked() State {
	st := State{
		Selection:  s.state.Selection.clone(),
		History:    append([]HistoryEntry(nil), s.state.History...),
		LastPlayed: make(map[string]time.Time, len(s.state.LastPlayed)),
	}
	for id, t := range s.state.LastPlayed {
		st.LastPlayed[id] = t
	}
	return st
}

// UpdateUserContext replaces the mastery and leak read models and
// recomputes the leak games of the current selection.
func (s *Scheduler) UpdateUserContext(ctx context.Context, mastery map[string]float64, leaks []string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mastery = make(map[string]float64, len(mastery))
	for id, m := range mastery {
		s.mastery[id] = m
	}
	s.leaks = append([]string(nil), leaks...)

	games := s.leakGamesLocked(s.catalogLocked(ctx))
	if sel := s.state.Selection; sel != nil {
		sel.LeakGames = games
		s.saveLocked(ctx)
	}
	return append([]Item(nil), games...)
}

// SetLeaks replaces only the leak read model.
func (s *Scheduler) SetLeaks(ctx context.Context, leaks []string) []Item {
	s.mu.Lock()
	mastery := s.mastery
	s.mu.Unlock()
	return s.UpdateUserContext(ctx, mastery, leaks)
}

// ObservePlay records that gameID was played at t.
func (s *Scheduler) ObservePlay(gameID string, t time.Time) {
	if gameID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.state.LastPlayed[gameID]) {
		s.state.LastPlayed[gameID] = t
	}
}

// Attach feeds completed runs on b into the freshness signal.
func (s *Scheduler) Attach(b *bus.Bus) (detach func()) {
	return b.Subscribe(model.KindRunCompleted, func(_ context.Context, e model.Event) error {
		if rc, ok := e.Payload.(model.RunCompleted); ok {
			s.ObservePlay(rc.GameID, e.Timestamp)
		}
		return nil
	})
}

// Current returns the current selection.
func (s *Scheduler) Current() (*Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Selection == nil {
		return nil, ErrNoSelection
	}
	return s.state.Selection.clone(), nil
}

// LeakGames returns the current leak-fixing shortlist.
func (s *Scheduler) LeakGames(ctx context.Context) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leakGamesLocked(s.catalogLocked(ctx))
}

// History returns the rotation history, newest first.
func (s *Scheduler) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.state.History...)
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
