// Package service assembles one trainee session: bus, pipeline, run engine,
// leak analyzer, rotation scheduler and the health monitor that drives the
// pipeline's reachability probe.
package service

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/okian/drillcore/internal/adapters/health"
	"github.com/okian/drillcore/internal/adapters/queue"
	"github.com/okian/drillcore/internal/adapters/storage/memstore"
	"github.com/okian/drillcore/internal/domain/bus"
	"github.com/okian/drillcore/internal/domain/dedupe"
	"github.com/okian/drillcore/internal/domain/leak"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/domain/rotation"
	"github.com/okian/drillcore/internal/domain/run"
	"github.com/okian/drillcore/internal/pipeline"
	"github.com/okian/drillcore/pkg/logger"
	"github.com/okian/drillcore/pkg/metrics"
)

// Stats is the diagnostic view served on /stats.
type Stats struct {
	Pipeline    pipeline.Stats       `json:"pipeline"`
	RunState    run.State            `json:"run_state"`
	ActiveLeaks []model.LeakCategory `json:"active_leaks"`
	RotationID  string               `json:"rotation_id,omitempty"`
	Subscribers int                  `json:"subscribers"`
	Started     bool                 `json:"started"`
}

// Session implements the HTTP API dependencies for one trainee. Engine calls
// are serialized; the pipeline, analyzer and scheduler guard their own state.
type Session struct {
	mu sync.Mutex

	bus       *bus.Bus
	pipeline  *pipeline.Pipeline
	engine    *run.Engine
	analyzer  *leak.Analyzer
	scheduler *rotation.Scheduler
	monitor   *health.Monitor

	store   pipeline.Store
	cache   rotation.Cache
	catalog rotation.Catalog

	// Configuration
	actorID        string
	historySize    int
	queueSize      int
	dedupeSize     int
	softAck        bool
	budget         time.Duration
	leakWindow     int
	leakThreshold  int
	healthInterval time.Duration
	rotationOpts   []rotation.Option
	now            func() time.Time

	// State
	started  bool
	detach   []func()
	stopMon  context.CancelFunc
	monitorD chan struct{}

	// Snapshots queued by the engine under mu, delivered after it is released.
	outbox  []run.Snapshot
	runSubs []runSubscriber
	nextSub int

	// leakMu guards externalLeaks. Leak detection runs inside engine calls
	// while mu is held.
	leakMu        sync.Mutex
	externalLeaks []string

	logger logger.Logger
}

type runSubscriber struct {
	id int
	fn func(run.Snapshot)
}

// New constructs a Session. Without WithStore it records into memory.
func New(opts ...Option) *Session {
	s := &Session{
		actorID:        "local-trainee",
		historySize:    100,
		queueSize:      1_000,
		dedupeSize:     10_000,
		softAck:        true,
		budget:         run.DefaultQuestionBudget,
		leakWindow:     20,
		leakThreshold:  3,
		healthInterval: 30 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = memstore.New()
	}
	if s.cache == nil {
		s.cache = memstore.NewCache()
	}

	s.bus = bus.New(
		bus.WithHistorySize(s.historySize),
		bus.WithActorID(s.actorID),
		bus.WithClock(s.now),
		bus.WithLogger(s.logger.Named("bus")),
	)
	s.pipeline = pipeline.New(s.bus, s.store,
		pipeline.WithActorID(s.actorID),
		pipeline.WithQueue(queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))),
		pipeline.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
		pipeline.WithSoftAckMissingSchema(s.softAck),
		pipeline.WithClock(s.now),
		pipeline.WithLogger(s.logger.Named("pipeline")),
	)
	s.engine = run.NewEngine(s.pipeline,
		run.WithQuestionBudget(s.budget),
		run.WithClock(s.now),
		run.WithLogger(s.logger.Named("run")),
	)
	s.engine.Subscribe(func(snap run.Snapshot) { s.outbox = append(s.outbox, snap) })
	s.analyzer = leak.NewAnalyzer(s.bus,
		leak.WithWindow(s.leakWindow),
		leak.WithThreshold(s.leakThreshold),
		leak.WithClock(s.now),
		leak.WithLogger(s.logger.Named("leak")),
	)
	ropts := append([]rotation.Option{
		rotation.WithClock(s.now),
		rotation.WithLogger(s.logger.Named("rotation")),
	}, s.rotationOpts...)
	s.scheduler = rotation.NewScheduler(s.catalog, s.cache, s.pipeline, ropts...)
	return s
}

// Start probes the store, wires the observers and loads the rotation.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting session...", logger.String("actor_id", s.actorID))

	s.detach = append(s.detach,
		s.analyzer.Attach(s.bus),
		s.scheduler.Attach(s.bus),
		s.bus.Subscribe(model.KindLeakDetected, s.onLeakDetected),
	)
	online := s.pipeline.Init(ctx)
	if _, err := s.scheduler.Init(ctx); err != nil {
		s.logger.Warn(ctx, "rotation init failed", logger.Error(err))
	}

	s.monitor = health.NewMonitor(s.pipeline,
		health.WithInterval(s.healthInterval),
		health.WithLogger(s.logger.Named("health")),
	)
	mctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopMon = cancel
	s.monitorD = make(chan struct{})
	go func() {
		defer close(s.monitorD)
		s.monitor.Run(mctx)
	}()

	s.started = true
	s.logger.Info(ctx, "session started",
		logger.Bool("online", online),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// onLeakDetected feeds the analyzer's active set into the rotation read model.
func (s *Session) onLeakDetected(ctx context.Context, _ model.Event) error {
	s.scheduler.SetLeaks(ctx, s.leakModel())
	return nil
}

// leakModel is the externally supplied leak list plus the analyzer's active set.
func (s *Session) leakModel() []string {
	s.leakMu.Lock()
	merged := append([]string(nil), s.externalLeaks...)
	s.leakMu.Unlock()
	for _, l := range leakNames(s.analyzer.ActiveLeaks()) {
		if !slices.Contains(merged, l) {
			merged = append(merged, l)
		}
	}
	return merged
}

// unlock releases mu and then hands queued engine snapshots to run
// subscribers, so a subscriber may call back into the session.
func (s *Session) unlock() {
	snaps := s.outbox
	s.outbox = nil
	subs := append([]runSubscriber(nil), s.runSubs...)
	s.mu.Unlock()

	for _, snap := range snaps {
		for _, sub := range subs {
			s.deliver(sub, snap)
		}
	}
}

func (s *Session) deliver(sub runSubscriber, snap run.Snapshot) { //nolint:gocritic // snapshots are values
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(context.Background(), "run subscriber panicked",
				logger.Int("subscriber", sub.id),
				logger.Any("panic", r),
			)
		}
	}()
	sub.fn(snap)
}

// Stop shuts the monitor down and closes the store.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping session...")

	err := s.monitor.Shutdown(ctx)
	s.stopMon()
	<-s.monitorD
	for _, d := range s.detach {
		d()
	}
	s.detach = nil

	if c, ok := s.store.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.started = false
	s.logger.Info(ctx, "session stopped")
	return err
}

// StartRun begins a run.
func (s *Session) StartRun(ctx context.Context, gameID string, questions []model.Question, difficulty int, mode model.Mode) (run.StartResult, error) {
	s.mu.Lock()
	defer s.unlock()
	return s.engine.StartRun(ctx, gameID, questions, difficulty, mode)
}

// SubmitAnswer grades an answer to the shown question.
func (s *Session) SubmitAnswer(ctx context.Context, answerID string) *run.AnswerResult {
	s.mu.Lock()
	defer s.unlock()
	return s.engine.SubmitAnswer(ctx, answerID)
}

// NextQuestion advances the run.
func (s *Session) NextQuestion(ctx context.Context) (*run.RunSummary, bool) {
	s.mu.Lock()
	defer s.unlock()
	return s.engine.NextQuestion(ctx)
}

// AbortRun abandons the run.
func (s *Session) AbortRun(ctx context.Context) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.engine.AbortRun(ctx)
}

// ForceProceedOffline continues a held run in practice mode.
func (s *Session) ForceProceedOffline(ctx context.Context) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.engine.ForceProceedOffline(ctx)
}

// RestartRun replays the last run reshuffled.
func (s *Session) RestartRun(ctx context.Context) (run.StartResult, error) {
	s.mu.Lock()
	defer s.unlock()
	return s.engine.RestartRun(ctx)
}

// RunState returns the engine snapshot.
func (s *Session) RunState() run.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

// SubscribeRun registers fn for engine snapshots. Snapshots are delivered in
// order after the run call that produced them has released the session.
func (s *Session) SubscribeRun(fn func(run.Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.runSubs = append(s.runSubs, runSubscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.runSubs = slices.DeleteFunc(s.runSubs, func(sub runSubscriber) bool { return sub.id == id })
	}
}

// Rotation returns the current selection, rotating first if there is none.
func (s *Session) Rotation(ctx context.Context) (*rotation.Selection, error) {
	if sel, err := s.scheduler.Current(); err == nil {
		return sel, nil
	}
	return s.scheduler.Init(ctx)
}

// Rotate forces a new selection.
func (s *Session) Rotate(ctx context.Context) (*rotation.Selection, error) {
	return s.scheduler.Rotate(ctx)
}

// UpdateUserContext replaces the mastery read model and the externally
// supplied leaks. The analyzer's active leaks are always included.
func (s *Session) UpdateUserContext(ctx context.Context, mastery map[string]float64, leaks []string) []rotation.Item {
	s.leakMu.Lock()
	s.externalLeaks = append([]string(nil), leaks...)
	s.leakMu.Unlock()
	return s.scheduler.UpdateUserContext(ctx, mastery, s.leakModel())
}

// ActiveLeaks returns the analyzer's active categories.
func (s *Session) ActiveLeaks() []model.LeakCategory {
	return s.analyzer.ActiveLeaks()
}

// ResetLeaks clears the analyzer. Externally supplied leaks stay in the read model.
func (s *Session) ResetLeaks(ctx context.Context) {
	s.analyzer.Reset()
	s.scheduler.SetLeaks(ctx, s.leakModel())
}

// HealthCheck probes the store now and flushes queued events when it answers.
func (s *Session) HealthCheck(ctx context.Context) bool {
	return s.pipeline.HealthCheck(ctx)
}

// MarkOffline forces the pipeline offline.
func (s *Session) MarkOffline(ctx context.Context, reason string) {
	s.pipeline.MarkOffline(ctx, reason)
}

// Signal forwards a client connectivity hint to the health monitor.
func (s *Session) Signal(sig health.Signal) bool {
	s.mu.Lock()
	m, started := s.monitor, s.started
	s.mu.Unlock()
	if !started {
		return false
	}
	return m.Notify(sig)
}

// History returns recent bus events, oldest first.
func (s *Session) History(limit int) []model.Event {
	return s.bus.History(limit)
}

// Pending returns the events waiting for the store.
func (s *Session) Pending(ctx context.Context) []model.Event {
	return s.pipeline.Pending(ctx)
}

// Bus exposes the session bus for additional observers.
func (s *Session) Bus() *bus.Bus { return s.bus }

// GetStats returns session statistics for monitoring.
func (s *Session) GetStats(ctx context.Context) Stats {
	st := Stats{
		Pipeline:    s.pipeline.Stats(ctx),
		ActiveLeaks: s.analyzer.ActiveLeaks(),
		Subscribers: s.bus.SubscriberCount(),
	}
	if sel, err := s.scheduler.Current(); err == nil {
		st.RotationID = sel.RotationID
	}
	s.mu.Lock()
	st.RunState = s.engine.State().State
	st.Started = s.started
	s.mu.Unlock()

	metrics.UpdatePendingEvents(st.Pipeline.Pending)
	metrics.UpdatePipelineOnline(st.Pipeline.Online)
	return st
}

func leakNames(cs []model.LeakCategory) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
