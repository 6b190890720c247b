// Package run implements the graded training run: twenty questions, a pass
// line of seventeen correct, speed tiers per answer, and fail-closed starts
// while authoritative recording is unavailable.
//
// Engine is not safe for concurrent use; callers serialize access.
package run

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/pipeline"
	"github.com/okian/drillcore/pkg/logger"
	"github.com/okian/drillcore/pkg/metrics"
)

const source = "run"

// Emitter is the part of the pipeline the engine writes through.
type Emitter interface {
	Emit(ctx context.Context, p model.Payload, source string) pipeline.Receipt
	RunCompleted(ctx context.Context, rc model.RunCompleted, source string) pipeline.CompletionReceipt
	IsOnline() bool
	Retract(ctx context.Context, e model.Event) bool
}

type startParams struct {
	gameID     string
	questions  []model.Question
	difficulty int
	mode       model.Mode
}

type runState struct {
	id         string
	gameID     string
	difficulty int
	mode       model.Mode
	questions  []model.Question
	index      int
	answers    []AnswerRecord
	correct    int
	streak     int
	maxStreak  int
	totalTime  time.Duration
}

func (r *runState) ref() model.RunRef {
	return model.RunRef{RunID: r.id, GameID: r.gameID, Mode: r.mode}
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Engine sequences one run at a time.
type Engine struct {
	emitter Emitter
	log     logger.Logger
	now     func() time.Time
	rng     *rand.Rand
	budget  time.Duration

	state         State
	run           *runState
	pendingStart  *startParams // held in OFFLINE_WARNING
	last          *startParams // replayed by RestartRun
	lastSummary   *RunSummary
	questionStart time.Time

	subs   []subscriber
	nextID int
}

// NewEngine creates an idle engine writing through emitter.
func NewEngine(emitter Emitter, opts ...Option) *Engine {
	e := &Engine{
		emitter: emitter,
		log:     logger.Nop(),
		now:     time.Now,
		budget:  DefaultQuestionBudget,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // shuffling, not security
	}
	return e
}

// StartRun begins a run over exactly QuestionsPerRun questions. A standard
// run requested while the pipeline is offline parks in OFFLINE_WARNING
// without touching the counters; ForceProceedOffline continues it as practice.
func (e *Engine) StartRun(ctx context.Context, gameID string, questions []model.Question, difficulty int, mode model.Mode) (StartResult, error) {
	if len(questions) != QuestionsPerRun {
		return StartResult{}, fmt.Errorf("%w: got %d", ErrInvalidQuestionCount, len(questions))
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return StartResult{}, fmt.Errorf("%w at %d: %w", ErrInvalidQuestion, i, err)
		}
	}
	if !e.state.canStart() {
		return StartResult{}, fmt.Errorf("%w: state %s", ErrRunInProgress, e.state)
	}

	params := &startParams{
		gameID:     gameID,
		questions:  append([]model.Question(nil), questions...),
		difficulty: difficulty,
		mode:       mode,
	}
	e.last = params

	if mode != model.ModePractice && !e.emitter.IsOnline() {
		e.enterOfflineWarning(ctx, params)
		return StartResult{Offline: true, Mode: mode}, nil
	}
	return e.begin(ctx, params), nil
}

func (e *Engine) enterOfflineWarning(ctx context.Context, params *startParams) {
	e.pendingStart = params
	e.run = nil
	e.state = StateOfflineWarning
	e.log.Warn(ctx, "pipeline offline, run held",
		logger.String("game_id", params.gameID),
	)
	e.notify()
}

func (e *Engine) begin(ctx context.Context, params *startParams) StartResult {
	e.pendingStart = nil
	e.run = &runState{
		id:         uuid.NewString(),
		gameID:     params.gameID,
		difficulty: params.difficulty,
		mode:       params.mode,
		questions:  params.questions,
	}
	r := e.run

	receipt := e.emitter.Emit(ctx, model.RunStarted{
		RunRef:        r.ref(),
		Difficulty:    r.difficulty,
		QuestionCount: len(r.questions),
	}, source)
	if r.mode != model.ModePractice && !receipt.Success && receipt.Offline {
		// The pipeline dropped while recording the start. The held run gets a
		// new id if it ever proceeds, so this start must never reach the store.
		if receipt.Queued {
			e.emitter.Retract(ctx, receipt.Event)
		}
		e.enterOfflineWarning(ctx, params)
		return StartResult{Offline: true, Mode: r.mode}
	}

	metrics.RecordRunStarted(r.mode.String())
	e.log.Info(ctx, "run started",
		logger.String("run_id", r.id),
		logger.String("game_id", r.gameID),
		logger.String("mode", r.mode.String()),
	)
	e.state = StateActive
	e.notify()
	e.showQuestion(ctx)
	return StartResult{Success: true, RunID: r.id, Mode: r.mode}
}

func (e *Engine) showQuestion(ctx context.Context) {
	r := e.run
	q := r.questions[r.index]
	e.questionStart = e.now()
	e.state = StateQuestionShown
	e.emitter.Emit(ctx, model.QuestionShown{
		RunRef:        r.ref(),
		QuestionIndex: r.index,
		QuestionID:    q.ID,
		HandID:        q.HandID,
		NodeID:        q.NodeID,
	}, source)
	e.notify()
}

// SubmitAnswer grades answerID against the current question. It returns nil
// and changes nothing unless a question is showing. An unknown answer id is graded wrong.
func (e *Engine) SubmitAnswer(ctx context.Context, answerID string) *AnswerResult {
	if e.state != StateQuestionShown {
		e.log.Warn(ctx, "answer rejected", logger.String("state", string(e.state)))
		return nil
	}
	r := e.run
	e.state = StateAnswerPending
	e.notify()

	q := r.questions[r.index]
	elapsed := e.now().Sub(e.questionStart)
	if elapsed < 0 {
		elapsed = 0
	}
	chosen, _ := q.Option(answerID)
	ideal := q.CorrectOption()
	isCorrect := chosen.Correct
	tier := ClassifySpeed(elapsed, e.budget)

	rec := AnswerRecord{
		QuestionID:      q.ID,
		AnswerID:        answerID,
		IsCorrect:       isCorrect,
		ResponseTimeMs:  elapsed.Milliseconds(),
		SpeedTier:       tier,
		SpeedMultiplier: tier.Multiplier(),
	}
	r.answers = append(r.answers, rec)
	if isCorrect {
		r.correct++
		r.streak++
		if r.streak > r.maxStreak {
			r.maxStreak = r.streak
		}
	} else {
		r.streak = 0
	}
	r.totalTime += elapsed
	metrics.RecordAnswer(string(tier), isCorrect, float64(rec.ResponseTimeMs))

	receipt := e.emitter.Emit(ctx, model.AnswerSubmitted{
		RunRef:          r.ref(),
		QuestionIndex:   r.index,
		QuestionID:      q.ID,
		AnswerID:        answerID,
		IsCorrect:       isCorrect,
		ResponseTimeMs:  rec.ResponseTimeMs,
		SpeedTier:       string(tier),
		SpeedMultiplier: rec.SpeedMultiplier,
		Streak:          r.streak,
		ChosenAction:    chosen.Action,
		IdealAction:     ideal.Action,
		HandID:          q.HandID,
		NodeID:          q.NodeID,
	}, source)

	e.state = StateResultShown
	e.notify()

	return &AnswerResult{
		IsCorrect:          isCorrect,
		CorrectAnswerID:    ideal.ID,
		Explanation:        q.Explanation,
		SpeedMultiplier:    rec.SpeedMultiplier,
		SpeedLabel:         tier,
		ResponseTimeMs:     rec.ResponseTimeMs,
		Streak:             r.streak,
		CorrectCount:       r.correct,
		QuestionsRemaining: QuestionsPerRun - (r.index + 1),
		Offline:            receipt.Offline,
		Queued:             receipt.Queued,
	}
}

// NextQuestion advances past a shown result. After the last question the run
// is finalized and its summary returned. ok is false outside RESULT_SHOWN.
func (e *Engine) NextQuestion(ctx context.Context) (summary *RunSummary, ok bool) {
	if e.state != StateResultShown {
		e.log.Warn(ctx, "next question rejected", logger.String("state", string(e.state)))
		return nil, false
	}
	e.run.index++
	if e.run.index >= QuestionsPerRun {
		return e.complete(ctx), true
	}
	e.showQuestion(ctx)
	return nil, true
}

func (e *Engine) complete(ctx context.Context) *RunSummary {
	r := e.run
	score := Score(r.correct, QuestionsPerRun)
	passed := r.correct >= PassCorrectCount
	delta := MasteryDelta(score, passed)
	totalMs := r.totalTime.Milliseconds()

	out := e.emitter.RunCompleted(ctx, model.RunCompleted{
		RunRef:         r.ref(),
		Difficulty:     r.difficulty,
		Score:          score,
		CorrectCount:   r.correct,
		TotalQuestions: QuestionsPerRun,
		Passed:         passed,
		MasteryDelta:   delta,
		MaxStreak:      r.maxStreak,
		TotalTimeMs:    totalMs,
		AvgTimeMs:      totalMs / QuestionsPerRun,
	}, source)

	summary := &RunSummary{
		RunID:          r.id,
		GameID:         r.gameID,
		Mode:           r.mode,
		Difficulty:     r.difficulty,
		Score:          score,
		Passed:         passed,
		CorrectCount:   r.correct,
		TotalQuestions: QuestionsPerRun,
		MasteryDelta:   delta,
		MaxStreak:      r.maxStreak,
		FinalStreak:    r.streak,
		TotalTimeMs:    totalMs,
		AverageTimeMs:  totalMs / QuestionsPerRun,
		LevelAdvanced:  out.Advanced != nil,
		Offline:        out.Completed.Offline,
		Answers:        append([]AnswerRecord(nil), r.answers...),
	}
	e.lastSummary = summary
	e.state = StateRunComplete

	outcome := "fail"
	if passed {
		outcome = "pass"
	}
	metrics.RecordRunCompleted(outcome)
	e.log.Info(ctx, "run completed",
		logger.String("run_id", r.id),
		logger.Int("score", score),
		logger.Bool("passed", passed),
	)
	e.notify()

	if passed {
		e.emitter.Emit(ctx, model.Celebration{RunRef: r.ref(), Score: score, MaxStreak: r.maxStreak}, source)
	}
	return summary
}

// AbortRun abandons whatever the engine is doing and returns to IDLE. An
// in-progress run emits a RUN_ABORTED diagnostic with its partial score.
// Returns false when already idle.
func (e *Engine) AbortRun(ctx context.Context) bool {
	if e.state == StateIdle {
		return false
	}
	if r := e.run; r != nil && e.state != StateRunComplete && e.state != StateOfflineWarning {
		answered := len(r.answers)
		e.emitter.Emit(ctx, model.RunAborted{
			RunRef:            r.ref(),
			QuestionsAnswered: answered,
			CorrectCount:      r.correct,
			Score:             Score(r.correct, answered),
			Reason:            model.AbortReasonUser,
		}, source)
		metrics.RecordRunAborted()
		e.log.Info(ctx, "run aborted",
			logger.String("run_id", r.id),
			logger.Int("answered", answered),
		)
	}
	e.reset()
	return true
}

func (e *Engine) reset() {
	e.state = StateIdle
	e.run = nil
	e.pendingStart = nil
	e.last = nil
	e.notify()
}

// ForceProceedOffline is the only exit from OFFLINE_WARNING. The held run
// starts in practice mode so nothing it emits counts toward progression.
func (e *Engine) ForceProceedOffline(ctx context.Context) bool {
	if e.state != StateOfflineWarning || e.pendingStart == nil {
		return false
	}
	params := *e.pendingStart
	params.mode = model.ModePractice
	e.last = &params
	e.begin(ctx, &params)
	return true
}

// RestartRun replays the last run's questions in a new order under a fresh
// run id, keeping game, difficulty and mode.
func (e *Engine) RestartRun(ctx context.Context) (StartResult, error) {
	if e.last == nil {
		return StartResult{}, ErrNoRunToRestart
	}
	last := *e.last
	shuffled := append([]model.Question(nil), last.questions...)
	e.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return e.StartRun(ctx, last.gameID, shuffled, last.difficulty, last.mode)
}

// State returns a snapshot of the engine.
func (e *Engine) State() Snapshot {
	s := Snapshot{
		State:          e.state,
		TotalQuestions: QuestionsPerRun,
		QuestionNumber: 1,
		Online:         e.emitter.IsOnline(),
		Answers:        []AnswerRecord{},
	}
	if p := e.pendingStart; p != nil && e.run == nil {
		s.GameID, s.Mode, s.Difficulty = p.gameID, p.mode, p.difficulty
	}
	if r := e.run; r != nil {
		answered := len(r.answers)
		s.RunID, s.GameID, s.Mode, s.Difficulty = r.id, r.gameID, r.mode, r.difficulty
		s.QuestionNumber = r.index + 1
		s.CorrectCount = r.correct
		s.Streak = r.streak
		s.MaxStreak = r.maxStreak
		s.Progress = float64(r.index) / QuestionsPerRun
		s.Score = Score(r.correct, answered)
		s.CanPass = r.correct >= PassCorrectCount-(QuestionsPerRun-answered)
		s.WillPass = r.correct >= PassCorrectCount
		s.Answers = append(s.Answers, r.answers...)
		if r.index < len(r.questions) {
			s.CurrentQuestion = viewOf(r.questions[r.index])
		}
	}
	if e.lastSummary != nil {
		sum := *e.lastSummary
		sum.Answers = append([]AnswerRecord(nil), sum.Answers...)
		s.LastSummary = &sum
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every transition.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) notify() {
	if len(e.subs) == 0 {
		return
	}
	snap := e.State()
	for _, s := range e.subs {
		e.deliver(s, snap)
	}
}

func (e *Engine) deliver(s subscriber, snap Snapshot) { //nolint:gocritic // snapshots are values
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(context.Background(), "snapshot subscriber panicked",
				logger.Int("subscriber", s.id),
				logger.Any("panic", r),
			)
		}
	}()
	s.fn(snap)
}
