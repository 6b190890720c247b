package model

// RunRef identifies the run an event belongs to.
type RunRef struct {
	RunID  string `json:"run_id"`
	GameID string `json:"game_id"`
	Mode   Mode   `json:"mode"`
}

// EventMode returns the run's mode.
func (r RunRef) EventMode() Mode { return r.Mode }

// RunStarted opens a run.
type RunStarted struct {
	RunRef
	Difficulty    int `json:"difficulty"`
	QuestionCount int `json:"question_count"`
}

func (RunStarted) Kind() Kind                { return KindRunStarted }
func (p RunStarted) idempotencyKey() string { return runKey(p.RunID, KindRunStarted, -1) }

// QuestionShown marks a question being presented and its clock starting.
type QuestionShown struct {
	RunRef
	QuestionIndex int    `json:"question_index"`
	QuestionID    string `json:"question_id"`
	HandID        string `json:"hand_id,omitempty"`
	NodeID        string `json:"node_id,omitempty"`
}

func (QuestionShown) Kind() Kind { return KindQuestionShown }
func (p QuestionShown) idempotencyKey() string {
	return runKey(p.RunID, KindQuestionShown, p.QuestionIndex)
}

// AnswerSubmitted records one graded answer. ChosenAction and IdealAction
// feed leak classification when the answer is wrong.
type AnswerSubmitted struct {
	RunRef
	QuestionIndex   int     `json:"question_index"`
	QuestionID      string  `json:"question_id"`
	AnswerID        string  `json:"answer_id"`
	IsCorrect       bool    `json:"is_correct"`
	ResponseTimeMs  int64   `json:"response_time_ms"`
	SpeedTier       string  `json:"speed_tier"`
	SpeedMultiplier float64 `json:"speed_multiplier"`
	Streak          int     `json:"streak"`
	ChosenAction    Action  `json:"chosen_action,omitempty"`
	IdealAction     Action  `json:"ideal_action,omitempty"`
	HandID          string  `json:"hand_id,omitempty"`
	NodeID          string  `json:"node_id,omitempty"`
}

func (AnswerSubmitted) Kind() Kind { return KindAnswerSubmitted }
func (p AnswerSubmitted) idempotencyKey() string {
	return runKey(p.RunID, KindAnswerSubmitted, p.QuestionIndex)
}

// RunCompleted closes a run with its final grade.
type RunCompleted struct {
	RunRef
	Difficulty     int   `json:"difficulty"`
	Score          int   `json:"score"`
	CorrectCount   int   `json:"correct_count"`
	TotalQuestions int   `json:"total_questions"`
	Passed         bool  `json:"passed"`
	MasteryDelta   int   `json:"mastery_delta"`
	MaxStreak      int   `json:"max_streak"`
	TotalTimeMs    int64 `json:"total_time_ms"`
	AvgTimeMs      int64 `json:"avg_time_ms"`
}

func (RunCompleted) Kind() Kind                { return KindRunCompleted }
func (p RunCompleted) idempotencyKey() string { return runKey(p.RunID, KindRunCompleted, -1) }

// LevelAdvanced is derived from a passing RunCompleted.
type LevelAdvanced struct {
	RunRef
	Difficulty   int `json:"difficulty"`
	Score        int `json:"score"`
	MasteryDelta int `json:"mastery_delta"`
}

func (LevelAdvanced) Kind() Kind                { return KindLevelAdvanced }
func (p LevelAdvanced) idempotencyKey() string { return runKey(p.RunID, KindLevelAdvanced, -1) }

// AbortReasonUser is the reason recorded when the trainee quits.
const AbortReasonUser = "USER_ABORT"

// RunAborted is a diagnostic for a run that ended early. No grade is implied.
type RunAborted struct {
	RunRef
	QuestionsAnswered int    `json:"questions_answered"`
	CorrectCount      int    `json:"correct_count"`
	Score             int    `json:"score"`
	Reason            string `json:"reason"`
}

func (RunAborted) Kind() Kind                { return KindRunAborted }
func (p RunAborted) idempotencyKey() string { return runKey(p.RunID, KindRunAborted, -1) }

// Celebration is a local signal raised on a passed run.
type Celebration struct {
	RunRef
	Score     int `json:"score"`
	MaxStreak int `json:"max_streak"`
}

func (Celebration) Kind() Kind { return KindCelebration }

// LeakDetected reports a recurring mistake pattern.
type LeakDetected struct {
	Category      LeakCategory `json:"category"`
	Count         int          `json:"count"`
	RemediationID string       `json:"remediation_id"`
}

func (LeakDetected) Kind() Kind { return KindLeakDetected }

// DailyRotation audits a catalog rotation.
type DailyRotation struct {
	RotationID  string             `json:"rotation_id"`
	FeaturedID  string             `json:"featured_id"`
	ChallengeID string             `json:"challenge_id"`
	Recommended []string           `json:"recommended"`
	LeakGames   []string           `json:"leak_games"`
	Weights     map[string]float64 `json:"weights"`
}

func (DailyRotation) Kind() Kind { return KindDailyRotation }

// PipelineOnline is published when authoritative recording becomes available.
type PipelineOnline struct {
	Flushed int `json:"flushed"`
	Pending int `json:"pending"`
}

func (PipelineOnline) Kind() Kind { return KindPipelineOnline }

// PipelineOffline is published when authoritative recording is lost.
type PipelineOffline struct {
	Reason  string `json:"reason"`
	Pending int    `json:"pending"`
}

func (PipelineOffline) Kind() Kind { return KindPipelineOffline }
