package run

import "github.com/okian/drillcore/internal/domain/model"

// AnswerRecord is appended once per submitted answer.
type AnswerRecord struct {
	QuestionID      string    `json:"question_id"`
	AnswerID        string    `json:"answer_id"`
	IsCorrect       bool      `json:"is_correct"`
	ResponseTimeMs  int64     `json:"response_time_ms"`
	SpeedTier       SpeedTier `json:"speed_tier"`
	SpeedMultiplier float64   `json:"speed_multiplier"`
}

// StartResult is returned by StartRun and RestartRun.
type StartResult struct {
	Success bool       `json:"success"`
	Offline bool       `json:"offline"`
	Queued  bool       `json:"queued"`
	RunID   string     `json:"run_id,omitempty"`
	Mode    model.Mode `json:"mode"`
}

// AnswerResult is returned by SubmitAnswer.
type AnswerResult struct {
	IsCorrect          bool      `json:"is_correct"`
	CorrectAnswerID    string    `json:"correct_answer_id"`
	Explanation        string    `json:"explanation"`
	SpeedMultiplier    float64   `json:"speed_multiplier"`
	SpeedLabel         SpeedTier `json:"speed_label"`
	ResponseTimeMs     int64     `json:"response_time_ms"`
	Streak             int       `json:"streak"`
	CorrectCount       int       `json:"correct_count"`
	QuestionsRemaining int       `json:"questions_remaining"`
	// Offline and Queued surface the persistence outcome; advancement is not blocked by them.
	Offline bool `json:"offline"`
	Queued  bool `json:"queued"`
}

// RunSummary is produced when a run is finalized.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	GameID         string         `json:"game_id"`
	Mode           model.Mode     `json:"mode"`
	Difficulty     int            `json:"difficulty"`
	Score          int            `json:"score"`
	Passed         bool           `json:"passed"`
	CorrectCount   int            `json:"correct_count"`
	TotalQuestions int            `json:"total_questions"`
	MasteryDelta   int            `json:"mastery_delta"`
	MaxStreak      int            `json:"max_streak"`
	FinalStreak    int            `json:"final_streak"`
	TotalTimeMs    int64          `json:"total_time_ms"`
	AverageTimeMs  int64          `json:"average_time_ms"`
	LevelAdvanced  bool           `json:"level_advanced"`
	Offline        bool           `json:"offline"`
	Answers        []AnswerRecord `json:"answers"`
}

// OptionView is an answer option without its correctness flag.
type OptionView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// QuestionView is the client-facing form of a question.
type QuestionView struct {
	ID      string       `json:"id"`
	Options []OptionView `json:"options"`
	HandID  string       `json:"hand_id,omitempty"`
	NodeID  string       `json:"node_id,omitempty"`
}

func viewOf(q model.Question) *QuestionView {
	v := &QuestionView{ID: q.ID, HandID: q.HandID, NodeID: q.NodeID, Options: make([]OptionView, len(q.Options))}
	for i, o := range q.Options {
		v.Options[i] = OptionView{ID: o.ID, Label: o.Label}
	}
	return v
}

// Snapshot is an immutable view of the engine. Two calls with no mutation
// in between return equal snapshots.
type Snapshot struct {
	State           State          `json:"state"`
	RunID           string         `json:"run_id,omitempty"`
	GameID          string         `json:"game_id,omitempty"`
	Mode            model.Mode     `json:"mode"`
	Difficulty      int            `json:"difficulty"`
	QuestionNumber  int            `json:"question_number"`
	TotalQuestions  int            `json:"total_questions"`
	CorrectCount    int            `json:"correct_count"`
	Streak          int            `json:"streak"`
	MaxStreak       int            `json:"max_streak"`
	CurrentQuestion *QuestionView  `json:"current_question,omitempty"`
	Progress        float64        `json:"progress"`
	Score           int            `json:"score"`
	Online          bool           `json:"online"`
	CanPass         bool           `json:"can_pass"`
	WillPass        bool           `json:"will_pass"`
	Answers         []AnswerRecord `json:"answers"`
	LastSummary     *RunSummary    `json:"last_summary,omitempty"`
}
