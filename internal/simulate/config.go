// Package simulate drives a drillcore server over HTTP with scripted trainees.
package simulate

import (
	"time"

	"github.com/okian/drillcore/internal/domain/leak"
	"github.com/okian/drillcore/internal/domain/model"
)

// Config holds configuration for a simulation.
type Config struct {
	BaseURL    string        // Base URL of the service
	Runs       int           // Number of runs to play
	GameID     string        // Game the runs are recorded against
	Difficulty int           // Difficulty passed to every run
	Practice   bool          // Play practice runs
	Accuracy   float64       // Probability of picking the correct option
	FoldBias   float64       // Probability a wrong pick is the fold option
	Timeout    time.Duration // HTTP request timeout
	Seed       int64         // Random seed for questions and picks
	Output     string        // Optional JSON report path
}

// Stats holds simulation results.
type Stats struct {
	RunsStarted   int                  `json:"runs_started"`
	RunsCompleted int                  `json:"runs_completed"`
	RunsPassed    int                  `json:"runs_passed"`
	RunsHeld      int                  `json:"runs_held"`
	Advanced      int                  `json:"level_advanced"`
	Answers       int                  `json:"answers"`
	Correct       int                  `json:"correct"`
	Scores        []int                `json:"scores"`
	ActiveLeaks   []model.LeakCategory `json:"active_leaks"`
	Remediation   []string             `json:"remediation"`
	FeaturedGame  string               `json:"featured_game"`
	RotationID    string               `json:"rotation_id"`
	StartTime     time.Time            `json:"start_time"`
	Duration      time.Duration        `json:"duration"`
}

func (s *Stats) remediation() {
	s.Remediation = s.Remediation[:0]
	for _, c := range s.ActiveLeaks {
		s.Remediation = append(s.Remediation, leak.RemediationID(c))
	}
}
