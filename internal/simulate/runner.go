package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/domain/rotation"
	"github.com/okian/drillcore/internal/domain/run"
	"github.com/okian/drillcore/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	reportPermission    = 0o600
)

// ErrInvalidConfig is returned for unusable simulation settings.
var ErrInvalidConfig = errors.New("invalid simulation config")

type startRequest struct {
	GameID     string           `json:"game_id"`
	Difficulty int              `json:"difficulty"`
	Mode       model.Mode       `json:"mode"`
	Questions  []model.Question `json:"questions"`
}

// Run plays cfg.Runs runs against the server and returns what it observed.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Timeout)
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible scripted trainee

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("runs", cfg.Runs),
		logger.Float64("accuracy", cfg.Accuracy),
		logger.Float64("foldBias", cfg.FoldBias),
	)

	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	for i := 0; i < cfg.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		summary, err := playRun(ctx, c, rng, cfg, stats)
		if err != nil {
			return stats, fmt.Errorf("run %d: %w", i+1, err)
		}
		stats.RunsCompleted++
		stats.Scores = append(stats.Scores, summary.Score)
		if summary.Passed {
			stats.RunsPassed++
		}
		if summary.LevelAdvanced {
			stats.Advanced++
		}
		log.Debug(ctx, "run finished",
			logger.String("run_id", summary.RunID),
			logger.Int("score", summary.Score),
			logger.Bool("passed", summary.Passed),
		)
	}

	var leaks struct {
		Active []model.LeakCategory `json:"active"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/leaks", nil, &leaks, http.StatusOK); err != nil {
		return stats, err
	}
	stats.ActiveLeaks = leaks.Active
	stats.remediation()

	var sel rotation.Selection
	if _, err := c.do(ctx, http.MethodGet, "/rotation", nil, &sel, http.StatusOK); err != nil {
		return stats, err
	}
	stats.RotationID = sel.RotationID
	stats.FeaturedGame = sel.Featured.GameID

	stats.Duration = time.Since(stats.StartTime)
	if cfg.Output != "" {
		if err := saveReport(cfg.Output, stats); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	logStats(ctx, log, stats)
	return stats, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg == nil:
		return fmt.Errorf("%w: nil", ErrInvalidConfig)
	case cfg.BaseURL == "":
		return fmt.Errorf("%w: missing base URL", ErrInvalidConfig)
	case cfg.Runs <= 0:
		return fmt.Errorf("%w: runs must be positive", ErrInvalidConfig)
	case cfg.GameID == "":
		return fmt.Errorf("%w: missing game id", ErrInvalidConfig)
	case cfg.Accuracy < 0 || cfg.Accuracy > 1, cfg.FoldBias < 0 || cfg.FoldBias > 1:
		return fmt.Errorf("%w: probabilities must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}

func playRun(ctx context.Context, c *client, rng *rand.Rand, cfg *Config, stats *Stats) (*run.RunSummary, error) {
	qs := generateQuestions(rng)
	byID := make(map[string]model.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	mode := model.ModeStandard
	if cfg.Practice {
		mode = model.ModePractice
	}

	var start run.StartResult
	req := startRequest{GameID: cfg.GameID, Difficulty: cfg.Difficulty, Mode: mode, Questions: qs}
	if _, err := c.do(ctx, http.MethodPost, "/runs", req, &start, http.StatusCreated); err != nil {
		return nil, err
	}
	stats.RunsStarted++
	if !start.Success && start.Offline {
		// The store is unreachable; accept the practice downgrade.
		stats.RunsHeld++
		if _, err := c.do(ctx, http.MethodPost, "/runs/proceed-offline", nil, nil, http.StatusOK); err != nil {
			return nil, err
		}
	}

	for i := 0; i < run.QuestionsPerRun; i++ {
		var snap run.Snapshot
		if _, err := c.do(ctx, http.MethodGet, "/runs/state", nil, &snap, http.StatusOK); err != nil {
			return nil, err
		}
		if snap.CurrentQuestion == nil {
			return nil, fmt.Errorf("%w: no question shown in state %s", ErrStatus, snap.State)
		}
		q, ok := byID[snap.CurrentQuestion.ID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown question %q", ErrStatus, snap.CurrentQuestion.ID)
		}

		var ans run.AnswerResult
		body := map[string]string{"answer_id": pick(rng, q, cfg.Accuracy, cfg.FoldBias)}
		if _, err := c.do(ctx, http.MethodPost, "/runs/answer", body, &ans, http.StatusOK); err != nil {
			return nil, err
		}
		stats.Answers++
		if ans.IsCorrect {
			stats.Correct++
		}

		var next json.RawMessage
		if _, err := c.do(ctx, http.MethodPost, "/runs/next", nil, &next, http.StatusOK); err != nil {
			return nil, err
		}
		if i == run.QuestionsPerRun-1 {
			var summary run.RunSummary
			if err := json.Unmarshal(next, &summary); err != nil {
				return nil, fmt.Errorf("decode summary: %w", err)
			}
			return &summary, nil
		}
	}
	return nil, fmt.Errorf("%w: run did not complete", ErrStatus)
}

func saveReport(path string, stats *Stats) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, raw, reportPermission); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var accuracy float64
	if stats.Answers > 0 {
		accuracy = float64(stats.Correct) / float64(stats.Answers)
	}
	log.Info(ctx, "final statistics",
		logger.Int("runsStarted", stats.RunsStarted),
		logger.Int("runsCompleted", stats.RunsCompleted),
		logger.Int("runsPassed", stats.RunsPassed),
		logger.Int("runsHeld", stats.RunsHeld),
		logger.Int("levelAdvanced", stats.Advanced),
		logger.Float64("accuracy", accuracy),
		logger.Any("activeLeaks", stats.ActiveLeaks),
		logger.Any("remediation", stats.Remediation),
		logger.String("featuredGame", stats.FeaturedGame),
		logger.Duration("duration", stats.Duration),
	)
}
