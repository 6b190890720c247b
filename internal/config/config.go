// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Durations are configured in milliseconds or hours and exposed as time.Duration helpers.
// - External errors must be wrapped via this package's sentinel errors.
package config

import "time"

// Store drivers accepted by StoreDriver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// ActorID identifies the trainee whose events are recorded.
	ActorID string `koanf:"actor_id" validate:"required"`

	// StoreDriver picks the durable event store backend.
	StoreDriver string `koanf:"store_driver" validate:"oneof=sqlite postgres memory"`
	SQLitePath  string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`
	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=StoreDriver postgres"`

	// HealthCheckIntervalMS sets the pipeline health probe period.
	HealthCheckIntervalMS int `koanf:"health_check_interval_ms" validate:"gt=0"`

	// PendingQueueSize bounds the offline event queue.
	PendingQueueSize int `koanf:"pending_queue_size" validate:"gt=0"`

	// DedupeSize bounds the idempotency key recorder.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// SoftAckMissingSchema acknowledges events locally when the backend table is missing.
	SoftAckMissingSchema bool `koanf:"soft_ack_missing_schema"`

	// QuestionBudgetMS is the per-question time budget used for speed tiers.
	QuestionBudgetMS int `koanf:"question_budget_ms" validate:"gt=0"`

	// LeakWindow and LeakThreshold configure the leak analyzer.
	LeakWindow    int `koanf:"leak_window" validate:"gt=0"`
	LeakThreshold int `koanf:"leak_threshold" validate:"gt=0,ltefield=LeakWindow"`

	// Rotation scheduler tuning.
	RotationEpochHours int     `koanf:"rotation_epoch_hours" validate:"gt=0"`
	VarietyWindowDays  int     `koanf:"variety_window_days" validate:"gt=0"`
	HistoryCap         int     `koanf:"history_cap" validate:"gt=0"`
	MasteryFloor       float64 `koanf:"mastery_floor" validate:"gte=0,lte=100"`
	LeakGamesCap       int     `koanf:"leak_games_cap" validate:"gt=0"`
	RecommendedCount   int     `koanf:"recommended_count" validate:"gte=6,lte=8"`

	// CatalogPath points to an optional YAML catalog; empty uses the built-in list.
	CatalogPath string `koanf:"catalog_path"`

	// MaxEventsLimit caps GET /events?limit.
	MaxEventsLimit int `koanf:"max_events_limit" validate:"gt=0"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		ActorID:               "local-trainee",
		StoreDriver:           DriverSQLite,
		SQLitePath:            "drill.db",
		HealthCheckIntervalMS: 30_000,
		PendingQueueSize:      1_000,
		DedupeSize:            10_000,
		SoftAckMissingSchema:  true,
		QuestionBudgetMS:      15_000,
		LeakWindow:            20,
		LeakThreshold:         3,
		RotationEpochHours:    24,
		VarietyWindowDays:     7,
		HistoryCap:            30,
		MasteryFloor:          70,
		LeakGamesCap:          6,
		RecommendedCount:      8,
		MaxEventsLimit:        100,
	}
}

// HealthCheckInterval returns the probe period.
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalMS) * time.Millisecond
}

// QuestionBudget returns the per-question time budget.
func (c *Config) QuestionBudget() time.Duration {
	return time.Duration(c.QuestionBudgetMS) * time.Millisecond
}

// RotationEpoch returns the rotation epoch length.
func (c *Config) RotationEpoch() time.Duration {
	return time.Duration(c.RotationEpochHours) * time.Hour
}

// VarietyWindow returns the look-back window of the variety term.
func (c *Config) VarietyWindow() time.Duration {
	return time.Duration(c.VarietyWindowDays) * 24 * time.Hour
}
