// Package sqlstore is the durable event store on sqlite or postgres, with
// the rotation cache kept in the same database.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/drillcore/internal/adapters/storage"
	"github.com/okian/drillcore/internal/adapters/storage/sqlstore/migrations"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/pkg/logger"
	"github.com/okian/drillcore/pkg/metrics"
)

// Dialect names a supported backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex //nolint:gochecknoglobals // guards goose globals

// Store appends event records once per idempotency key.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     logger.Logger
	now     func() time.Time
	migrate bool
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", storage.ErrUnavailable)
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return open(ctx, "sqlite", dsn, DialectSQLite, opts)
}

// OpenPostgres connects with a pgx DSN.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	return open(ctx, "pgx", dsn, DialectPostgres, opts)
}

func open(ctx context.Context, driver, dsn string, dialect Dialect, opts []Option) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", storage.ErrUnavailable, dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, dialect: dialect, log: logger.Nop(), now: time.Now, migrate: true}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", storage.ErrUnavailable, dialect, err)
	}
	if s.migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s.log.Info(ctx, "event store opened", logger.String("dialect", string(dialect)))
	return s, nil
}

// Migrate applies the embedded migrations of the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	dir := "sqlite"
	if s.dialect == DialectPostgres {
		dir = "postgres"
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(s.dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("%w: migrate: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the backend dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Append inserts r unless a record with the same idempotency key exists.
func (s *Store) Append(ctx context.Context, r storage.Record) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO events (
	event_id,
	actor_id,
	kind,
	mode,
	idempotency_key,
	payload,
	occurred_at,
	recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (idempotency_key) DO NOTHING
`),
		r.EventID,
		r.ActorID,
		string(r.Kind),
		r.Mode.String(),
		r.IdempotencyKey,
		string(r.Payload),
		r.OccurredAt.UTC().UnixMilli(),
		s.now().UTC().UnixMilli(),
	)
	metrics.RecordPersistLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return classify(fmt.Errorf("append %s: %w", r.Kind, err))
	}
	return nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(fmt.Errorf("ping: %w", err))
	}
	return nil
}

// Records returns up to limit of the most recent records, oldest first.
func (s *Store) Records(ctx context.Context, limit int) ([]storage.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT event_id, actor_id, kind, mode, idempotency_key, payload, occurred_at, recorded_at
FROM events
ORDER BY seq DESC
LIMIT ?
`), limit)
	if err != nil {
		return nil, classify(fmt.Errorf("list events: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var out []storage.Record
	for rows.Next() {
		var (
			r                   storage.Record
			kind, mode, payload string
			occurred, recorded  int64
		)
		if err := rows.Scan(&r.EventID, &r.ActorID, &kind, &mode, &r.IdempotencyKey, &payload, &occurred, &recorded); err != nil {
			return nil, classify(fmt.Errorf("scan event: %w", err))
		}
		r.Kind = model.Kind(kind)
		if r.Mode, err = model.ParseMode(mode); err != nil {
			return nil, fmt.Errorf("event %s: %w", r.EventID, err)
		}
		r.Payload = []byte(payload)
		r.OccurredAt = time.UnixMilli(occurred).UTC()
		r.RecordedAt = time.UnixMilli(recorded).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("list events: %w", err))
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("count events: %w", err))
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
