package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/drillcore/internal/domain/rotation"
)

const rotationRow = 1

// Cache persists rotation state as one JSON row next to the events.
type Cache struct {
	store *Store
}

// NewCache returns a rotation cache backed by s.
func NewCache(s *Store) *Cache {
	return &Cache{store: s}
}

// Load returns the saved state, or a zero State when none is saved.
func (c *Cache) Load(ctx context.Context) (rotation.State, error) {
	var raw string
	err := c.store.db.QueryRowContext(ctx, c.store.rebind(`SELECT state FROM rotation_state WHERE id = ?`), rotationRow).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return rotation.State{}, nil
	}
	if err != nil {
		return rotation.State{}, classify(fmt.Errorf("load rotation state: %w", err))
	}
	var st rotation.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return rotation.State{}, fmt.Errorf("decode rotation state: %w", err)
	}
	return st, nil
}

// Save upserts st.
func (c *Cache) Save(ctx context.Context, st rotation.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode rotation state: %w", err)
	}
	_, err = c.store.db.ExecContext(ctx, c.store.rebind(`
INSERT INTO rotation_state (id, state, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
`), rotationRow, string(raw), c.store.now().UTC().UnixMilli())
	if err != nil {
		return classify(fmt.Errorf("save rotation state: %w", err))
	}
	return nil
}
