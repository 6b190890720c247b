package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/okian/drillcore/internal/domain/rotation"
)

// Cache keeps rotation state in memory for the life of the process.
type Cache struct {
	mu    sync.Mutex
	state rotation.State
	saved bool
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Load returns the last saved state, or a zero State.
func (c *Cache) Load(_ context.Context) (rotation.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.saved {
		return rotation.State{}, nil
	}
	return copyState(c.state), nil
}

// Save replaces the stored state.
func (c *Cache) Save(_ context.Context, st rotation.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = copyState(st)
	c.saved = true
	return nil
}

func copyState(st rotation.State) rotation.State {
	out := rotation.State{
		History:    append([]rotation.HistoryEntry(nil), st.History...),
		LastPlayed: make(map[string]time.Time, len(st.LastPlayed)),
	}
	if st.Selection != nil {
		sel := *st.Selection
		sel.Recommended = append([]rotation.Item(nil), sel.Recommended...)
		sel.LeakGames = append([]rotation.Item(nil), sel.LeakGames...)
		out.Selection = &sel
	}
	for id, t := range st.LastPlayed {
		out.LastPlayed[id] = t
	}
	return out
}
