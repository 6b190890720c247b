package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/drillcore/internal/domain/model"
)

const (
	defaultEventLimit = 50
	defaultMaxEvents  = 100
)

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

// handleEvents serves GET /events?limit=N from the bus history, newest
// N oldest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := min(defaultEventLimit, s.maxEvents)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(w, r, fmt.Errorf("%w: limit %q", ErrBadRequest, raw))
			return
		}
		limit = min(n, s.maxEvents)
	}
	events := s.deps.History(limit)
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// handlePending serves GET /events/pending.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	events := s.deps.Pending(r.Context())
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// handleStats serves GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.GetStats(r.Context()))
}
