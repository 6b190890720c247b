package api

import (
	"net/http"

	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/domain/rotation"
)

func (s *Server) handleGetRotation(w http.ResponseWriter, r *http.Request) {
	sel, err := s.deps.Rotation(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	sel, err := s.deps.Rotate(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sel)
}

type userContextRequest struct {
	Mastery map[string]float64 `json:"mastery"`
	Leaks   []string           `json:"leaks"`
}

type leakGamesResponse struct {
	LeakGames []rotation.Item `json:"leak_games"`
}

func (s *Server) handleUserContext(w http.ResponseWriter, r *http.Request) {
	var req userContextRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	games := s.deps.UpdateUserContext(r.Context(), req.Mastery, req.Leaks)
	if games == nil {
		games = []rotation.Item{}
	}
	writeJSON(w, http.StatusOK, leakGamesResponse{LeakGames: games})
}

type leaksResponse struct {
	Active []model.LeakCategory `json:"active"`
}

func (s *Server) handleGetLeaks(w http.ResponseWriter, _ *http.Request) {
	active := s.deps.ActiveLeaks()
	if active == nil {
		active = []model.LeakCategory{}
	}
	writeJSON(w, http.StatusOK, leaksResponse{Active: active})
}

func (s *Server) handleResetLeaks(w http.ResponseWriter, r *http.Request) {
	s.deps.ResetLeaks(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
