package api

import (
	"fmt"
	"net/http"

	"github.com/okian/drillcore/internal/domain/model"
)

type startRunRequest struct {
	GameID     string           `json:"game_id"`
	Difficulty int              `json:"difficulty"`
	Mode       model.Mode       `json:"mode"`
	Questions  []model.Question `json:"questions"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.GameID == "" {
		s.fail(w, r, fmt.Errorf("%w: missing game_id", ErrBadRequest))
		return
	}
	res, err := s.deps.StartRun(r.Context(), req.GameID, req.Questions, req.Difficulty, req.Mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleRunState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.RunState())
}

type answerRequest struct {
	AnswerID string `json:"answer_id"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.AnswerID == "" {
		s.fail(w, r, fmt.Errorf("%w: missing answer_id", ErrBadRequest))
		return
	}
	res := s.deps.SubmitAnswer(r.Context(), req.AnswerID)
	if res == nil {
		s.fail(w, r, fmt.Errorf("%w: answer %q", ErrInvalidState, req.AnswerID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.deps.NextQuestion(r.Context())
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: next question", ErrInvalidState))
		return
	}
	if summary != nil {
		writeJSON(w, http.StatusOK, summary)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.RunState())
}

type abortResponse struct {
	Aborted bool `json:"aborted"`
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, abortResponse{Aborted: s.deps.AbortRun(r.Context())})
}

func (s *Server) handleProceedOffline(w http.ResponseWriter, r *http.Request) {
	if !s.deps.ForceProceedOffline(r.Context()) {
		s.fail(w, r, fmt.Errorf("%w: no offline warning pending", ErrInvalidState))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.RunState())
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.RestartRun(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
