package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/drillcore/internal/adapters/health"
	"github.com/okian/drillcore/pkg/metrics"
)

// HandleHealth serves GET /healthz as Prometheus exposition.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

type healthResponse struct {
	Online  bool `json:"online"`
	Pending int  `json:"pending"`
}

// handleHealthCheck serves POST /pipeline/health: probe now and flush.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	online := s.deps.HealthCheck(r.Context())
	writeJSON(w, http.StatusOK, healthResponse{Online: online, Pending: len(s.deps.Pending(r.Context()))})
}

type offlineRequest struct {
	Reason string `json:"reason"`
}

// handleMarkOffline serves POST /pipeline/offline.
func (s *Server) handleMarkOffline(w http.ResponseWriter, r *http.Request) {
	req := offlineRequest{Reason: "client"}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.deps.MarkOffline(r.Context(), req.Reason)
	writeJSON(w, http.StatusOK, healthResponse{Online: false, Pending: len(s.deps.Pending(r.Context()))})
}

type signalRequest struct {
	Signal string `json:"signal"`
}

type signalResponse struct {
	Accepted bool `json:"accepted"`
}

// handleSignal serves POST /pipeline/signal with focus, online or offline.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sig, err := health.ParseSignal(req.Signal)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, signalResponse{Accepted: s.deps.Signal(sig)})
}
