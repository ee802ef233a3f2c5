// Package api is the HTTP control plane over the scheduler's public
// operations: start/stop/pause/resume/refresh, live interval/thread
// updates, status and catalog reads, and a websocket status stream. It
// is a thin request/response mapping layer — every operation it
// exposes is implemented by internal/scheduler; this package owns no
// state of its own beyond the websocket hub's subscriber list.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/proxycatalog/catalog/internal/logging"
	"github.com/proxycatalog/catalog/internal/scheduler"
)

// Server wraps a *scheduler.Scheduler behind net/http.ServeMux handlers.
type Server struct {
	scheduler *scheduler.Scheduler
	logger    *logging.Logger
	hub       *statusHub
	http      *http.Server
}

// NewServer builds a control-plane Server for sched, listening on addr
// once Start is called. It registers itself as the scheduler's
// cycle-complete hook so /ws/status subscribers receive a push at the
// end of every validation cycle.
func NewServer(addr string, sched *scheduler.Scheduler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	s := &Server{
		scheduler: sched,
		logger:    logger,
		hub:       newStatusHub(logger),
	}

	sched.SetOnCycleComplete(s.hub.broadcast)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /scheduler/start", s.handleStart)
	mux.HandleFunc("POST /scheduler/stop", s.handleStop)
	mux.HandleFunc("POST /scheduler/pause", s.handlePause)
	mux.HandleFunc("POST /scheduler/resume", s.handleResume)
	mux.HandleFunc("POST /scheduler/refresh", s.handleRefresh)
	mux.HandleFunc("POST /scheduler/interval", s.handleSetInterval)
	mux.HandleFunc("POST /scheduler/threads", s.handleSetThreads)
	mux.HandleFunc("GET /scheduler/status", s.handleGetStatus)
	mux.HandleFunc("GET /proxies", s.handleGetProxies)
	mux.HandleFunc("GET /ws/status", s.handleWSStatus)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start runs the control-plane HTTP server. It blocks until the server
// stops; callers typically invoke it from its own goroutine.
func (s *Server) Start() error {
	s.logger.Info("control plane listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the control-plane server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// snapshotResponse is the wire shape of a scheduler.Snapshot — field
// names match spec's get_status() vocabulary rather than Go's internal
// CamelCase so API consumers see the published contract.
type snapshotResponse struct {
	Status               string  `json:"status"`
	ValidationInProgress bool    `json:"validation_in_progress"`
	IntervalSeconds      int     `json:"interval_seconds"`
	ValidationThreads    int     `json:"validation_threads"`
	TestURL              string  `json:"test_url"`
	LastRunTime          *string `json:"last_run_time"`
	NextRunTime          *string `json:"next_run_time"`
	CurrentProxyCount    int     `json:"current_proxy_count"`
	ValidProxyCount      int     `json:"valid_proxy_count"`
}

func snapshotView(snap scheduler.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		Status:               string(snap.Status),
		ValidationInProgress: snap.ValidationInProgress,
		IntervalSeconds:      snap.IntervalSeconds,
		ValidationThreads:    snap.ValidationThreads,
		TestURL:              snap.TestURL,
		CurrentProxyCount:    snap.CurrentProxyCount,
		ValidProxyCount:      snap.ValidProxyCount,
	}
	if snap.LastRunTime != nil {
		s := snap.LastRunTime.Format(time.RFC3339)
		resp.LastRunTime = &s
	}
	if snap.NextRunTime != nil {
		s := snap.NextRunTime.Format(time.RFC3339)
		resp.NextRunTime = &s
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// validationError is the response body for malformed control-plane
// arguments, reported as HTTP 422.
type validationError struct {
	Error string `json:"error"`
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, validationError{Error: err.Error()})
}
