package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
)

var errThreadsOutOfRange = errors.New("api: threads must be between 1 and 200")

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotView(s.scheduler.Start()))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotView(s.scheduler.Stop()))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotView(s.scheduler.Pause()))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotView(s.scheduler.Resume()))
}

type refreshRequest struct {
	Background bool `json:"background"`
}

type refreshResponse struct {
	Message string           `json:"message"`
	Status  snapshotResponse `json:"status"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	msg, snap := s.scheduler.RefreshNow(req.Background)
	writeJSON(w, http.StatusOK, refreshResponse{Message: msg, Status: snapshotView(snap)})
}

type intervalRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, err)
		return
	}

	snap, err := s.scheduler.SetInterval(req.Seconds)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(snap))
}

type threadsRequest struct {
	Threads int `json:"threads"`
}

func (s *Server) handleSetThreads(w http.ResponseWriter, r *http.Request) {
	var req threadsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.Threads < 1 || req.Threads > 200 {
		writeValidationError(w, errThreadsOutOfRange)
		return
	}

	snap, err := s.scheduler.SetValidationThreads(req.Threads)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(snap))
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotView(s.scheduler.GetStatus()))
}

func (s *Server) handleGetProxies(w http.ResponseWriter, r *http.Request) {
	onlyValid, _ := strconv.ParseBool(r.URL.Query().Get("only_valid"))
	records := s.scheduler.GetProxies(onlyValid)
	writeJSON(w, http.StatusOK, proxyViews(records))
}

func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	s.hub.serveWS(w, r, s.scheduler.GetStatus())
}

// proxyResponse is the wire shape of a catalog.Record.
type proxyResponse struct {
	IP             string   `json:"ip"`
	Port           int      `json:"port"`
	Protocol       string   `json:"protocol"`
	Country        string   `json:"country,omitempty"`
	Anonymity      string   `json:"anonymity,omitempty"`
	Source         string   `json:"source,omitempty"`
	ResponseTimeMs *float64 `json:"response_time_ms,omitempty"`
	LastChecked    *string  `json:"last_checked,omitempty"`
	IsValid        bool     `json:"is_valid"`
}

func proxyViews(records []catalog.Record) []proxyResponse {
	out := make([]proxyResponse, 0, len(records))
	for _, r := range records {
		view := proxyResponse{
			IP:             r.IP,
			Port:           r.Port,
			Protocol:       string(r.Protocol),
			Country:        r.Country,
			Anonymity:      r.Anonymity,
			Source:         r.Source,
			ResponseTimeMs: r.ResponseTimeMs,
			IsValid:        r.IsValid,
		}
		if r.LastChecked != nil {
			ts := r.LastChecked.Format(time.RFC3339)
			view.LastChecked = &ts
		}
		out = append(out, view)
	}
	return out
}
