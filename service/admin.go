package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthResponse struct {
	Status  string      `json:"status"`
	Running bool        `json:"running"`
	LastRun *lastRunDoc `json:"last_run,omitempty"`
}

type lastRunDoc struct {
	Success    bool      `json:"success"`
	Cancelled  bool      `json:"cancelled"`
	Message    string    `json:"message"`
	Records    int       `json:"records"`
	Errors     int       `json:"errors"`
	FinishedAt time.Time `json:"finished_at"`
}

type actionResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Handler serves /metrics, /healthz, POST /stop and POST /run. Runs started
// through /run receive ctx.
func (s *Service) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Running: s.Running()}
		if last, ok := s.LastReport(); ok {
			resp.LastRun = &lastRunDoc{
				Success:    last.Success,
				Cancelled:  last.Cancelled,
				Message:    last.Message,
				Records:    len(last.Records),
				Errors:     len(last.Errors),
				FinishedAt: last.FinishedAt,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, r *http.Request) {
		if !s.Stop() {
			writeJSON(w, http.StatusConflict, actionResponse{Message: "no run in progress"})
			return
		}
		writeJSON(w, http.StatusAccepted, actionResponse{Accepted: true, Message: "stop requested"})
	})

	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		if ctx.Err() != nil {
			writeJSON(w, http.StatusServiceUnavailable, actionResponse{Message: "shutting down"})
			return
		}
		if !s.gate.TryGo(func() { s.RunCycle(ctx) }, nil) {
			writeJSON(w, http.StatusConflict, actionResponse{Message: "run already in progress"})
			return
		}
		writeJSON(w, http.StatusAccepted, actionResponse{Accepted: true, Message: "run started"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", slog.Any("error", err))
	}
}
