package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/cron"
)

// handleListJobs returns every registered job with its run history.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.jobStatus())
	}
}

// runResponse is the JSON body for POST /api/jobs/{name}/run.
type runResponse struct {
	Job      string        `json:"job"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ms"`
	Error    string        `json:"error,omitempty"`
}

// handleRunJob runs a job synchronously and reports the outcome.
func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if g.jobs == nil {
			http.Error(w, "scheduler not available", http.StatusServiceUnavailable)
			return
		}

		g.metrics.RecordManualRun()
		start := time.Now()
		err := g.jobs.RunNow(r.Context(), name)
		resp := runResponse{Job: name, Status: "completed", Duration: time.Since(start) / time.Millisecond}

		switch {
		case err == nil:
			g.logger.Info("gateway: manual job run", "job", name)
			writeJSON(w, http.StatusOK, resp)
		case errors.Is(err, cron.ErrUnknownJob):
			http.Error(w, "unknown job", http.StatusNotFound)
		case errors.Is(err, cron.ErrJobRunning):
			http.Error(w, "job already running", http.StatusConflict)
		default:
			resp.Status = "failed"
			resp.Error = err.Error()
			writeJSON(w, http.StatusInternalServerError, resp)
		}
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{ID: string(m.ID), Namespace: m.ID.Namespace()})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
