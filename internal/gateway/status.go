package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/ephemera/internal/cron"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  time.Duration    `json:"uptime_seconds"`
	Metrics MetricsSnapshot  `json:"metrics"`
	Jobs    []cron.JobStatus `json:"jobs"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			Uptime:  time.Since(g.startedAt).Truncate(time.Second) / time.Second,
			Metrics: g.metrics.Snapshot(),
			Jobs:    g.jobStatus(),
		})
	}
}
