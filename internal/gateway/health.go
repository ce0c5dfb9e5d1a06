package gateway

import (
	"net/http"

	"github.com/flemzord/ephemera/internal/cron"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string           `json:"status"` // "ok" or "degraded"
	Jobs   []cron.JobStatus `json:"jobs"`
}

// handleHealth returns 200 while every job's last run succeeded and 503 once
// any job's most recent run failed.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok", Jobs: g.jobStatus()}
		for _, j := range resp.Jobs {
			if j.LastError != "" {
				resp.Status = "degraded"
				break
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func (g *Gateway) jobStatus() []cron.JobStatus {
	if g.jobs == nil {
		return []cron.JobStatus{}
	}
	return g.jobs.Status()
}
