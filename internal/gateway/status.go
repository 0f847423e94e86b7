package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/cronguard/internal/cron"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64       `json:"uptime_seconds"`
	Window    string      `json:"window,omitempty"`
	Scheduler cron.Status `json:"scheduler"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:    int64(g.clock().Sub(g.startedAt) / time.Second),
			Scheduler: cron.Status{Jobs: []cron.JobStatus{}},
		}

		if g.scheduler != nil {
			resp.Scheduler = g.scheduler.Status()
			if win, ok := g.scheduler.(interface{ Window() time.Duration }); ok {
				resp.Window = win.Window().String()
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
