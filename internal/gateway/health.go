package gateway

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string    `json:"status"` // "ok" or "degraded"
	Jobs      int       `json:"jobs"`
	LastCycle time.Time `json:"last_cycle,omitzero"`
	Outcome   string    `json:"last_outcome,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// It reports 503 when no scheduler is attached.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		code := http.StatusOK

		if g.scheduler == nil {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			st := g.scheduler.Status()
			resp.Jobs = len(st.Jobs)
			resp.LastCycle = st.LastCycle
			resp.Outcome = st.LastOutcome
		}

		writeJSON(w, code, resp)
	}
}
