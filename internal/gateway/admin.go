package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/flemzord/cronguard/internal/core"
)

type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// RunResponse is the JSON response for POST /api/run.
type RunResponse struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// handleRunCycle runs one dispatch cycle on demand. The cycle obeys the
// same lock as the ticker, so a concurrent cycle yields "contended".
func (g *Gateway) handleRunCycle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.scheduler == nil {
			http.Error(w, "scheduler not available", http.StatusServiceUnavailable)
			return
		}

		outcome, err := g.scheduler.Run(r.Context())
		resp := RunResponse{Outcome: outcome.String()}
		code := http.StatusOK
		if err != nil {
			g.logger.Error("gateway: manual cycle failed", "error", err)
			resp.Error = err.Error()
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, resp)
	}
}

// handleGetAllModules lists all compiled modules (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mods := core.GetModules()
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
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
