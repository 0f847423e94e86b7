package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// authMiddleware admits requests carrying the configured bearer token or
// basic credentials. Comparisons run in constant time. Rejections are
// logged when logger is non-nil.
func authMiddleware(cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := cfg.check(r)
			if reason == "" {
				next.ServeHTTP(w, r)
				return
			}
			if logger != nil {
				logger.Warn("gateway: request rejected",
					"reason", reason,
					"remote_addr", r.RemoteAddr,
					"method", r.Method,
					"path", r.URL.Path,
				)
			}
			if cfg.hasBasic() {
				w.Header().Set("WWW-Authenticate", `Basic realm="cronguard"`)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// check returns why r is not authorized, or "" if it is.
func (a AuthConfig) check(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "missing authorization header"
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && a.BearerToken != "" {
		if secureEqual(token, a.BearerToken) {
			return ""
		}
		return "invalid bearer token"
	}
	if user, pass, ok := r.BasicAuth(); ok && a.hasBasic() {
		// Evaluate both so timing does not reveal which one was wrong.
		userOK := secureEqual(user, a.BasicUser)
		passOK := secureEqual(pass, a.BasicPass)
		if userOK && passOK {
			return ""
		}
		return "invalid basic credentials"
	}
	return "unsupported authorization scheme"
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
