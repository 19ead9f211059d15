package httpx

import (
	"context"
	"log/slog"
	"net/http"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func readyHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
				writeError(w, http.StatusServiceUnavailable, name+" unavailable")
				return
			}
		}
		healthHandler(w, r)
	}
}
