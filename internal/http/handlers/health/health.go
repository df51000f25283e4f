// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aanand-mishra/persons-api/internal/storage"
	"github.com/aanand-mishra/persons-api/internal/utils/response"
)

const pingTimeout = 2 * time.Second

// Live handles GET /healthz. It answers 200 "ok" as long as the process
// can serve HTTP at all.
func Live() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			slog.Debug("healthz write failed", slog.String("error", err.Error()))
		}
	}
}

// Ready handles GET /readyz. Backends implementing storage.Pinger are
// pinged; the in-memory store has nothing to ping and is always ready.
//
//	200 { "status": "ready" }
//	503 { "code": "Internal Server Error", "errors": { "error": ["dial tcp …"] } }
func Ready(repo storage.Repository) http.HandlerFunc {
	pinger, canPing := repo.(storage.Pinger)

	return func(w http.ResponseWriter, r *http.Request) {
		if canPing {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			defer cancel()

			if err := pinger.Ping(ctx); err != nil {
				slog.Warn("storage not ready", slog.String("error", err.Error()))
				response.WriteJSON(w, http.StatusServiceUnavailable,
					response.GeneralError(response.CodeInternal, err))
				return
			}
		}
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
