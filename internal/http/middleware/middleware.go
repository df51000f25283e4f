// Package middleware holds the net/http middleware wrapped around the
// persons routes: request logging, request metrics and CORS.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/aanand-mishra/persons-api/internal/metrics"
)

// Logger logs one line per request once it has been served.
//
// The level follows the status class: 5xx is an error, 4xx a warning
// (a missing person is routine, not a fault), everything else info.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			level := slog.LevelInfo
			switch status / 100 {
			case 5:
				level = slog.LevelError
			case 4:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, r.Method+" "+r.URL.Path,
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("from", r.RemoteAddr),
				slog.String("ua", r.UserAgent()),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("dur", time.Since(start)),
			)
		})
	}
}

// Metrics records request latency labelled by route pattern, so
// /persons/{id} is one series rather than one per id.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RequestDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(statusOf(ww))).
				Observe(time.Since(start).Seconds())
		})
	}
}

// CORS allows browsers on allowedOrigins to call the API.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{chimw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
	return c.Handler
}

// statusOf treats "handler never wrote a header" as the implicit 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
