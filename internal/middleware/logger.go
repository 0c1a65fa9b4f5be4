package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// responseRecorder keeps what the access log needs from a response.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.size += n
	return n, err
}

// Logger writes one access line per request. The route is the chi pattern
// (e.g. /api/v1/wizard/{sessionID}/files) so ids do not blow up cardinality.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rr := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rr, r)

			if rr.status == 0 {
				rr.status = http.StatusOK
			}
			level, outcome := slog.LevelInfo, "served"
			switch {
			case rr.status >= http.StatusInternalServerError:
				level, outcome = slog.LevelError, "failed"
			case rr.status >= http.StatusBadRequest:
				level, outcome = slog.LevelWarn, "rejected"
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			log.LogAttrs(r.Context(), level, "http request: "+outcome,
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", rr.status),
				slog.Int("bytes", rr.size),
				slog.Int64("duration_ms", time.Since(started).Milliseconds()),
			)
		})
	}
}
