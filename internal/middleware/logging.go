package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/enrollgate/internal/logging"
)

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and latency of every request.
func LoggingMiddleware(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.ComponentLogger("http")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			fields := []any{
				logging.FieldMethod, r.Method,
				logging.FieldPath, r.URL.Path,
				logging.FieldStatus, rw.statusCode,
				logging.FieldDurationMS, time.Since(start).Milliseconds(),
				logging.FieldAddress, r.RemoteAddr,
			}
			if rw.statusCode >= http.StatusInternalServerError {
				log.Warnw("request failed", fields...)
				return
			}
			log.Infow("request", fields...)
		})
	}
}
