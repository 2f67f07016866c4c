package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/audit"
)

// RequestLogger logs HTTP requests at DEBUG level. A nil logger disables
// it, so handler tests can skip the wrapping entirely.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
			}
			// The parsed caller address is present when ClientIP wraps
			// this middleware; otherwise fall back to the raw peer address.
			if ip := audit.ClientIPFromContext(r.Context()); ip != "" {
				fields = append(fields, zap.String("client_ip", ip))
			} else {
				fields = append(fields, zap.String("remote_addr", r.RemoteAddr))
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

// responseWriter captures the status code for the access log and swallows
// duplicate WriteHeader calls, which would otherwise warn on every
// double-write bug in a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
