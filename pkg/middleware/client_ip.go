package middleware

import (
	"net"
	"net/http"

	"github.com/netsight-ai/netsight-engine/pkg/audit"
)

// ClientIP returns middleware that stores the caller's IP on the request
// context so the audit trail can record it without threading *http.Request
// through the service layer.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		ctx := audit.ContextWithClientIP(r.Context(), ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
