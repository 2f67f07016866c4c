package audit

import "context"

type contextKey string

// clientIPKey is the context key the HTTP middleware stores the caller's
// remote address under.
const clientIPKey contextKey = "clientIP"

// ContextWithClientIP stores the caller's IP for downstream audit events.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the caller's IP, or empty when the request
// did not pass through the HTTP middleware (CLI, tests).
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
