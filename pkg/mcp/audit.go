package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/masking"
)

// AuditLogger records MCP tool activity as structured log events. The
// service layer already audits query execution and guardrail rejections;
// this layer covers the agent-facing surface: which caller invoked which
// tool, with what arguments, and how the call ended. Arguments are
// sanitized before logging so agent-supplied values never land in the
// audit stream verbatim.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP events.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	startTime, _ := a.loadAndDeleteStart(id)

	fields := a.callFields(ctx, req)
	fields = append(fields, zap.Int64("duration_ms", time.Since(startTime).Milliseconds()))

	// Tool handlers report caller-actionable failures as error results, not
	// Go errors, so the error path here is still a completed call.
	if result != nil && result.IsError {
		fields = append(fields, errorResultFields(result)...)
		a.logger.Warn("MCP tool returned error result", fields...)
		return
	}

	if rowCount, ok := resultRowCount(result); ok {
		fields = append(fields, zap.Int("row_count", rowCount))
	}
	a.logger.Info("MCP tool call", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	startTime, _ := a.loadAndDeleteStart(id)

	fields := a.callFields(ctx, req)
	fields = append(fields,
		zap.Int64("duration_ms", time.Since(startTime).Milliseconds()),
		zap.Error(err),
	)
	a.logger.Error("MCP tool call failed", fields...)
}

func (a *AuditLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}

// callFields builds the shared caller/tool fields for a tool call event.
func (a *AuditLogger) callFields(ctx context.Context, req *mcplib.CallToolRequest) []zap.Field {
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.String("role", string(auth.GetRoleFromContext(ctx))),
	}
	if subject := auth.GetSubjectFromContext(ctx); subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	if params := sanitizeParams(req.Params.Arguments); len(params) > 0 {
		fields = append(fields, zap.Any("params", params))
	}
	return fields
}

// RecordAuthFailure logs a failed MCP authentication attempt.
// Called from the MCP auth middleware when authentication fails.
func (a *AuditLogger) RecordAuthFailure(reason, keyPrefix, clientIP string) {
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("security_flag", "auth_failure"),
	}
	if keyPrefix != "" {
		fields = append(fields, zap.String("key_prefix", keyPrefix))
	}
	if clientIP != "" {
		fields = append(fields, zap.String("client_ip", clientIP))
	}
	a.logger.Warn("MCP authentication failed", fields...)
}

// maxParamSize is the maximum size of parameter strings kept in audit events.
const maxParamSize = 10240 // 10KB

// sqlStringLiteralPattern matches SQL string literals: 'value', 'it''s escaped', etc.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

// sanitizeParams sanitizes tool arguments before logging.
// Applies: size truncation, string literal redaction in SQL-shaped values,
// and hashing of values whose key names the masking detector flags.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	// Values under keys the column detector recognizes (emails, MACs,
	// serials, ...) are hashed: correlatable across events, never stored.
	if _, sensitive := masking.DefaultDetector.Match(key); sensitive {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeNestedParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key string, val string) string {
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}

	if isSQLParam(key) {
		val = redactSQLStringLiterals(val)
	}

	return val
}

// sanitizeNestedParams recursively sanitizes nested maps. Verified query
// parameters arrive as one of these.
func sanitizeNestedParams(params map[string]any) map[string]any {
	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// redactSQLStringLiterals replaces string literal values in SQL with '***',
// preserving the query structure while hiding the supplied values.
func redactSQLStringLiterals(sql string) string {
	return sqlStringLiteralPattern.ReplaceAllString(sql, "'***'")
}

// hashSensitiveValue returns a SHA-256 hash prefix for sensitive values,
// allowing correlation across audit entries without storing the value.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// errorResultFields extracts the structured error code from an error result
// so downstream alerting can key on it without parsing log messages.
func errorResultFields(result *mcplib.CallToolResult) []zap.Field {
	text := firstTextContent(result)
	if text == "" {
		return nil
	}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil || body.Code == "" {
		return nil
	}

	fields := []zap.Field{zap.String("error_code", body.Code)}

	lower := strings.ToLower(body.Code + " " + body.Message)
	if body.Code == "query_not_permitted" || strings.Contains(lower, "injection") {
		fields = append(fields, zap.String("security_flag", "guardrail_rejection"))
	}
	return fields
}

// resultRowCount extracts the row_count field from a JSON tool result, when
// present, so large data pulls are visible without parsing full responses.
func resultRowCount(result *mcplib.CallToolResult) (int, bool) {
	text := firstTextContent(result)
	if text == "" {
		return 0, false
	}

	var partial struct {
		RowCount *int `json:"row_count"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil || partial.RowCount == nil {
		return 0, false
	}
	return *partial.RowCount, true
}

// firstTextContent returns the first text block of a tool result.
func firstTextContent(result *mcplib.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
