// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection patterns.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventGuardrailRejection is logged when a generated or submitted query
	// violates the read-only or table-allowlist guardrails.
	EventGuardrailRejection SecurityEventType = "guardrail_rejection"
	// EventMaskedAccess is logged when masking policies rewrite columns in a
	// result set before it reaches the caller.
	EventMaskedAccess SecurityEventType = "masked_access"
	// EventQueryExecution is logged for successful query execution (optional, can be high volume).
	EventQueryExecution SecurityEventType = "query_execution"
	// EventValidationFailure is logged when a data validation run fails.
	EventValidationFailure SecurityEventType = "validation_failure"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Subject   string            `json:"subject,omitempty"`
	Role      string            `json:"role,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	QueryName   string `json:"query_name"`
}

// GuardrailDetails contains specifics of a rejected query.
type GuardrailDetails struct {
	Reason   string `json:"reason"`
	Question string `json:"question,omitempty"`
	SQL      string `json:"sql,omitempty"`
}

// MaskedAccessDetails records which columns were masked for a caller.
type MaskedAccessDetails struct {
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	// Create a child logger with security-specific namespace for SIEM parsing
	securityLogger := logger.Named("security_audit")
	return &SecurityAuditor{logger: securityLogger}
}

// newEvent builds the common event envelope with caller identity from context.
func newEvent(ctx context.Context, eventType SecurityEventType, clientIP, severity string, details any) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Subject:   auth.GetSubjectFromContext(ctx),
		Role:      string(auth.GetRoleFromContext(ctx)),
		ClientIP:  clientIP,
		Details:   details,
		Severity:  severity,
	}
}

// LogInjectionAttempt records a detected SQL injection attempt with full context.
// This is logged at ERROR level with "critical" severity for immediate alerting.
//
// The context is used to extract caller identity from JWT claims if available.
// Client IP should be extracted from the HTTP request (typically r.RemoteAddr).
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details SQLInjectionDetails, clientIP string) {
	event := newEvent(ctx, EventSQLInjectionAttempt, clientIP, "critical", details)

	// Serialize event to JSON for SIEM ingestion
	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	// Log at ERROR level to ensure visibility in monitoring systems
	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("subject", event.Subject),
		zap.String("severity", "critical"),
	)
}

// LogGuardrailRejection records a query rejected by the SQL guardrails.
// Logged at WARN level; repeated rejections from one subject suggest probing.
func (a *SecurityAuditor) LogGuardrailRejection(ctx context.Context, details GuardrailDetails, clientIP string) {
	event := newEvent(ctx, EventGuardrailRejection, clientIP, "warning", details)
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Query rejected by guardrails",
		zap.String("event_json", string(eventJSON)),
		zap.String("reason", details.Reason),
		zap.String("client_ip", clientIP),
		zap.String("subject", event.Subject),
		zap.String("severity", "warning"),
	)
}

// LogMaskedAccess records that masking policies rewrote result columns for
// the caller. Logged at INFO level for access-pattern analysis.
func (a *SecurityAuditor) LogMaskedAccess(ctx context.Context, details MaskedAccessDetails, clientIP string) {
	event := newEvent(ctx, EventMaskedAccess, clientIP, "info", details)
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Masking applied to result set",
		zap.String("event_json", string(eventJSON)),
		zap.Strings("columns", details.Columns),
		zap.Int("rows", details.Rows),
		zap.String("subject", event.Subject),
		zap.String("severity", "info"),
	)
}

// LogQueryExecution records a successful governed query execution for the
// audit trail. This is logged at INFO level.
// Note: This can generate high log volume in production.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, queryID uuid.UUID, queryName, clientIP string) {
	event := newEvent(ctx, EventQueryExecution, clientIP, "info", map[string]string{
		"query_id":   queryID.String(),
		"query_name": queryName,
	})
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Query executed",
		zap.String("event_json", string(eventJSON)),
		zap.String("query_id", queryID.String()),
		zap.String("query_name", queryName),
		zap.String("client_ip", clientIP),
		zap.String("subject", event.Subject),
		zap.String("severity", "info"),
	)
}

// LogValidationFailure records a failed data validation run.
// Logged at ERROR level so broken demo environments surface immediately.
func (a *SecurityAuditor) LogValidationFailure(ctx context.Context, runID uuid.UUID, failedChecks []string) {
	event := newEvent(ctx, EventValidationFailure, "", "critical", map[string]any{
		"run_id":        runID.String(),
		"failed_checks": failedChecks,
	})
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("Data validation run failed",
		zap.String("event_json", string(eventJSON)),
		zap.String("run_id", runID.String()),
		zap.Strings("failed_checks", failedChecks),
		zap.String("severity", "critical"),
	)
}
