package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength bounds how much SQL ends up in a log line.
	MaxQueryLogLength = 100
	// RedactedText replaces sensitive data in sanitized output.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx in connection strings and errors.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer JWTs (three base64url segments).
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// api_key=... style parameters.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Engine agent keys ("nsk_" + hex). The 8-char display prefix is kept
	// so a sanitized log line can still be matched to a stored key.
	agentKeyPattern = regexp.MustCompile(`(nsk_[0-9a-f]{4})[0-9a-f]+`)

	// user:pass@host URL credentials.
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeConnectionString redacts credentials from a connection string
// before it is logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError redacts secrets from an error message. Database and LLM
// client errors can echo back connection strings, tokens, and keys.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = agentKeyPattern.ReplaceAllString(sanitized, "${1}"+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeQuery truncates and redacts a SQL query for logging. Generated
// SQL can embed literal values from the caller's question.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	sanitized := query
	if len(sanitized) > MaxQueryLogLength {
		sanitized = sanitized[:MaxQueryLogLength] + "..."
	}
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// TruncateString truncates s to maxLen, appending an ellipsis when cut.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
