package tools

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorResponse represents a structured error in tool results.
// Caller-actionable errors are returned as successful tool results carrying
// this JSON, so the agent sees the details instead of an opaque protocol
// error it cannot react to.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors the agent can fix and retry: an unknown
// query name, a missing parameter, a question the guardrails rejected.
//
// Do NOT use this for system failures (database connection errors,
// internal server errors) - those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with additional context.
// The details field carries structured data the agent can use to correct
// the call, e.g. the list of defined parameters after a missing-parameter
// rejection.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// IsSQLUserError returns true if the error is a SQL user error (bad SQL,
// constraint violation, missing table) rather than a server error
// (connection failure, internal error).
//
// These errors come back as JSON error results, not MCP protocol errors,
// because the agent can fix its SQL or parameters and retry.
//
// PostgreSQL SQLSTATE class codes that indicate user errors:
//   - 22xxx: Data Exception (invalid input, division by zero)
//   - 23xxx: Integrity Constraint Violation (unique, FK, check)
//   - 42xxx: Syntax Error or Access Rule Violation
//   - 44xxx: WITH CHECK OPTION Violation
func IsSQLUserError(err error) bool {
	if err == nil {
		return false
	}

	// Check for pgconn.PgError (structured PostgreSQL error)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isSQLStateUserError(pgErr.Code)
	}

	// Check for SQLSTATE pattern in error message (for wrapped errors)
	errStr := err.Error()
	if matches := sqlStateRegex.FindStringSubmatch(errStr); len(matches) >= 2 {
		return isSQLStateUserError(matches[1])
	}

	return false
}

// isSQLStateUserError returns true if the SQLSTATE code indicates a user error.
func isSQLStateUserError(code string) bool {
	if len(code) < 2 {
		return false
	}
	class := code[:2]
	switch class {
	case "22", // Data Exception
		"23", // Integrity Constraint Violation
		"42", // Syntax Error or Access Rule Violation
		"44": // WITH CHECK OPTION Violation
		return true
	}
	return false
}

// SQLUserErrorCode returns an appropriate error code for a SQL user error.
// Returns empty string if the error is not a SQL user error.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapSQLStateToCode(pgErr.Code)
	}

	errStr := err.Error()
	if matches := sqlStateRegex.FindStringSubmatch(errStr); len(matches) >= 2 {
		return mapSQLStateToCode(matches[1])
	}

	return ""
}

// mapSQLStateToCode maps a SQLSTATE code to a human-readable error code.
func mapSQLStateToCode(sqlState string) string {
	if len(sqlState) < 2 {
		return "sql_error"
	}

	switch sqlState {
	case "42601": // syntax_error
		return "syntax_error"
	case "42703": // undefined_column
		return "undefined_column"
	case "42P01": // undefined_table
		return "undefined_table"
	case "42P02": // undefined_parameter
		return "undefined_parameter"
	case "23505": // unique_violation
		return "unique_violation"
	case "23503": // foreign_key_violation
		return "foreign_key_violation"
	case "23502": // not_null_violation
		return "not_null_violation"
	case "23514": // check_violation
		return "check_violation"
	case "22001": // string_data_right_truncation (value too long)
		return "value_too_long"
	case "22003": // numeric_value_out_of_range
		return "numeric_out_of_range"
	case "22007": // invalid_datetime_format
		return "invalid_datetime"
	case "22012": // division_by_zero
		return "division_by_zero"
	case "22P02": // invalid_text_representation (invalid input syntax)
		return "invalid_input"
	}

	// Fall back to class-based codes
	class := sqlState[:2]
	switch class {
	case "22":
		return "data_exception"
	case "23":
		return "constraint_violation"
	case "42":
		return "sql_error"
	case "44":
		return "check_option_violation"
	}

	return "sql_error"
}

// ExtractSQLErrorMessage extracts a clean error message from a SQL error.
// Removes the "SQLSTATE XXXXX" suffix and wrapping prefixes for cleaner display.
func ExtractSQLErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}

	msg := err.Error()

	// Remove SQLSTATE suffix
	if idx := strings.Index(msg, " (SQLSTATE"); idx != -1 {
		msg = msg[:idx]
	}

	// Remove the wrapping prefixes the governed query path adds
	prefixes := []string{
		"generated query failed after repair: ",
		"generated query failed: ",
		"execute query: ",
		"ERROR: ",
	}
	for _, prefix := range prefixes {
		msg = strings.TrimPrefix(msg, prefix)
	}

	return msg
}

// NewSQLErrorResult creates an error result from a SQL error if it's a user error.
// Returns nil if the error is not a SQL user error (caller should return Go error instead).
//
// Example usage:
//
//	result, err := deps.Queries.RunByName(ctx, name, params, limit)
//	if err != nil {
//	    if errResult := NewSQLErrorResult(err); errResult != nil {
//	        return errResult, nil
//	    }
//	    return nil, fmt.Errorf("execution failed: %w", err)
//	}
func NewSQLErrorResult(err error) *mcp.CallToolResult {
	if !IsSQLUserError(err) {
		return nil
	}
	code := SQLUserErrorCode(err)
	message := ExtractSQLErrorMessage(err)
	return NewErrorResult(code, message)
}

// inputErrorPatterns are substrings that indicate an error is due to caller
// input rather than a server failure. These errors are logged at DEBUG
// level, not ERROR level, because they are expected when agents probe.
var inputErrorPatterns = []string{
	"not found",
	"is required",
	"no active semantic model",
	"only read statements",
	"references tables outside",
	"injection screening",
	"unknown tier",
	"already exists",
	"invalid input",
}

// IsInputError returns true if the error appears to be caused by caller
// input rather than a server failure: SQL user errors, guardrail
// rejections, unknown names or IDs.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}

	if IsSQLUserError(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range inputErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
