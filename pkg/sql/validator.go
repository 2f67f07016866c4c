// Package sql validates and prepares analyst-facing SQL before it reaches
// the warehouse: single-statement normalization, read-only guardrails,
// table allow-listing, named-parameter handling, and injection checks on
// parameter values.
package sql

import (
	"errors"
	"strings"
)

// ErrMultipleStatements indicates the query contains more than one SQL
// statement. Governed execution runs exactly one.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

// ValidationResult carries the normalized SQL or the rejection.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize trims the query, strips one trailing semicolon, and
// rejects anything that still contains a semicolon outside string literals.
// A single trailing semicolon is tolerated because humans paste SQL that
// way; a second statement is not.
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{}
	}

	normalized := strings.TrimSuffix(sqlQuery, ";")
	normalized = strings.TrimRight(normalized, " \t\n\r")

	if semicolonOutsideLiterals(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// semicolonOutsideLiterals scans the query tracking single- and
// double-quoted literals. Both backslash escapes (\') and the SQL
// standard doubled quote ('') are handled: a doubled quote reads as
// close-then-reopen, which keeps the scan inside the literal.
func semicolonOutsideLiterals(sqlQuery string) bool {
	var inSingle, inDouble bool
	var prev rune

	for _, ch := range sqlQuery {
		switch {
		case inSingle:
			if ch == '\'' && prev != '\\' {
				inSingle = false
			}
		case inDouble:
			if ch == '"' && prev != '\\' {
				inDouble = false
			}
		case ch == ';':
			return true
		case ch == '\'':
			inSingle = true
		case ch == '"':
			inDouble = true
		}
		prev = ch
	}

	return false
}
