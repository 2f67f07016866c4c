package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotReadOnly indicates the statement is not a plain SELECT/WITH query.
	ErrNotReadOnly = errors.New("only read-only SELECT statements are permitted")

	// ErrTableNotAllowed indicates the query references a table outside the
	// semantic model.
	ErrTableNotAllowed = errors.New("table is not part of the semantic model")
)

// writeKeywords are verbs that must never appear in a governed query,
// checked outside string literals and quoted identifiers. FOR UPDATE row
// locking falls out of the same list.
var writeKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|grant|revoke|merge|vacuum|copy|call|execute|comment|lock)\b`)

// EnsureReadOnly rejects anything other than a single SELECT or WITH
// statement. The caller is expected to have run ValidateAndNormalize first
// so multi-statement input is already gone.
func EnsureReadOnly(sqlQuery string) error {
	scrubbed := scrubQuoted(sqlQuery)
	trimmed := strings.TrimSpace(scrubbed)
	lower := strings.ToLower(trimmed)

	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return ErrNotReadOnly
	}

	if m := writeKeywords.FindString(scrubbed); m != "" {
		return fmt.Errorf("%w: statement contains %s", ErrNotReadOnly, strings.ToUpper(m))
	}

	return nil
}

// tableRefPattern captures identifiers following FROM or JOIN.
var tableRefPattern = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][\w$]*(?:\.[a-zA-Z_][\w$]*)?)`)

// ctePattern captures names introduced by WITH ... AS ( so they are not
// mistaken for physical tables.
var ctePattern = regexp.MustCompile(`(?i)(?:\bwith\s+|,\s*)([a-zA-Z_]\w*)\s+as\s*\(`)

// ExtractTableRefs returns the physical tables a query reads, lowercased,
// deduplicated, in order of first appearance. CTE names and derived tables
// are excluded. Best-effort lexical scan, same approach as the SELECT
// column parser in this package.
func ExtractTableRefs(sqlQuery string) []string {
	scrubbed := scrubQuoted(sqlQuery)

	cteNames := make(map[string]bool)
	for _, m := range ctePattern.FindAllStringSubmatch(scrubbed, -1) {
		cteNames[strings.ToLower(m[1])] = true
	}

	seen := make(map[string]bool)
	var tables []string
	for _, m := range tableRefPattern.FindAllStringSubmatch(scrubbed, -1) {
		name := strings.ToLower(m[1])
		if cteNames[name] || seen[name] {
			continue
		}
		seen[name] = true
		tables = append(tables, name)
	}

	return tables
}

// ValidateTableAccess checks that every table the query reads is declared
// in the semantic model. The allowed set is keyed by lowercased
// schema-qualified names ("wifi.qos_facts"); unqualified references are
// also tried against the bare table names present in the set.
func ValidateTableAccess(sqlQuery string, allowed map[string]bool) error {
	bare := make(map[string]bool, len(allowed))
	for name := range allowed {
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			bare[name[idx+1:]] = true
		}
	}

	for _, table := range ExtractTableRefs(sqlQuery) {
		if allowed[table] {
			continue
		}
		if !strings.Contains(table, ".") && bare[table] {
			continue
		}
		return fmt.Errorf("%w: %q", ErrTableNotAllowed, table)
	}

	return nil
}

// scrubQuoted blanks out the contents of string literals and quoted
// identifiers so keyword and table scans cannot be fooled by values like
// 'drop table'. The string length is preserved.
func scrubQuoted(sqlQuery string) string {
	out := []rune(sqlQuery)

	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	for i, ch := range out {
		switch state {
		case stateNormal:
			switch ch {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if ch == '\'' {
				state = stateNormal
			} else {
				out[i] = ' '
			}
		case stateDoubleQuote:
			if ch == '"' {
				state = stateNormal
			} else {
				out[i] = ' '
			}
		}
	}

	return string(out)
}
