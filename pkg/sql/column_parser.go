package sql

import (
	"regexp"
	"strings"
)

// ParsedColumn is one entry of a SELECT list.
type ParsedColumn struct {
	Name string // column name or alias
	Expr string // full expression, e.g. "AVG(latency_ms)"
}

var (
	asAliasPattern  = regexp.MustCompile(`\s+as\s+(\w+)\s*$`)
	funcCallPattern = regexp.MustCompile(`^(\w+)\s*\(`)
	nonWordPattern  = regexp.MustCompile(`[^\w]`)
)

// ParseSelectColumns extracts the projected column names from a SELECT
// statement with a lightweight scan: plain columns, AS and implicit
// aliases, function calls, and table-qualified names. It is a best-effort
// helper for deriving a column contract, not a SQL parser; subqueries in
// the SELECT list are out of scope and the input is assumed to have passed
// validation. SELECT * and non-SELECT statements yield nil.
func ParseSelectColumns(sql string) ([]ParsedColumn, error) {
	sql = strings.TrimSpace(sql)
	sqlLower := strings.ToLower(sql)

	selectIdx := strings.Index(sqlLower, "select")
	if selectIdx == -1 {
		return nil, nil
	}

	// The SELECT list ends at the first clause keyword.
	endIdx := len(sql)
	for _, keyword := range []string{" from ", " where ", " group ", " order ", " limit ", " union ", " intersect ", " except ", ";"} {
		if idx := strings.Index(sqlLower[selectIdx:], keyword); idx != -1 && selectIdx+idx < endIdx {
			endIdx = selectIdx + idx
		}
	}

	selectClause := strings.TrimSpace(sql[selectIdx+len("select") : endIdx])
	if strings.HasPrefix(selectClause, "*") {
		// Wildcard projection needs schema knowledge to resolve.
		return nil, nil
	}

	var result []ParsedColumn
	for _, col := range splitSelectList(selectClause) {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		result = append(result, parseColumnExpression(col))
	}

	return result, nil
}

// splitSelectList splits on commas at parenthesis depth zero, so commas
// inside function calls do not break expressions apart.
func splitSelectList(selectClause string) []string {
	var columns []string
	var current strings.Builder
	depth := 0

	for _, ch := range selectClause {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				columns = append(columns, current.String())
				current.Reset()
				continue
			}
		}
		current.WriteRune(ch)
	}
	if current.Len() > 0 {
		columns = append(columns, current.String())
	}

	return columns
}

// parseColumnExpression resolves the output name of one SELECT list entry:
// an AS alias wins, then an implicit trailing alias, then a name derived
// from the expression itself.
func parseColumnExpression(expr string) ParsedColumn {
	expr = strings.TrimSpace(expr)

	if matches := asAliasPattern.FindStringSubmatch(strings.ToLower(expr)); matches != nil {
		return ParsedColumn{Name: matches[1], Expr: expr}
	}

	if alias, ok := implicitAlias(expr); ok {
		return ParsedColumn{Name: alias, Expr: expr}
	}

	return ParsedColumn{Name: deriveColumnName(expr), Expr: expr}
}

// implicitAlias recognizes "AVG(latency_ms) avg_latency" style aliases:
// a trailing bare word that is not part of a function call and not a SQL
// keyword.
func implicitAlias(expr string) (string, bool) {
	if strings.Count(expr, "(") != strings.Count(expr, ")") {
		return "", false
	}

	parts := strings.Fields(expr)
	if len(parts) < 2 {
		return "", false
	}

	last := parts[len(parts)-1]
	if strings.ContainsAny(last, "()") {
		return "", false
	}

	switch strings.ToLower(last) {
	case "from", "where", "group", "order", "limit", "and", "or", "as", "end":
		return "", false
	}
	return last, true
}

// deriveColumnName falls back to a name for unaliased expressions: the
// function name for calls, the bare column for qualified references.
func deriveColumnName(expr string) string {
	expr = strings.TrimSpace(expr)

	// dim_network.network_name -> network_name
	if dotIdx := strings.LastIndex(expr, "."); dotIdx != -1 {
		expr = expr[dotIdx+1:]
	}

	if matches := funcCallPattern.FindStringSubmatch(expr); matches != nil {
		return strings.ToLower(matches[1])
	}

	if strings.HasPrefix(strings.ToLower(expr), "case") {
		return "case_result"
	}

	name := strings.TrimSpace(strings.Trim(expr, "`\"[]"))
	return strings.ToLower(nonWordPattern.ReplaceAllString(name, ""))
}
