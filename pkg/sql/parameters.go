package sql

import (
	"fmt"
	"regexp"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// parameterRegex matches {{parameter_name}} placeholders in SQL templates.
// Parameter names must start with a letter or underscore, followed by any
// number of alphanumeric characters or underscores.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ExtractParameters finds all {{param}} placeholders in SQL and returns
// a deduplicated list of parameter names in order of first appearance.
//
// Example:
//
//	sql := "SELECT * FROM wifi.qos_facts WHERE network_id = {{network_id}} AND ts >= {{since}}"
//	params := ExtractParameters(sql)
//	// params == []string{"network_id", "since"}
//
// If the same parameter appears multiple times, it's only included once.
func ExtractParameters(sqlQuery string) []string {
	matches := parameterRegex.FindAllStringSubmatch(sqlQuery, -1)
	seen := make(map[string]bool)
	var params []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}

	return params
}

// ValidateParameterDefinitions checks that SQL parameters and definitions match exactly.
//
// Returns an error if:
//   - A {{param}} placeholder is used in SQL but not defined in params
//   - A parameter is defined but not used in SQL
func ValidateParameterDefinitions(sqlQuery string, params []models.QueryParameter) error {
	extracted := ExtractParameters(sqlQuery)

	extractedSet := make(map[string]bool)
	for _, name := range extracted {
		extractedSet[name] = true
	}

	definedSet := make(map[string]bool)
	for _, p := range params {
		definedSet[p.Name] = true
	}

	for _, name := range extracted {
		if !definedSet[name] {
			return fmt.Errorf("parameter {{%s}} used in SQL but not defined", name)
		}
	}

	for _, p := range params {
		if !extractedSet[p.Name] {
			return fmt.Errorf("parameter '%s' is defined but not used in SQL", p.Name)
		}
	}

	return nil
}

// FindParametersInStringLiterals checks for {{param}} placeholders that appear
// inside SQL string literals (single quotes). Parameters inside string literals
// won't work as expected because PostgreSQL will treat $1 as literal text, not
// as a parameter placeholder.
//
// Returns a list of parameter names that are incorrectly placed inside strings.
func FindParametersInStringLiterals(sqlQuery string) []string {
	var problems []string
	seen := make(map[string]bool)

	inString := false
	stringStart := 0
	i := 0

	for i < len(sqlQuery) {
		ch := sqlQuery[i]

		if ch == '\'' {
			if inString {
				// Check for escaped quote ('')
				if i+1 < len(sqlQuery) && sqlQuery[i+1] == '\'' {
					i += 2
					continue
				}
				// End of string literal - check for parameters inside
				stringContent := sqlQuery[stringStart+1 : i]
				matches := parameterRegex.FindAllStringSubmatch(stringContent, -1)
				for _, match := range matches {
					name := match[1]
					if !seen[name] {
						seen[name] = true
						problems = append(problems, name)
					}
				}
				inString = false
			} else {
				inString = true
				stringStart = i
			}
		}
		i++
	}

	return problems
}

// SubstituteParameters replaces {{param}} placeholders with PostgreSQL
// positional parameters ($1, $2, etc.) and returns the prepared SQL along
// with ordered parameter values for binding.
//
// The function:
//  1. Replaces each unique {{param}} with $N (where N is the position)
//  2. Reuses the same $N for parameters that appear multiple times
//  3. Applies default values for parameters not supplied
//  4. Returns ordered values matching the positional indices
//
// Example:
//
//	sql := "SELECT * FROM wifi.qos_facts WHERE network_id = {{network_id}} AND quality_score < {{max_score}}"
//	paramDefs := []models.QueryParameter{
//	    {Name: "network_id", Type: "uuid", Required: true},
//	    {Name: "max_score", Type: "decimal", Required: false, Default: 100.0},
//	}
//	suppliedValues := map[string]any{
//	    "network_id": "550e8400-e29b-41d4-a716-446655440000",
//	}
//
//	preparedSQL, orderedValues, err := SubstituteParameters(sql, paramDefs, suppliedValues)
//	// preparedSQL == "SELECT * FROM wifi.qos_facts WHERE network_id = $1 AND quality_score < $2"
//	// orderedValues == []any{"550e8400-e29b-41d4-a716-446655440000", 100.0}
func SubstituteParameters(
	sqlQuery string,
	paramDefs []models.QueryParameter,
	suppliedValues map[string]any,
) (string, []any, error) {
	defLookup := make(map[string]models.QueryParameter)
	for _, p := range paramDefs {
		defLookup[p.Name] = p
	}

	var orderedValues []any
	paramIndex := 1
	paramPositions := make(map[string]int)

	result := parameterRegex.ReplaceAllStringFunc(sqlQuery, func(match string) string {
		name := parameterRegex.FindStringSubmatch(match)[1]

		// Check if already assigned position (same param used multiple times)
		if pos, exists := paramPositions[name]; exists {
			return fmt.Sprintf("$%d", pos)
		}

		def, defExists := defLookup[name]
		if !defExists {
			// This should have been caught by ValidateParameterDefinitions
			// Return the original match to avoid breaking the SQL
			return match
		}

		value, supplied := suppliedValues[name]
		if !supplied {
			value = def.Default
		}

		paramPositions[name] = paramIndex
		orderedValues = append(orderedValues, value)
		pos := paramIndex
		paramIndex++

		return fmt.Sprintf("$%d", pos)
	})

	return result, orderedValues, nil
}

// CheckRequiredParameters verifies every required parameter without a
// default has a supplied value.
func CheckRequiredParameters(paramDefs []models.QueryParameter, suppliedValues map[string]any) error {
	for _, def := range paramDefs {
		if !def.Required || def.Default != nil {
			continue
		}
		if _, ok := suppliedValues[def.Name]; !ok {
			return fmt.Errorf("parameter '%s' is required but no value was supplied", def.Name)
		}
	}
	return nil
}
