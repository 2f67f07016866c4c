// Package sql provides SQL validation and parameter templating utilities.
package sql

/*
Parameter Template Syntax

Verified-query SQL templates use {{parameter_name}} placeholders. The
syntax is distinct from PostgreSQL's positional parameters ($1, $2) and
shell variables (${var}), reads well in review, and is trivial to parse:
\{\{([a-zA-Z_]\w*)\}\}.

Example template:

	SELECT n.name, avg(q.quality_score) AS avg_quality
	FROM wifi.qos_facts q
	JOIN wifi.networks n ON q.network_id = n.id
	WHERE q.ts >= {{since}}
	  AND n.industry = {{industry}}
	GROUP BY n.name
	ORDER BY avg_quality ASC
	LIMIT {{limit}}

Execution flow:

 1. ExtractParameters finds the placeholders.
 2. ValidateParameterDefinitions checks usage matches the declared
    parameter list exactly, both directions.
 3. CheckRequiredParameters confirms required values were supplied.
 4. CheckAllParameters screens string values with libinjection; hits are
    rejected and audited.
 5. SubstituteParameters rewrites {{param}} to $N and produces the
    ordered value slice; a parameter used twice binds the same $N.
 6. The warehouse executor runs the prepared statement with the bound
    values, wrapped in a row limit.

Values are always bound, never interpolated: a parameter cannot inject
table names, column names, or SQL fragments. Use array types
(string[]/integer[]) with = ANY({{param}}) for IN-style filters.

Supported parameter types: string, integer, decimal, boolean, date,
timestamp, uuid, string[], integer[]. Dates and timestamps travel as ISO
8601 strings and are cast by the database.
*/
