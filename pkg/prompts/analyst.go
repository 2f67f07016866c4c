// Package prompts builds the analyst agent's LLM prompts from the
// semantic model. The model document is the only schema description the
// prompts ever contain; nothing is read from the warehouse directly.
package prompts

import (
	"fmt"
	"strings"

	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/semantic"
)

// maxExemplars caps how many verified queries are rendered as few-shot
// examples. More than a handful stops helping and eats the window.
const maxExemplars = 5

// maxResultRows caps how many result rows are rendered into the answer
// synthesis prompt.
const maxResultRows = 20

// BuildAnalystSystemMessage returns the system message for SQL generation.
func BuildAnalystSystemMessage() string {
	return `You are a senior network analytics engineer. You translate business questions about WiFi access point fleets into a single read-only SQL query over the documented tables. You never guess at tables or columns that are not documented.`
}

// BuildSQLGenerationPrompt creates the prompt asking the LLM to answer a
// question with one SQL query. It renders the full column tier of the
// semantic model, the dialect rules, and up to maxExemplars verified
// queries as question/SQL examples.
func BuildSQLGenerationPrompt(model *models.SemanticModel, question string, dialect string) string {
	var prompt strings.Builder

	prompt.WriteString("# Available Data\n\n")
	prompt.WriteString(semantic.RenderColumns(model, nil))
	prompt.WriteString("\n")

	prompt.WriteString("## Rules\n\n")
	fmt.Fprintf(&prompt, "- Write ONE %s SELECT statement (WITH clauses are fine)\n", dialectName(dialect))
	prompt.WriteString("- Use only the tables and columns documented above, schema-qualified\n")
	prompt.WriteString("- No INSERT, UPDATE, DELETE, DDL, or multiple statements\n")
	prompt.WriteString("- Aggregate with the documented default aggregation unless the question asks otherwise\n")
	prompt.WriteString("- Order results so the most relevant rows come first\n")
	prompt.WriteString("- Do not add a LIMIT unless the question asks for a specific count; row caps are applied automatically\n\n")

	if len(model.VerifiedQueries) > 0 {
		prompt.WriteString("## Examples\n\n")
		count := len(model.VerifiedQueries)
		if count > maxExemplars {
			count = maxExemplars
		}
		for i := 0; i < count; i++ {
			q := &model.VerifiedQueries[i]
			fmt.Fprintf(&prompt, "Question: %s\n```sql\n%s\n```\n\n", q.Question, exampleSQL(q))
		}
	}

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question + "\n\n")
	prompt.WriteString("Respond with the SQL in a ```sql code block and nothing else.\n")

	return prompt.String()
}

// BuildSQLRepairPrompt asks for one corrected query after the database
// rejected the previous attempt.
func BuildSQLRepairPrompt(model *models.SemanticModel, question, failedSQL, dbError string) string {
	var prompt strings.Builder

	prompt.WriteString("The SQL you wrote for this question failed to execute.\n\n")
	fmt.Fprintf(&prompt, "Question: %s\n\n", question)
	fmt.Fprintf(&prompt, "Failed SQL:\n```sql\n%s\n```\n\n", failedSQL)
	fmt.Fprintf(&prompt, "Database error:\n%s\n\n", dbError)

	prompt.WriteString("# Available Data\n\n")
	prompt.WriteString(semantic.RenderTables(model, nil))
	prompt.WriteString("\n")

	prompt.WriteString("Fix the query. Respond with the corrected SQL in a ```sql code block and nothing else.\n")

	return prompt.String()
}

// BuildAnswerSynthesisPrompt asks the LLM to summarize query results as
// a short analyst answer. Only the first maxResultRows rows are shown;
// masked values arrive already masked and must be left as-is.
func BuildAnswerSynthesisPrompt(question, sqlQuery string, result *models.QueryResult) string {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "Question: %s\n\n", question)
	fmt.Fprintf(&prompt, "Query executed:\n```sql\n%s\n```\n\n", sqlQuery)
	prompt.WriteString("Results:\n")
	prompt.WriteString(FormatResultTable(result, maxResultRows))
	prompt.WriteString("\n")

	prompt.WriteString("Write a concise answer to the question based only on these results. ")
	prompt.WriteString("Mention concrete numbers. If the results are empty, say the data shows nothing for this question. ")
	prompt.WriteString("Do not mention SQL, tables, or masked values.\n")

	return prompt.String()
}

// BuildSynthesisSystemMessage returns the system message for answer synthesis.
func BuildSynthesisSystemMessage() string {
	return `You are a network operations analyst reporting query findings to a colleague. You are factual and brief.`
}

// FormatResultTable renders a result set as a pipe-separated text table,
// truncated to maxRows. The LLM reads this; it is not a display format.
func FormatResultTable(result *models.QueryResult, maxRows int) string {
	if result == nil || len(result.Columns) == 0 {
		return "(no results)\n"
	}

	var b strings.Builder

	names := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		names[i] = col.Name
	}
	b.WriteString(strings.Join(names, " | ") + "\n")

	rows := result.Rows
	truncated := false
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
		truncated = true
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}

	if truncated {
		fmt.Fprintf(&b, "... (%d of %d rows shown)\n", maxRows, result.RowCount)
	}
	if len(result.Rows) == 0 {
		b.WriteString("(0 rows)\n")
	}

	return b.String()
}

func exampleSQL(q *models.VerifiedQueryDefinition) string {
	return strings.TrimSpace(q.SQL)
}

func dialectName(dialect string) string {
	switch strings.ToLower(dialect) {
	case "mssql", "sqlserver":
		return "T-SQL (SQL Server)"
	default:
		return "PostgreSQL"
	}
}
