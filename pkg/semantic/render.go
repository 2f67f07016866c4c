package semantic

import (
	"fmt"
	"strings"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// Rendering tiers, smallest to largest. Overview fits in a few hundred
// tokens; column tier carries full detail and should be requested per
// table.
const (
	TierOverview = "overview"
	TierTable    = "table"
	TierColumn   = "column"
)

// Render produces the markdown description of the model at the requested
// tier. The tables filter narrows table and column tiers; overview
// ignores it.
func Render(model *models.SemanticModel, tier string, tables []string) (string, error) {
	switch tier {
	case TierOverview, "":
		return RenderOverview(model), nil
	case TierTable:
		return RenderTables(model, tables), nil
	case TierColumn:
		if len(tables) == 0 {
			return "", fmt.Errorf("column tier requires a table filter")
		}
		return RenderColumns(model, tables), nil
	default:
		return "", fmt.Errorf("unknown tier %q (expected %s, %s, or %s)", tier, TierOverview, TierTable, TierColumn)
	}
}

// RenderOverview summarizes the whole model: what tables exist, how they
// join, and what questions the data answers.
func RenderOverview(model *models.SemanticModel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", model.Name)
	if model.Description != "" {
		b.WriteString(model.Description + "\n\n")
	}

	b.WriteString("## Tables\n\n")
	for i := range model.Tables {
		t := &model.Tables[i]
		fmt.Fprintf(&b, "- `%s` — %s", t.QualifiedName(), t.BusinessName)
		if len(t.Synonyms) > 0 {
			fmt.Fprintf(&b, " (also: %s)", strings.Join(t.Synonyms, ", "))
		}
		if t.Description != "" {
			b.WriteString(": " + t.Description)
		}
		fmt.Fprintf(&b, " [%d dimensions, %d measures]\n", len(t.Dimensions)+len(t.TimeDimensions), len(t.Measures))
	}
	b.WriteString("\n")

	if len(model.Relationships) > 0 {
		b.WriteString("## Joins\n\n")
		for i := range model.Relationships {
			r := &model.Relationships[i]
			fmt.Fprintf(&b, "- %s.%s → %s.%s (%s)\n", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn, r.Cardinality)
		}
		b.WriteString("\n")
	}

	if len(model.VerifiedQueries) > 0 {
		b.WriteString("## Verified Queries\n\n")
		for i := range model.VerifiedQueries {
			q := &model.VerifiedQueries[i]
			fmt.Fprintf(&b, "- `%s`: %s\n", q.Name, q.Question)
		}
		b.WriteString("\n")
	}

	if len(model.SampleQuestions) > 0 {
		b.WriteString("## Sample Questions\n\n")
		for _, q := range model.SampleQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderTables describes the named tables (all tables when the filter is
// empty) down to column names, without enum values or descriptions.
func RenderTables(model *models.SemanticModel, tables []string) string {
	var b strings.Builder

	for i := range model.Tables {
		t := &model.Tables[i]
		if !tableSelected(t, tables) {
			continue
		}

		fmt.Fprintf(&b, "## %s (`%s`)\n\n", t.BusinessName, t.QualifiedName())
		if t.Description != "" {
			b.WriteString(t.Description + "\n\n")
		}
		if len(t.Dimensions) > 0 {
			names := make([]string, len(t.Dimensions))
			for j, d := range t.Dimensions {
				names[j] = d.Column
			}
			fmt.Fprintf(&b, "Dimensions: %s\n", strings.Join(names, ", "))
		}
		if len(t.TimeDimensions) > 0 {
			names := make([]string, len(t.TimeDimensions))
			for j, td := range t.TimeDimensions {
				names[j] = td.Column
			}
			fmt.Fprintf(&b, "Time dimensions: %s\n", strings.Join(names, ", "))
		}
		if len(t.Measures) > 0 {
			names := make([]string, len(t.Measures))
			for j, m := range t.Measures {
				names[j] = fmt.Sprintf("%s (%s)", m.Column, m.Aggregation)
			}
			fmt.Fprintf(&b, "Measures: %s\n", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}

	appendRelationships(&b, model, tables)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderColumns is the full-detail tier: every column with its business
// name, description, unit, and known enum values.
func RenderColumns(model *models.SemanticModel, tables []string) string {
	var b strings.Builder

	for i := range model.Tables {
		t := &model.Tables[i]
		if !tableSelected(t, tables) {
			continue
		}

		fmt.Fprintf(&b, "## %s (`%s`)\n\n", t.BusinessName, t.QualifiedName())
		if t.Description != "" {
			b.WriteString(t.Description + "\n\n")
		}

		for _, d := range t.Dimensions {
			fmt.Fprintf(&b, "- `%s` (dimension) — %s", d.Column, d.BusinessName)
			if d.Description != "" {
				b.WriteString(": " + d.Description)
			}
			if len(d.Synonyms) > 0 {
				fmt.Fprintf(&b, " (also: %s)", strings.Join(d.Synonyms, ", "))
			}
			if len(d.Enum) > 0 {
				fmt.Fprintf(&b, " [values: %s]", strings.Join(d.Enum, ", "))
			}
			b.WriteString("\n")
		}
		for _, td := range t.TimeDimensions {
			fmt.Fprintf(&b, "- `%s` (time) ", td.Column)
			if td.Description != "" {
				b.WriteString("— " + td.Description)
			}
			b.WriteString("\n")
		}
		for _, m := range t.Measures {
			fmt.Fprintf(&b, "- `%s` (measure, %s) — %s", m.Column, m.Aggregation, m.BusinessName)
			if m.Unit != "" {
				fmt.Fprintf(&b, " in %s", m.Unit)
			}
			if m.Description != "" {
				b.WriteString(": " + m.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	appendRelationships(&b, model, tables)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// appendRelationships writes joins touching any selected table.
func appendRelationships(b *strings.Builder, model *models.SemanticModel, tables []string) {
	var lines []string
	for i := range model.Relationships {
		r := &model.Relationships[i]
		if len(tables) > 0 && !nameSelected(r.FromTable, tables) && !nameSelected(r.ToTable, tables) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s.%s → %s.%s (%s)", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn, r.Cardinality))
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("## Joins\n\n")
	for _, line := range lines {
		b.WriteString(line + "\n")
	}
}

// tableSelected reports whether the filter includes the table. An empty
// filter selects everything; names match qualified or bare.
func tableSelected(t *models.LogicalTable, tables []string) bool {
	if len(tables) == 0 {
		return true
	}
	return nameSelected(t.QualifiedName(), tables) || nameSelected(t.Table, tables)
}

func nameSelected(name string, tables []string) bool {
	for _, candidate := range tables {
		if strings.EqualFold(candidate, name) || strings.EqualFold(baseTable(candidate), baseTable(name)) {
			return true
		}
	}
	return false
}
