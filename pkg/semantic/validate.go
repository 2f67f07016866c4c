package semantic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netsight-ai/netsight-engine/pkg/models"
	enginesql "github.com/netsight-ai/netsight-engine/pkg/sql"
)

// Relationship cardinalities.
const (
	CardinalityOneToOne   = "one_to_one"
	CardinalityOneToMany  = "one_to_many"
	CardinalityManyToOne  = "many_to_one"
	CardinalityManyToMany = "many_to_many"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one problem found while validating a semantic model. Errors
// block activation; warnings are surfaced but don't.
type Issue struct {
	Severity string `json:"severity"`
	Location string `json:"location"` // e.g. "tables[wifi.qos_facts].measures[rssi_dbm]"
	Message  string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Location, i.Message)
}

// HasErrors reports whether any issue is error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs the structural checks that need nothing but the document:
// naming, duplicate detection, aggregation and cardinality vocabulary,
// relationship endpoints, and verified-query SQL hygiene. Physical
// existence checks live in ValidateAgainstSchema.
func Validate(model *models.SemanticModel) []Issue {
	var issues []Issue
	add := func(severity, location, format string, args ...any) {
		issues = append(issues, Issue{Severity: severity, Location: location, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(model.Name) == "" {
		add(SeverityError, "model", "name is required")
	}
	if len(model.Tables) == 0 {
		add(SeverityError, "model", "at least one table is required")
	}

	declared := make(map[string]*models.LogicalTable, len(model.Tables))
	synonymOwners := make(map[string][]string)

	for i := range model.Tables {
		t := &model.Tables[i]
		loc := fmt.Sprintf("tables[%s]", t.QualifiedName())

		if t.Schema == "" || t.Table == "" {
			add(SeverityError, loc, "schema and table are required")
			continue
		}
		key := strings.ToLower(t.QualifiedName())
		if _, dup := declared[key]; dup {
			add(SeverityError, loc, "table declared more than once")
			continue
		}
		declared[key] = t

		seenColumns := make(map[string]string)
		checkColumn := func(column, kind string) {
			if column == "" {
				add(SeverityError, loc, "%s with empty column", kind)
				return
			}
			lower := strings.ToLower(column)
			if prev, dup := seenColumns[lower]; dup {
				add(SeverityError, fmt.Sprintf("%s.%s[%s]", loc, kind, column), "column already declared as %s", prev)
				return
			}
			seenColumns[lower] = kind
		}

		for _, d := range t.Dimensions {
			checkColumn(d.Column, "dimensions")
		}
		for _, td := range t.TimeDimensions {
			checkColumn(td.Column, "time_dimensions")
		}
		for _, m := range t.Measures {
			checkColumn(m.Column, "measures")
			if !models.ValidAggregation(m.Aggregation) {
				add(SeverityError, fmt.Sprintf("%s.measures[%s]", loc, m.Column),
					"unknown aggregation %q", m.Aggregation)
			}
		}

		for _, syn := range t.Synonyms {
			lower := strings.ToLower(syn)
			synonymOwners[lower] = append(synonymOwners[lower], t.QualifiedName())
		}
	}

	for syn, owners := range synonymOwners {
		if len(owners) > 1 {
			sort.Strings(owners)
			add(SeverityWarning, "synonyms",
				"%q is a synonym of multiple tables (%s); the agent may pick the wrong one",
				syn, strings.Join(owners, ", "))
		}
	}

	for i := range model.Relationships {
		r := &model.Relationships[i]
		loc := fmt.Sprintf("relationships[%s]", r.Name)

		from, fromOK := declared[strings.ToLower(r.FromTable)]
		if !fromOK {
			add(SeverityError, loc, "from_table %q is not declared in the model", r.FromTable)
		}
		to, toOK := declared[strings.ToLower(r.ToTable)]
		if !toOK {
			add(SeverityError, loc, "to_table %q is not declared in the model", r.ToTable)
		}
		if r.FromColumn == "" || r.ToColumn == "" {
			add(SeverityError, loc, "from_column and to_column are required")
		}
		switch r.Cardinality {
		case CardinalityOneToOne, CardinalityOneToMany, CardinalityManyToOne, CardinalityManyToMany:
		default:
			add(SeverityError, loc, "unknown cardinality %q", r.Cardinality)
		}
		if fromOK && toOK && strings.EqualFold(from.QualifiedName(), to.QualifiedName()) {
			add(SeverityWarning, loc, "relationship joins a table to itself")
		}
	}

	allowed := AllowedTables(model)
	queryNames := make(map[string]bool, len(model.VerifiedQueries))
	for i := range model.VerifiedQueries {
		q := &model.VerifiedQueries[i]
		loc := fmt.Sprintf("verified_queries[%s]", q.Name)

		if q.Name == "" {
			add(SeverityError, "verified_queries", "query with empty name")
			continue
		}
		if queryNames[q.Name] {
			add(SeverityError, loc, "query name declared more than once")
			continue
		}
		queryNames[q.Name] = true

		if strings.TrimSpace(q.Question) == "" {
			add(SeverityError, loc, "question is required")
		}
		if strings.TrimSpace(q.SQL) == "" {
			add(SeverityError, loc, "sql is required")
			continue
		}

		validation := enginesql.ValidateAndNormalize(q.SQL)
		if validation.Error != nil {
			add(SeverityError, loc, "invalid sql: %v", validation.Error)
			continue
		}
		if err := enginesql.EnsureReadOnly(validation.NormalizedSQL); err != nil {
			add(SeverityError, loc, "%v", err)
		}
		if err := enginesql.ValidateParameterDefinitions(validation.NormalizedSQL, q.Parameters); err != nil {
			add(SeverityError, loc, "%v", err)
		}
		if inLiterals := enginesql.FindParametersInStringLiterals(validation.NormalizedSQL); len(inLiterals) > 0 {
			add(SeverityError, loc, "parameters inside string literals: %s", strings.Join(inLiterals, ", "))
		}
		if err := enginesql.ValidateTableAccess(validation.NormalizedSQL, allowed); err != nil {
			add(SeverityWarning, loc, "references a table outside the model: %v", err)
		}
	}

	for i, q := range model.SampleQuestions {
		if strings.TrimSpace(q) == "" {
			add(SeverityWarning, fmt.Sprintf("sample_questions[%d]", i), "empty question")
		}
	}

	return issues
}

// PhysicalSchema describes what actually exists in the warehouse:
// lowercased "schema.table" keys mapping to lowercased column names.
// Built from warehouse introspection.
type PhysicalSchema map[string][]string

// ValidateAgainstSchema checks every table, column, and relationship
// endpoint the model declares against the physical schema. A missing
// table reports what tables exist; a missing column reports the table's
// actual columns, so a rename shows up as an actionable error.
func ValidateAgainstSchema(model *models.SemanticModel, physical PhysicalSchema) []Issue {
	var issues []Issue
	add := func(location, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Location: location, Message: fmt.Sprintf(format, args...)})
	}

	columnSets := make(map[string]map[string]bool, len(physical))
	for table, columns := range physical {
		set := make(map[string]bool, len(columns))
		for _, c := range columns {
			set[strings.ToLower(c)] = true
		}
		columnSets[strings.ToLower(table)] = set
	}

	available := make([]string, 0, len(physical))
	for table := range physical {
		available = append(available, table)
	}
	sort.Strings(available)

	checkColumn := func(loc, table, column string) {
		set, ok := columnSets[strings.ToLower(table)]
		if !ok {
			return // table error already reported
		}
		if !set[strings.ToLower(column)] {
			add(loc, "column %q does not exist in %s; columns are: %s",
				column, table, strings.Join(sortedKeys(set), ", "))
		}
	}

	for i := range model.Tables {
		t := &model.Tables[i]
		qualified := t.QualifiedName()
		loc := fmt.Sprintf("tables[%s]", qualified)

		if _, ok := columnSets[strings.ToLower(qualified)]; !ok {
			add(loc, "table does not exist; warehouse has: %s", strings.Join(available, ", "))
			continue
		}
		for _, d := range t.Dimensions {
			checkColumn(fmt.Sprintf("%s.dimensions[%s]", loc, d.Column), qualified, d.Column)
		}
		for _, td := range t.TimeDimensions {
			checkColumn(fmt.Sprintf("%s.time_dimensions[%s]", loc, td.Column), qualified, td.Column)
		}
		for _, m := range t.Measures {
			checkColumn(fmt.Sprintf("%s.measures[%s]", loc, m.Column), qualified, m.Column)
		}
	}

	for i := range model.Relationships {
		r := &model.Relationships[i]
		loc := fmt.Sprintf("relationships[%s]", r.Name)
		checkColumn(loc, r.FromTable, r.FromColumn)
		checkColumn(loc, r.ToTable, r.ToColumn)
	}

	return issues
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
