package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Semantic model document (YAML)
// ============================================================================

// SemanticModel is the declarative business model the analyst agent consumes.
// It maps physical warehouse tables to business entities, names the measures
// and dimensions analysts may ask about, and carries curated verified queries.
type SemanticModel struct {
	Name            string                    `yaml:"name" json:"name"`
	Description     string                    `yaml:"description" json:"description"`
	Tables          []LogicalTable            `yaml:"tables" json:"tables"`
	Relationships   []Relationship            `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	VerifiedQueries []VerifiedQueryDefinition `yaml:"verified_queries,omitempty" json:"verified_queries,omitempty"`
	SampleQuestions []string                  `yaml:"sample_questions,omitempty" json:"sample_questions,omitempty"`
}

// LogicalTable maps one physical table to a business entity.
type LogicalTable struct {
	Schema         string          `yaml:"schema" json:"schema"`
	Table          string          `yaml:"table" json:"table"`
	BusinessName   string          `yaml:"business_name,omitempty" json:"business_name,omitempty"`
	Synonyms       []string        `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Description    string          `yaml:"description,omitempty" json:"description,omitempty"`
	Dimensions     []Dimension     `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	TimeDimensions []TimeDimension `yaml:"time_dimensions,omitempty" json:"time_dimensions,omitempty"`
	Measures       []Measure       `yaml:"measures,omitempty" json:"measures,omitempty"`
}

// QualifiedName returns the schema-qualified physical table name.
func (t *LogicalTable) QualifiedName() string {
	return t.Schema + "." + t.Table
}

// Dimension is a categorical attribute analysts can group or filter by.
type Dimension struct {
	Column       string   `yaml:"column" json:"column"`
	BusinessName string   `yaml:"business_name,omitempty" json:"business_name,omitempty"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Synonyms     []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Enum         []string `yaml:"enum,omitempty" json:"enum,omitempty"` // known values, rendered into prompts
}

// TimeDimension is a timestamp column usable for windows and trends.
type TimeDimension struct {
	Column      string `yaml:"column" json:"column"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Measure is a numeric column with a default aggregation.
type Measure struct {
	Column       string `yaml:"column" json:"column"`
	BusinessName string `yaml:"business_name,omitempty" json:"business_name,omitempty"`
	Aggregation  string `yaml:"aggregation" json:"aggregation"` // one of the Agg* constants
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	Unit         string `yaml:"unit,omitempty" json:"unit,omitempty"` // dBm, Mbps, ms, %
}

// Aggregation types a measure may declare.
const (
	AggSum           = "sum"
	AggAvg           = "avg"
	AggMin           = "min"
	AggMax           = "max"
	AggCount         = "count"
	AggCountDistinct = "count_distinct"
)

// ValidAggregation reports whether a is a recognized aggregation type.
func ValidAggregation(a string) bool {
	switch a {
	case AggSum, AggAvg, AggMin, AggMax, AggCount, AggCountDistinct:
		return true
	}
	return false
}

// Relationship declares a join path between two logical tables.
type Relationship struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	FromTable   string `yaml:"from_table" json:"from_table"` // schema.table
	FromColumn  string `yaml:"from_column" json:"from_column"`
	ToTable     string `yaml:"to_table" json:"to_table"`
	ToColumn    string `yaml:"to_column" json:"to_column"`
	Cardinality string `yaml:"cardinality,omitempty" json:"cardinality,omitempty"` // many_to_one, one_to_one
}

// VerifiedQueryDefinition is a curated question/SQL pair declared in the
// semantic model document. Activating a model version upserts these into
// the verified-query store.
type VerifiedQueryDefinition struct {
	Name          string           `yaml:"name" json:"name"`
	Question      string           `yaml:"question" json:"question"`
	SQL           string           `yaml:"sql" json:"sql"`
	Parameters    []QueryParameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	OutputColumns []OutputColumn   `yaml:"output_columns,omitempty" json:"output_columns,omitempty"`
}

// ============================================================================
// Versioned storage
// ============================================================================

// SemanticModelVersion is one stored revision of the semantic model
// document. Exactly one version is active at a time; activation is how a
// new revision goes live for the agent.
type SemanticModelVersion struct {
	ID          uuid.UUID  `json:"id"`
	Version     int        `json:"version"`
	Document    string     `json:"document"` // YAML source, verbatim
	Checksum    string     `json:"checksum"` // SHA-256 of Document
	IsActive    bool       `json:"is_active"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}
