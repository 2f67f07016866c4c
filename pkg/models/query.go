package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryParameter defines a single parameter for a parameterized query.
type QueryParameter struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"` // string, integer, decimal, boolean, date, timestamp, uuid, string[], integer[]
	Description string `yaml:"description,omitempty" json:"description"`
	Required    bool   `yaml:"required,omitempty" json:"required"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"` // nil if no default
}

// OutputColumn describes a single column returned by a query.
type OutputColumn struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description"`
}

// VerifiedQuery is a curated natural-language question with SQL known to
// answer it correctly. The analyst agent prefers a verified match over
// generating fresh SQL.
type VerifiedQuery struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Question      string           `json:"question"`
	SQL           string           `json:"sql"`
	Parameters    []QueryParameter `json:"parameters,omitempty"`
	OutputColumns []OutputColumn   `json:"output_columns,omitempty"`
	ModelVersion  int              `json:"model_version"` // semantic model version that declared it
	IsEnabled     bool             `json:"is_enabled"`
	UsageCount    int              `json:"usage_count"`
	LastUsedAt    *time.Time       `json:"last_used_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// QueryResult is a governed query's result set: ordered columns plus rows
// in column order. Values are post-masking when the caller's role demands.
type QueryResult struct {
	Columns    []ResultColumn `json:"columns"`
	Rows       [][]any        `json:"rows"`
	RowCount   int            `json:"row_count"`
	Truncated  bool           `json:"truncated"` // row limit hit
	DurationMs int64          `json:"duration_ms"`
	MaskedCols []string       `json:"masked_columns,omitempty"`
}

// ResultColumn names one column of a result set with its warehouse type.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
