package models

import (
	"time"

	"github.com/google/uuid"
)

// Masking types supported by the governance layer.
const (
	MaskFull    = "full"    // replace the whole value
	MaskPartial = "partial" // keep the last KeepSuffix characters
	MaskHash    = "hash"    // stable SHA-256 digest, joins still work
	MaskNull    = "null"    // value removed entirely
)

// MaskingPolicy binds a masking type to one column of a governed table.
// Roles listed in ExemptRoles see the column unmasked; admin is always
// exempt regardless.
type MaskingPolicy struct {
	ID          uuid.UUID `json:"id"`
	SchemaName  string    `json:"schema_name"`
	TableName   string    `json:"table_name"`
	ColumnName  string    `json:"column_name"`
	MaskingType string    `json:"masking_type"`
	KeepSuffix  int       `json:"keep_suffix,omitempty"` // partial only; characters preserved at the end
	ExemptRoles []string  `json:"exempt_roles,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MaskingSuggestion is one column the detector flagged as likely sensitive,
// with the policy it would create.
type MaskingSuggestion struct {
	SchemaName    string  `json:"schema_name"`
	TableName     string  `json:"table_name"`
	ColumnName    string  `json:"column_name"`
	Category      string  `json:"category"` // mac_address, contact, location, ...
	Confidence    float64 `json:"confidence"`
	SuggestedType string  `json:"suggested_type"`
	Reason        string  `json:"reason"`
}

// ValidMaskingType reports whether t is a recognized masking type.
func ValidMaskingType(t string) bool {
	switch t {
	case MaskFull, MaskPartial, MaskHash, MaskNull:
		return true
	}
	return false
}
