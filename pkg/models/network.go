package models

import (
	"time"

	"github.com/google/uuid"
)

// Network represents a customer deployment: one organization site whose
// access points report into the platform. Networks are created once during
// seeding and never mutated.
type Network struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Customer  string    `json:"customer"`
	Industry  string    `json:"industry"` // one of the Industry* constants
	City      string    `json:"city"`
	Country   string    `json:"country"`
	SLATarget float64   `json:"sla_target"` // minimum acceptable quality score, 0-100
	CreatedAt time.Time `json:"created_at"`
}

// Industry classes recognized by the telemetry generator. The industry a
// network belongs to sets the baseline RF environment for its access points
// (a hospital floor is noisier than a law office).
const (
	IndustryCorporate   = "corporate"
	IndustryHealthcare  = "healthcare"
	IndustryEducation   = "education"
	IndustryRetail      = "retail"
	IndustryHospitality = "hospitality"
	IndustryWarehouse   = "warehouse"
)

// Industries lists all recognized industry classes in a stable order.
func Industries() []string {
	return []string{
		IndustryCorporate,
		IndustryHealthcare,
		IndustryEducation,
		IndustryRetail,
		IndustryHospitality,
		IndustryWarehouse,
	}
}
