package models

import (
	"time"

	"github.com/google/uuid"
)

// Validation run statuses.
const (
	ValidationStatusPassed = "passed"
	ValidationStatusFailed = "failed"
)

// ValidationRun records one execution of the data validation suite.
type ValidationRun struct {
	ID          uuid.UUID          `json:"id"`
	Status      string             `json:"status"`
	TotalChecks int                `json:"total_checks"`
	Passed      int                `json:"passed"`
	Failed      int                `json:"failed"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	TriggeredBy string             `json:"triggered_by"`
	Results     []ValidationResult `json:"results,omitempty"`
}

// ValidationResult is the outcome of a single named check within a run.
type ValidationResult struct {
	ID       uuid.UUID `json:"id"`
	RunID    uuid.UUID `json:"run_id"`
	Check    string    `json:"check"`
	Passed   bool      `json:"passed"`
	Observed string    `json:"observed"` // human-readable observed value(s)
	Expected string    `json:"expected"`
	Detail   string    `json:"detail,omitempty"`
}
