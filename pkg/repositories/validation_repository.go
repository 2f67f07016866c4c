package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// ValidationRepository persists data validation runs and their per-check
// results.
type ValidationRepository interface {
	// SaveRun stores a run with all of its results atomically.
	SaveRun(ctx context.Context, run *models.ValidationRun) error
	GetRun(ctx context.Context, runID uuid.UUID) (*models.ValidationRun, error)
	// ListRuns returns recent runs, newest first, without their results.
	ListRuns(ctx context.Context, limit int) ([]*models.ValidationRun, error)
	// LatestRun returns the most recent run with results.
	LatestRun(ctx context.Context) (*models.ValidationRun, error)
}

type validationRepository struct{}

// NewValidationRepository creates a new ValidationRepository.
func NewValidationRepository() ValidationRepository {
	return &validationRepository{}
}

var _ ValidationRepository = (*validationRepository)(nil)

func (r *validationRepository) SaveRun(ctx context.Context, run *models.ValidationRun) error {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return fmt.Errorf("no role scope in context")
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin validation save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	runSQL := `
		INSERT INTO engine_validation_runs (
			id, status, total_checks, passed, failed, started_at, finished_at, triggered_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, runSQL,
		run.ID, run.Status, run.TotalChecks, run.Passed, run.Failed,
		run.StartedAt, run.FinishedAt, run.TriggeredBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save validation run: %w", err)
	}

	resultSQL := `
		INSERT INTO engine_validation_results (
			id, run_id, check_name, passed, observed, expected, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i := range run.Results {
		res := &run.Results[i]
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		res.RunID = run.ID

		if _, err := tx.Exec(ctx, resultSQL,
			res.ID, res.RunID, res.Check, res.Passed, res.Observed, res.Expected, res.Detail,
		); err != nil {
			return fmt.Errorf("failed to save validation result %q: %w", res.Check, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit validation save: %w", err)
	}

	return nil
}

func (r *validationRepository) GetRun(ctx context.Context, runID uuid.UUID) (*models.ValidationRun, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, status, total_checks, passed, failed, started_at, finished_at, triggered_by
		FROM engine_validation_runs
		WHERE id = $1`

	run, err := scanValidationRun(scope.Conn.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get validation run: %w", err)
	}

	results, err := r.loadResults(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Results = results

	return run, nil
}

func (r *validationRepository) ListRuns(ctx context.Context, limit int) ([]*models.ValidationRun, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, status, total_checks, passed, failed, started_at, finished_at, triggered_by
		FROM engine_validation_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := scope.Conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list validation runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ValidationRun
	for rows.Next() {
		run, err := scanValidationRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation runs: %w", err)
	}

	return runs, nil
}

func (r *validationRepository) LatestRun(ctx context.Context) (*models.ValidationRun, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, status, total_checks, passed, failed, started_at, finished_at, triggered_by
		FROM engine_validation_runs
		ORDER BY started_at DESC
		LIMIT 1`

	run, err := scanValidationRun(scope.Conn.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest validation run: %w", err)
	}

	results, err := r.loadResults(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Results = results

	return run, nil
}

func (r *validationRepository) loadResults(ctx context.Context, runID uuid.UUID) ([]models.ValidationResult, error) {
	scope, ok := database.GetRoleScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no role scope in context")
	}

	query := `
		SELECT id, run_id, check_name, passed, observed, expected, detail
		FROM engine_validation_results
		WHERE run_id = $1
		ORDER BY check_name`

	rows, err := scope.Conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load validation results: %w", err)
	}
	defer rows.Close()

	var results []models.ValidationResult
	for rows.Next() {
		var res models.ValidationResult
		if err := rows.Scan(&res.ID, &res.RunID, &res.Check, &res.Passed, &res.Observed, &res.Expected, &res.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan validation result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validation results: %w", err)
	}

	return results, nil
}

func scanValidationRun(row pgx.Row) (*models.ValidationRun, error) {
	var run models.ValidationRun
	err := row.Scan(
		&run.ID, &run.Status, &run.TotalChecks, &run.Passed, &run.Failed,
		&run.StartedAt, &run.FinishedAt, &run.TriggeredBy,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
