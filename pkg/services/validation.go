package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/audit"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/warehouse"
)

// ValidationService runs the data quality suite against the star schema and
// persists the outcome. Any failing check marks the whole run failed.
type ValidationService interface {
	Run(ctx context.Context) (*models.ValidationRun, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*models.ValidationRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.ValidationRun, error)
	LatestRun(ctx context.Context) (*models.ValidationRun, error)
}

type validationService struct {
	networks  repositories.NetworkRepository
	aps       repositories.AccessPointRepository
	telemetry repositories.TelemetryRepository
	runs      repositories.ValidationRepository
	adapter   warehouse.Adapter
	auditor   *audit.SecurityAuditor
	clock     clockwork.Clock
	cfg       config.ValidationConfig
	logger    *zap.Logger
}

// NewValidationService creates a validation service.
func NewValidationService(
	networks repositories.NetworkRepository,
	aps repositories.AccessPointRepository,
	telemetry repositories.TelemetryRepository,
	runs repositories.ValidationRepository,
	adapter warehouse.Adapter,
	auditor *audit.SecurityAuditor,
	clock clockwork.Clock,
	cfg config.ValidationConfig,
	logger *zap.Logger,
) ValidationService {
	return &validationService{
		networks:  networks,
		aps:       aps,
		telemetry: telemetry,
		runs:      runs,
		adapter:   adapter,
		auditor:   auditor,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// validationCheck is one named assertion over the live schema.
type validationCheck struct {
	name string
	run  func(ctx context.Context) (passed bool, observed, expected, detail string)
}

// Run executes every check, persists the run, and returns it.
func (s *validationService) Run(ctx context.Context) (*models.ValidationRun, error) {
	run := &models.ValidationRun{
		ID:          uuid.New(),
		StartedAt:   s.clock.Now().UTC(),
		TriggeredBy: triggeredBy(ctx),
	}

	var failedChecks []string
	for _, check := range s.checks() {
		passed, observed, expected, detail := check.run(ctx)
		run.Results = append(run.Results, models.ValidationResult{
			ID:       uuid.New(),
			RunID:    run.ID,
			Check:    check.name,
			Passed:   passed,
			Observed: observed,
			Expected: expected,
			Detail:   detail,
		})
		if passed {
			run.Passed++
		} else {
			run.Failed++
			failedChecks = append(failedChecks, check.name)
		}
	}

	run.TotalChecks = len(run.Results)
	run.FinishedAt = s.clock.Now().UTC()
	run.Status = models.ValidationStatusPassed
	if run.Failed > 0 {
		run.Status = models.ValidationStatusFailed
	}

	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist validation run: %w", err)
	}

	if run.Failed > 0 {
		s.auditor.LogValidationFailure(ctx, run.ID, failedChecks)
	}

	s.logger.Info("Validation run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", run.Status),
		zap.Int("passed", run.Passed),
		zap.Int("failed", run.Failed))

	return run, nil
}

func (s *validationService) GetRun(ctx context.Context, runID uuid.UUID) (*models.ValidationRun, error) {
	return s.runs.GetRun(ctx, runID)
}

func (s *validationService) ListRuns(ctx context.Context, limit int) ([]*models.ValidationRun, error) {
	return s.runs.ListRuns(ctx, limit)
}

func (s *validationService) LatestRun(ctx context.Context) (*models.ValidationRun, error) {
	return s.runs.LatestRun(ctx)
}

// checks assembles the suite. Row counts come from the repositories;
// integrity and bounds assertions run as counts of violating rows through
// the warehouse adapter so they hold on any backing warehouse.
func (s *validationService) checks() []validationCheck {
	minRows := s.cfg.MinRowsPerTable

	suite := []validationCheck{
		s.rowCountCheck("networks_row_count", minRows, s.networks.Count),
		s.rowCountCheck("access_points_row_count", minRows, s.aps.Count),
		s.rowCountCheck("status_facts_row_count", minRows, s.telemetry.CountStatus),
		s.rowCountCheck("qos_facts_row_count", minRows, s.telemetry.CountQoS),

		s.zeroViolationCheck("orphaned_access_points",
			`SELECT COUNT(*) FROM wifi.access_points a
			 LEFT JOIN wifi.networks n ON n.id = a.network_id
			 WHERE n.id IS NULL`,
			"access points referencing a missing network"),
		s.zeroViolationCheck("empty_networks",
			`SELECT COUNT(*) FROM wifi.networks n
			 LEFT JOIN wifi.access_points a ON a.network_id = n.id
			 WHERE a.id IS NULL`,
			"networks with no access points"),
		s.zeroViolationCheck("orphaned_status_facts",
			`SELECT COUNT(*) FROM wifi.ap_status_facts f
			 LEFT JOIN wifi.access_points a ON a.id = f.ap_id
			 WHERE a.id IS NULL`,
			"status facts referencing a missing access point"),
		s.zeroViolationCheck("orphaned_qos_facts",
			`SELECT COUNT(*) FROM wifi.qos_facts f
			 LEFT JOIN wifi.access_points a ON a.id = f.ap_id
			 WHERE a.id IS NULL`,
			"qos facts referencing a missing access point"),
		s.zeroViolationCheck("status_network_denormalization",
			`SELECT COUNT(*) FROM wifi.ap_status_facts f
			 JOIN wifi.access_points a ON a.id = f.ap_id
			 WHERE f.network_id <> a.network_id`,
			"status facts whose denormalized network disagrees with the access point"),
		s.zeroViolationCheck("qos_network_denormalization",
			`SELECT COUNT(*) FROM wifi.qos_facts f
			 JOIN wifi.access_points a ON a.id = f.ap_id
			 WHERE f.network_id <> a.network_id`,
			"qos facts whose denormalized network disagrees with the access point"),

		s.zeroViolationCheck("rssi_bounds",
			`SELECT COUNT(*) FROM wifi.qos_facts
			 WHERE rssi_dbm < -90 OR rssi_dbm > -30`,
			"qos facts with rssi outside [-90, -30] dBm"),
		s.zeroViolationCheck("packet_loss_bounds",
			`SELECT COUNT(*) FROM wifi.qos_facts
			 WHERE packet_loss_pct < 0 OR packet_loss_pct > 100`,
			"qos facts with packet loss outside [0, 100]"),
		s.zeroViolationCheck("quality_score_bounds",
			`SELECT COUNT(*) FROM wifi.qos_facts
			 WHERE quality_score < 0 OR quality_score > 100`,
			"qos facts with quality score outside [0, 100]"),

		{name: "qos_freshness", run: s.freshnessCheck},

		s.zeroViolationCheck("raw_flatten_parity",
			`SELECT COUNT(*) FROM wifi.raw_ap_events r
			 LEFT JOIN wifi.ap_status_facts f ON f.ap_id = r.ap_id AND f.ts = r.event_time
			 WHERE f.ap_id IS NULL`,
			"raw events with no flattened status fact"),
	}

	return suite
}

// rowCountCheck asserts a table holds at least min rows.
func (s *validationService) rowCountCheck(name string, min int64, count func(context.Context) (int64, error)) validationCheck {
	return validationCheck{
		name: name,
		run: func(ctx context.Context) (bool, string, string, string) {
			n, err := count(ctx)
			if err != nil {
				return false, "check failed to execute", fmt.Sprintf(">= %d", min), err.Error()
			}
			return n >= min, strconv.FormatInt(n, 10), fmt.Sprintf(">= %d", min), ""
		},
	}
}

// zeroViolationCheck asserts a violation-counting query returns zero.
func (s *validationService) zeroViolationCheck(name, sqlQuery, description string) validationCheck {
	return validationCheck{
		name: name,
		run: func(ctx context.Context) (bool, string, string, string) {
			n, err := s.countQuery(ctx, sqlQuery)
			if err != nil {
				return false, "check failed to execute", "0", err.Error()
			}
			detail := ""
			if n != 0 {
				detail = fmt.Sprintf("%d %s", n, description)
			}
			return n == 0, strconv.FormatInt(n, 10), "0", detail
		},
	}
}

// freshnessCheck asserts the newest qos fact is within tolerance of now.
func (s *validationService) freshnessCheck(ctx context.Context) (bool, string, string, string) {
	tolerance := time.Duration(s.cfg.FreshnessToleranceMinutes) * time.Minute
	expected := fmt.Sprintf("<= %s old", tolerance)

	latest, err := s.telemetry.LatestQoSTimestamp(ctx)
	if err != nil {
		return false, "check failed to execute", expected, err.Error()
	}
	if latest == nil {
		return false, "no qos facts", expected, "the qos fact table is empty"
	}

	age := s.clock.Now().UTC().Sub(latest.UTC())
	return age <= tolerance, fmt.Sprintf("latest fact is %s old", age.Truncate(time.Second)), expected, ""
}

// countQuery runs a single-value COUNT query through the adapter.
func (s *validationService) countQuery(ctx context.Context, sqlQuery string) (int64, error) {
	result, err := s.adapter.Query(ctx, sqlQuery, 1)
	if err != nil {
		return 0, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	return toInt64(result.Rows[0][0])
}

// toInt64 normalizes the count value across drivers.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

// triggeredBy labels the run with the caller, or "system" for unattended
// runs (CLI, startup checks).
func triggeredBy(ctx context.Context) string {
	if subject := auth.GetSubjectFromContext(ctx); subject != "" {
		return subject
	}
	return "system"
}

var _ ValidationService = (*validationService)(nil)
