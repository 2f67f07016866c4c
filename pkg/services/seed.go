package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/auth"
	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/retry"
	"github.com/netsight-ai/netsight-engine/pkg/synthetic"
	"github.com/netsight-ai/netsight-engine/pkg/workqueue"
)

// rawWindow is how far back from the end of the generated timeline raw
// envelopes are landed. Facts for the full range load directly; the final
// day additionally flows through the raw landing table so the flatten views
// have real vendor JSON to work on.
const rawWindow = 24 * time.Hour

// RoleScoper mints role-scoped database contexts. Parallel load workers
// each need their own scoped connection; they cannot share the caller's.
type RoleScoper interface {
	WithRoleScope(ctx context.Context, role auth.Role) (context.Context, func(), error)
}

// SeedRequest overrides generator defaults for one seed run. Zero values
// fall back to the configured defaults.
type SeedRequest struct {
	Seed            int64 `json:"seed,omitempty"`
	Days            int   `json:"days,omitempty"`
	IntervalMinutes int   `json:"interval_minutes,omitempty"`
	Networks        int   `json:"networks,omitempty"`
	APsPerNetwork   int   `json:"aps_per_network,omitempty"`
}

// SeedSummary reports what one seed run created.
type SeedSummary struct {
	Seed         int64     `json:"seed"`
	Networks     int       `json:"networks"`
	AccessPoints int       `json:"access_points"`
	StatusRows   int       `json:"status_rows"`
	QoSRows      int       `json:"qos_rows"`
	RawEvents    int       `json:"raw_events"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	DurationMs   int64     `json:"duration_ms"`
}

// SeedService provisions the demo fleet: synthesizes the dimensions, bulk
// loads the fact history, and lands the final day's raw telemetry envelopes.
type SeedService interface {
	// Seed generates and loads a complete demo dataset. It refuses to run
	// against a database that already holds networks.
	Seed(ctx context.Context, req SeedRequest) (*SeedSummary, error)
}

type seedService struct {
	networks  repositories.NetworkRepository
	aps       repositories.AccessPointRepository
	telemetry repositories.TelemetryRepository
	raw       repositories.RawEventRepository
	scopes    RoleScoper
	clock     clockwork.Clock
	cfg       config.GeneratorConfig
	logger    *zap.Logger
}

// NewSeedService creates a seed service.
func NewSeedService(
	networks repositories.NetworkRepository,
	aps repositories.AccessPointRepository,
	telemetry repositories.TelemetryRepository,
	raw repositories.RawEventRepository,
	scopes RoleScoper,
	clock clockwork.Clock,
	cfg config.GeneratorConfig,
	logger *zap.Logger,
) SeedService {
	return &seedService{
		networks:  networks,
		aps:       aps,
		telemetry: telemetry,
		raw:       raw,
		scopes:    scopes,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// apLoad is what one per-AP load job reports back.
type apLoad struct {
	statusRows int
	qosRows    int
	rawEvents  int
}

// Seed generates and loads the demo dataset.
func (s *seedService) Seed(ctx context.Context, req SeedRequest) (*SeedSummary, error) {
	params, err := s.resolveParams(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.networks.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing networks: %w", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: demo fleet already seeded (%d networks)", apperrors.ErrConflict, existing)
	}

	started := s.clock.Now()
	gen := synthetic.NewGenerator(params.Seed)
	timeline := synthetic.Timeline(started.UTC(), params.Days, time.Duration(params.IntervalMinutes)*time.Minute)
	if len(timeline) == 0 {
		return nil, fmt.Errorf("generated timeline is empty")
	}

	networks, aps := gen.GenerateFleet(params.Networks, params.APsPerNetwork)

	retryCfg := retry.DefaultConfig()
	if err := retry.DoIfRetryable(ctx, retryCfg, func() error {
		return s.networks.CreateBatch(ctx, networks)
	}); err != nil {
		return nil, fmt.Errorf("failed to load networks: %w", err)
	}
	if err := retry.DoIfRetryable(ctx, retryCfg, func() error {
		return s.aps.CreateBatch(ctx, aps)
	}); err != nil {
		return nil, fmt.Errorf("failed to load access points: %w", err)
	}

	networksByID := make(map[uuid.UUID]*models.Network, len(networks))
	for _, n := range networks {
		networksByID[n.ID] = n
	}
	rawCutoff := timeline[len(timeline)-1].Add(-rawWindow)

	jobs := make([]workqueue.Job[apLoad], 0, len(aps))
	for _, ap := range aps {
		network := networksByID[ap.NetworkID]
		jobs = append(jobs, workqueue.Job[apLoad]{
			ID: ap.Name,
			Run: func(jobCtx context.Context) (apLoad, error) {
				return s.loadAccessPoint(jobCtx, gen, ap, network, timeline, rawCutoff, retryCfg)
			},
		})
	}

	pool := workqueue.NewPool(workqueue.Config{MaxConcurrent: params.LoadConcurrency}, s.logger)
	results := workqueue.Run(ctx, pool, jobs, func(completed, total int) {
		if completed%50 == 0 || completed == total {
			s.logger.Info("Seed load progress",
				zap.Int("access_points_loaded", completed),
				zap.Int("access_points_total", total))
		}
	})
	if err := workqueue.FirstError(results); err != nil {
		return nil, fmt.Errorf("failed to load telemetry facts: %w", err)
	}

	summary := &SeedSummary{
		Seed:         params.Seed,
		Networks:     len(networks),
		AccessPoints: len(aps),
		From:         timeline[0],
		To:           timeline[len(timeline)-1],
		DurationMs:   s.clock.Since(started).Milliseconds(),
	}
	for _, r := range results {
		summary.StatusRows += r.Value.statusRows
		summary.QoSRows += r.Value.qosRows
		summary.RawEvents += r.Value.rawEvents
	}

	s.logger.Info("Seeded demo fleet",
		zap.Int64("seed", summary.Seed),
		zap.Int("networks", summary.Networks),
		zap.Int("access_points", summary.AccessPoints),
		zap.Int("status_rows", summary.StatusRows),
		zap.Int("qos_rows", summary.QoSRows),
		zap.Int("raw_events", summary.RawEvents),
		zap.Int64("duration_ms", summary.DurationMs))

	return summary, nil
}

// loadAccessPoint generates and loads one access point's full fact history
// under its own role scope.
func (s *seedService) loadAccessPoint(
	ctx context.Context,
	gen *synthetic.Generator,
	ap *models.AccessPoint,
	network *models.Network,
	timeline []time.Time,
	rawCutoff time.Time,
	retryCfg *retry.Config,
) (apLoad, error) {
	statuses := make([]*models.StatusSnapshot, 0, len(timeline))
	var measurements []*models.QoSMeasurement
	var events []*models.RawAPEvent

	for _, ts := range timeline {
		snap := gen.GenerateStatus(ap, network, ts)
		statuses = append(statuses, &snap)

		qos := gen.GenerateQoS(ap, network, &snap)
		if qos != nil {
			measurements = append(measurements, qos)
		}

		if ts.After(rawCutoff) {
			event, err := buildRawEvent(ap, &snap, qos, s.clock.Now().UTC())
			if err != nil {
				return apLoad{}, fmt.Errorf("failed to build raw envelope for %s: %w", ap.Name, err)
			}
			events = append(events, event)
		}
	}

	scopedCtx, release, err := s.scopes.WithRoleScope(ctx, auth.RoleAdmin)
	if err != nil {
		return apLoad{}, fmt.Errorf("failed to acquire load scope: %w", err)
	}
	defer release()

	if err := retry.DoIfRetryable(scopedCtx, retryCfg, func() error {
		return s.telemetry.InsertStatusBatch(scopedCtx, statuses)
	}); err != nil {
		return apLoad{}, fmt.Errorf("failed to load status facts for %s: %w", ap.Name, err)
	}
	if err := retry.DoIfRetryable(scopedCtx, retryCfg, func() error {
		return s.telemetry.InsertQoSBatch(scopedCtx, measurements)
	}); err != nil {
		return apLoad{}, fmt.Errorf("failed to load qos facts for %s: %w", ap.Name, err)
	}
	if err := retry.DoIfRetryable(scopedCtx, retryCfg, func() error {
		return s.raw.InsertBatch(scopedCtx, events)
	}); err != nil {
		return apLoad{}, fmt.Errorf("failed to land raw events for %s: %w", ap.Name, err)
	}

	return apLoad{
		statusRows: len(statuses),
		qosRows:    len(measurements),
		rawEvents:  len(events),
	}, nil
}

// seedParams are the fully resolved generator parameters for one run.
type seedParams struct {
	Seed            int64
	Days            int
	IntervalMinutes int
	Networks        int
	APsPerNetwork   int
	LoadConcurrency int
}

func (s *seedService) resolveParams(req SeedRequest) (seedParams, error) {
	params := seedParams{
		Seed:            req.Seed,
		Days:            req.Days,
		IntervalMinutes: req.IntervalMinutes,
		Networks:        req.Networks,
		APsPerNetwork:   req.APsPerNetwork,
		LoadConcurrency: s.cfg.LoadConcurrency,
	}
	if params.Seed == 0 {
		params.Seed = s.cfg.Seed
	}
	if params.Days == 0 {
		params.Days = s.cfg.Days
	}
	if params.IntervalMinutes == 0 {
		params.IntervalMinutes = s.cfg.IntervalMinutes
	}
	if params.Networks == 0 {
		params.Networks = s.cfg.Networks
	}
	if params.APsPerNetwork == 0 {
		params.APsPerNetwork = s.cfg.APsPerNetwork
	}

	if params.Days < 0 || params.IntervalMinutes < 0 || params.Networks < 0 || params.APsPerNetwork < 0 {
		return seedParams{}, fmt.Errorf("seed parameters must not be negative")
	}
	return params, nil
}

// vendorEnvelope mirrors TelemetryEnvelope with concrete field types for
// building payloads. The ingest side keeps numerics raw to absorb firmware
// drift; the generator always emits well-typed JSON.
type vendorEnvelope struct {
	Device    vendorDevice      `json:"device"`
	Timestamp string            `json:"timestamp"`
	Status    vendorStatus      `json:"status"`
	Radio     *vendorRadio      `json:"radio,omitempty"`
	Location  *EnvelopeLocation `json:"location,omitempty"`
}

type vendorDevice struct {
	MAC      string `json:"mac"`
	APID     string `json:"ap_id,omitempty"`
	Firmware string `json:"firmware,omitempty"`
}

type vendorStatus struct {
	State   string  `json:"state"`
	Clients int     `json:"clients"`
	CPU     float64 `json:"cpu"`
	Mem     float64 `json:"mem"`
}

type vendorRadio struct {
	RSSIDbm         float64 `json:"rssi_dbm"`
	ThroughputMbps  float64 `json:"throughput_mbps"`
	LatencyMs       float64 `json:"latency_ms"`
	PacketLossPct   float64 `json:"packet_loss_pct"`
	InterferencePct float64 `json:"interference_pct"`
	QualityScore    float64 `json:"quality_score"`
}

// buildRawEvent wraps one generated measurement cell in the vendor envelope
// format, exactly as a live access point would have reported it.
func buildRawEvent(ap *models.AccessPoint, snap *models.StatusSnapshot, qos *models.QoSMeasurement, receivedAt time.Time) (*models.RawAPEvent, error) {
	envelope := vendorEnvelope{
		Device: vendorDevice{
			MAC:      ap.MACAddress,
			APID:     ap.ID.String(),
			Firmware: ap.Firmware,
		},
		Timestamp: snap.Timestamp.Format(time.RFC3339),
		Status: vendorStatus{
			State:   snap.Status,
			Clients: snap.ClientCount,
			CPU:     snap.CPUPercent,
			Mem:     snap.MemPercent,
		},
		Location: &EnvelopeLocation{Site: ap.Site, Zone: ap.Zone},
	}
	if qos != nil {
		envelope.Radio = &vendorRadio{
			RSSIDbm:         qos.RSSI,
			ThroughputMbps:  qos.ThroughputMbps,
			LatencyMs:       qos.LatencyMs,
			PacketLossPct:   qos.PacketLossPct,
			InterferencePct: qos.InterferencePct,
			QualityScore:    qos.QualityScore,
		}
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return &models.RawAPEvent{
		ID:         uuid.New(),
		APID:       ap.ID,
		EventTime:  snap.Timestamp,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, nil
}

var _ SeedService = (*seedService)(nil)
