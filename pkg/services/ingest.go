package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/jsonutil"
	"github.com/netsight-ai/netsight-engine/pkg/models"
	"github.com/netsight-ai/netsight-engine/pkg/repositories"
	"github.com/netsight-ai/netsight-engine/pkg/synthetic"
)

// macPattern matches colon-separated EUI-48 addresses, the only format the
// managed fleet reports.
var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// TelemetryEnvelope is the wire format access points push. Numeric fields are
// kept raw because firmware revisions disagree about types; some report
// rssi_dbm as the string "-62".
type TelemetryEnvelope struct {
	Device    EnvelopeDevice    `json:"device"`
	Timestamp string            `json:"timestamp"`
	Status    EnvelopeStatus    `json:"status"`
	Radio     *EnvelopeRadio    `json:"radio,omitempty"`
	Location  *EnvelopeLocation `json:"location,omitempty"`
}

// EnvelopeDevice identifies the reporting access point. MAC is authoritative;
// ap_id is optional and cross-checked against the registry when present.
type EnvelopeDevice struct {
	MAC      string          `json:"mac"`
	APID     string          `json:"ap_id,omitempty"`
	Firmware json.RawMessage `json:"firmware,omitempty"`
}

// EnvelopeStatus carries the operational state section.
type EnvelopeStatus struct {
	State   string          `json:"state"`
	Clients json.RawMessage `json:"clients"`
	CPU     json.RawMessage `json:"cpu"`
	Mem     json.RawMessage `json:"mem"`
}

// EnvelopeRadio carries the QoS metrics section. Omitted entirely when the
// radio is down.
type EnvelopeRadio struct {
	RSSIDbm         json.RawMessage `json:"rssi_dbm"`
	ThroughputMbps  json.RawMessage `json:"throughput_mbps"`
	LatencyMs       json.RawMessage `json:"latency_ms"`
	PacketLossPct   json.RawMessage `json:"packet_loss_pct"`
	InterferencePct json.RawMessage `json:"interference_pct"`
	QualityScore    json.RawMessage `json:"quality_score"`
}

// EnvelopeLocation carries the placement section. Informational only; the
// registry is authoritative for where an access point lives.
type EnvelopeLocation struct {
	Site string `json:"site,omitempty"`
	Zone string `json:"zone,omitempty"`
}

// IngestError describes why one envelope in a batch was rejected.
type IngestError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Accepted   int           `json:"accepted"`
	Duplicates int           `json:"duplicates"`
	Rejected   int           `json:"rejected"`
	Errors     []IngestError `json:"errors,omitempty"`
}

// IngestService lands raw telemetry envelopes and flattens them into the
// status and QoS fact tables.
type IngestService interface {
	// Ingest validates each envelope (MAC format, timestamp, registered
	// access point), appends the raw payload, and derives fact rows.
	// Malformed envelopes are rejected individually; an infrastructure
	// failure aborts the batch. Re-sending an envelope is safe: the fact
	// tables reject duplicate (ap, timestamp) cells and the resend is
	// counted, not errored.
	Ingest(ctx context.Context, events []json.RawMessage) (*IngestResult, error)
}

type ingestService struct {
	aps       repositories.AccessPointRepository
	telemetry repositories.TelemetryRepository
	raw       repositories.RawEventRepository
	logger    *zap.Logger
}

// NewIngestService creates an ingest service.
func NewIngestService(
	aps repositories.AccessPointRepository,
	telemetry repositories.TelemetryRepository,
	raw repositories.RawEventRepository,
	logger *zap.Logger,
) IngestService {
	return &ingestService{
		aps:       aps,
		telemetry: telemetry,
		raw:       raw,
		logger:    logger,
	}
}

// Ingest processes a batch of telemetry envelopes.
func (s *ingestService) Ingest(ctx context.Context, events []json.RawMessage) (*IngestResult, error) {
	result := &IngestResult{}

	for i, payload := range events {
		envelope, ap, ts, reason := s.validate(ctx, payload)
		if reason != "" {
			result.Rejected++
			result.Errors = append(result.Errors, IngestError{Index: i, Reason: reason})
			continue
		}

		event := &models.RawAPEvent{
			ID:         uuid.New(),
			APID:       ap.ID,
			EventTime:  ts,
			Payload:    payload,
			ReceivedAt: time.Now().UTC(),
		}
		if err := s.raw.Insert(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to land raw event: %w", err)
		}

		duplicate, err := s.flatten(ctx, envelope, ap, ts)
		if err != nil {
			return nil, err
		}
		if duplicate {
			result.Duplicates++
		} else {
			result.Accepted++
		}
	}

	s.logger.Info("Ingested telemetry batch",
		zap.Int("events", len(events)),
		zap.Int("accepted", result.Accepted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("rejected", result.Rejected))

	return result, nil
}

// validate parses one envelope and resolves its access point. A non-empty
// reason means the envelope is rejected.
func (s *ingestService) validate(ctx context.Context, payload json.RawMessage) (*TelemetryEnvelope, *models.AccessPoint, time.Time, string) {
	var envelope TelemetryEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, nil, time.Time{}, "malformed JSON envelope"
	}

	mac := strings.TrimSpace(envelope.Device.MAC)
	if mac == "" {
		return nil, nil, time.Time{}, "missing device.mac"
	}
	if !macPattern.MatchString(mac) {
		return nil, nil, time.Time{}, fmt.Sprintf("invalid MAC address %q", mac)
	}

	if strings.TrimSpace(envelope.Timestamp) == "" {
		return nil, nil, time.Time{}, "missing timestamp"
	}
	ts, err := time.Parse(time.RFC3339, envelope.Timestamp)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Sprintf("unparseable timestamp %q", envelope.Timestamp)
	}

	switch envelope.Status.State {
	case models.StatusOnline, models.StatusDegraded, models.StatusOffline, models.StatusMaintenance:
	default:
		return nil, nil, time.Time{}, fmt.Sprintf("unrecognized status %q", envelope.Status.State)
	}

	ap, err := s.aps.GetByMAC(ctx, mac)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, time.Time{}, fmt.Sprintf("unknown access point %s", mac)
		}
		// Treat lookup failures as rejection rather than aborting the
		// batch; the caller retries the rejected events.
		s.logger.Warn("Access point lookup failed during ingest", zap.String("mac", mac), zap.Error(err))
		return nil, nil, time.Time{}, "access point lookup failed"
	}

	if envelope.Device.APID != "" {
		claimed, err := uuid.Parse(envelope.Device.APID)
		if err != nil || claimed != ap.ID {
			return nil, nil, time.Time{}, fmt.Sprintf("device.ap_id does not match access point registered for %s", mac)
		}
	}

	return &envelope, ap, ts.UTC(), ""
}

// flatten derives fact rows from one validated envelope. Returns true when
// the (ap, timestamp) cell was already recorded.
func (s *ingestService) flatten(ctx context.Context, envelope *TelemetryEnvelope, ap *models.AccessPoint, ts time.Time) (bool, error) {
	clients, _ := jsonutil.FlexibleIntValue(envelope.Status.Clients)
	cpu, _ := jsonutil.FlexibleFloat64Value(envelope.Status.CPU)
	mem, _ := jsonutil.FlexibleFloat64Value(envelope.Status.Mem)

	snap := &models.StatusSnapshot{
		Timestamp:   ts,
		APID:        ap.ID,
		NetworkID:   ap.NetworkID,
		Status:      envelope.Status.State,
		ClientCount: clients,
		CPUPercent:  cpu,
		MemPercent:  mem,
	}

	duplicate := false
	if err := s.telemetry.InsertStatus(ctx, snap); err != nil {
		if !errors.Is(err, apperrors.ErrImmutableFact) {
			return false, fmt.Errorf("failed to flatten status snapshot: %w", err)
		}
		duplicate = true
	}

	if envelope.Radio == nil {
		return duplicate, nil
	}

	rssi, ok := jsonutil.FlexibleFloat64Value(envelope.Radio.RSSIDbm)
	if !ok {
		// A radio section without a signal reading carries nothing the
		// QoS fact table can hold.
		return duplicate, nil
	}
	throughput, _ := jsonutil.FlexibleFloat64Value(envelope.Radio.ThroughputMbps)
	latency, _ := jsonutil.FlexibleFloat64Value(envelope.Radio.LatencyMs)
	loss, _ := jsonutil.FlexibleFloat64Value(envelope.Radio.PacketLossPct)
	interference, _ := jsonutil.FlexibleFloat64Value(envelope.Radio.InterferencePct)
	quality, _ := jsonutil.FlexibleFloat64Value(envelope.Radio.QualityScore)

	measurement := &models.QoSMeasurement{
		Timestamp:       ts,
		APID:            ap.ID,
		NetworkID:       ap.NetworkID,
		RSSI:            rssi,
		ThroughputMbps:  throughput,
		LatencyMs:       latency,
		PacketLossPct:   loss,
		InterferencePct: interference,
		QualityScore:    quality,
		// The band label is derived here, never trusted from the device.
		SignalBand: synthetic.BandName(rssi),
	}
	if err := s.telemetry.InsertQoS(ctx, measurement); err != nil {
		if !errors.Is(err, apperrors.ErrImmutableFact) {
			return false, fmt.Errorf("failed to flatten qos measurement: %w", err)
		}
		duplicate = true
	}

	return duplicate, nil
}

var _ IngestService = (*ingestService)(nil)
