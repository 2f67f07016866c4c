package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operational statuses an access point can report.
const (
	StatusOnline      = "online"
	StatusDegraded    = "degraded"
	StatusOffline     = "offline"
	StatusMaintenance = "maintenance"
)

// Signal bands a QoS measurement is labeled with, strongest to weakest.
const (
	BandExcellent = "excellent"
	BandGood      = "good"
	BandFair      = "fair"
	BandPoor      = "poor"
	BandCritical  = "critical"
)

// StatusSnapshot is an append-only fact recording an access point's
// operational state at one measurement instant. network_id is denormalized
// from the access point so rollups never need the dimension join.
type StatusSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	APID        uuid.UUID `json:"ap_id"`
	NetworkID   uuid.UUID `json:"network_id"`
	Status      string    `json:"status"`
	ClientCount int       `json:"client_count"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemPercent  float64   `json:"mem_percent"`
}

// QoSMeasurement is an append-only fact recording radio quality at one
// measurement instant. Derived deterministically from the matching status
// snapshot's client load plus the access point's hardware profile.
type QoSMeasurement struct {
	Timestamp       time.Time `json:"timestamp"`
	APID            uuid.UUID `json:"ap_id"`
	NetworkID       uuid.UUID `json:"network_id"`
	RSSI            float64   `json:"rssi_dbm"`
	ThroughputMbps  float64   `json:"throughput_mbps"`
	LatencyMs       float64   `json:"latency_ms"`
	PacketLossPct   float64   `json:"packet_loss_pct"`  // 0-100
	InterferencePct float64   `json:"interference_pct"` // 0-100
	QualityScore    float64   `json:"quality_score"`    // 0-100
	SignalBand      string    `json:"signal_band"`      // excellent | good | fair | poor | critical
}

// RawAPEvent is one semi-structured telemetry envelope as received from an
// access point, landed append-only before flattening. Payload keeps the
// vendor JSON verbatim for replay and audit.
type RawAPEvent struct {
	ID         uuid.UUID       `json:"id"`
	APID       uuid.UUID       `json:"ap_id"`
	EventTime  time.Time       `json:"event_time"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// APTelemetrySummary is the latest observed state of one access point,
// joined across both fact tables for the fleet summary endpoint.
type APTelemetrySummary struct {
	APID           uuid.UUID `json:"ap_id"`
	APName         string    `json:"ap_name"`
	NetworkID      uuid.UUID `json:"network_id"`
	NetworkName    string    `json:"network_name"`
	LastSeen       time.Time `json:"last_seen"`
	Status         string    `json:"status"`
	ClientCount    int       `json:"client_count"`
	RSSI           float64   `json:"rssi_dbm"`
	ThroughputMbps float64   `json:"throughput_mbps"`
	LatencyMs      float64   `json:"latency_ms"`
	QualityScore   float64   `json:"quality_score"`
	SignalBand     string    `json:"signal_band"`
}

// NetworkHealth is a per-network rollup over a recent window.
type NetworkHealth struct {
	NetworkID       uuid.UUID `json:"network_id"`
	NetworkName     string    `json:"network_name"`
	Customer        string    `json:"customer"`
	SLATarget       float64   `json:"sla_target"`
	APCount         int       `json:"ap_count"`
	OnlineAPs       int       `json:"online_aps"`
	AvgQualityScore float64   `json:"avg_quality_score"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"`
	AvgLossPct      float64   `json:"avg_loss_pct"`
	MeetsSLA        bool      `json:"meets_sla"`
}
