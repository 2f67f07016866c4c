package synthetic

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// Generator produces deterministic telemetry for a fixed seed.
// It is stateless and safe for concurrent use: every measurement draws
// from its own RNG seeded by (seed, access point, timestamp), so cells
// can be generated in any order, in parallel, and regenerated exactly.
type Generator struct {
	seed int64
}

// NewGenerator creates a generator for the given seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed}
}

// Seed returns the seed this generator was built with.
func (g *Generator) Seed() int64 {
	return g.seed
}

// cellRand returns the RNG for one (access point, timestamp) cell.
// The salt separates independent draws for the same cell (status vs QoS)
// so adding a new draw never perturbs existing ones.
func (g *Generator) cellRand(apID uuid.UUID, ts time.Time, salt string) *rand.Rand {
	h := fnv.New64a()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(g.seed))
	_, _ = h.Write(buf[:])

	_, _ = h.Write(apID[:])

	binary.BigEndian.PutUint64(buf[:], uint64(ts.Unix()))
	_, _ = h.Write(buf[:])

	_, _ = h.Write([]byte(salt))

	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// GenerateStatus produces the status snapshot for one access point at one
// measurement instant.
func (g *Generator) GenerateStatus(ap *models.AccessPoint, network *models.Network, ts time.Time) models.StatusSnapshot {
	r := g.cellRand(ap.ID, ts, "status")

	hour := ts.Hour()
	weekend := isWeekend(ts)

	load := loadFraction(hour, weekend, network.Industry, r)
	clients := int(load * float64(ap.MaxClients))

	status := models.StatusOnline
	switch draw := r.Float64(); {
	case draw < probOffline:
		status = models.StatusOffline
	case draw < probOffline+probMaintenance:
		status = models.StatusMaintenance
	case draw < probOffline+probMaintenance+probDegraded:
		status = models.StatusDegraded
	}

	if status == models.StatusOffline || status == models.StatusMaintenance {
		clients = 0
		load = 0
	}

	cpu := clamp(15+load*65+r.Float64()*10, 0, 100)
	mem := clamp(25+load*55+r.Float64()*8, 0, 100)
	if status == models.StatusOffline {
		cpu, mem = 0, 0
	}

	return models.StatusSnapshot{
		Timestamp:   ts,
		APID:        ap.ID,
		NetworkID:   network.ID,
		Status:      status,
		ClientCount: clients,
		CPUPercent:  round1(cpu),
		MemPercent:  round1(mem),
	}
}

// GenerateQoS derives the QoS measurement matching a status snapshot.
// Returns nil for offline access points: a radio that is down reports
// nothing.
func (g *Generator) GenerateQoS(ap *models.AccessPoint, network *models.Network, snap *models.StatusSnapshot) *models.QoSMeasurement {
	if snap.Status == models.StatusOffline {
		return nil
	}

	r := g.cellRand(ap.ID, snap.Timestamp, "qos")

	rssi := g.signalStrength(ap, network, snap, r)

	band := bandFor(rssi)
	pos := bandPosition(rssi, band)

	// Jitter each metric within a slice of its band range so equal RSSI
	// values do not collapse to identical QoS rows.
	jitter := func(rng valueRange) float64 {
		span := rng.Hi - rng.Lo
		v := rng.at(pos) + (r.Float64()*2-1)*span*0.08
		lo, hi := rng.Lo, rng.Hi
		if lo > hi {
			lo, hi = hi, lo
		}
		return clamp(v, lo, hi)
	}

	loadFrac := 0.0
	if ap.MaxClients > 0 {
		loadFrac = float64(snap.ClientCount) / float64(ap.MaxClients)
	}
	interference := clamp(band.InterferenceBase+loadFrac*40+r.Float64()*5, 0, 100)

	return &models.QoSMeasurement{
		Timestamp:       snap.Timestamp,
		APID:            ap.ID,
		NetworkID:       network.ID,
		RSSI:            round1(rssi),
		ThroughputMbps:  round1(jitter(band.Throughput)),
		LatencyMs:       round1(jitter(band.Latency)),
		PacketLossPct:   round2(jitter(band.PacketLoss)),
		InterferencePct: round1(interference),
		QualityScore:    round1(jitter(band.Quality)),
		SignalBand:      band.Name,
	}
}

// signalStrength computes RSSI from the additive signal model.
func (g *Generator) signalStrength(ap *models.AccessPoint, network *models.Network, snap *models.StatusSnapshot, r *rand.Rand) float64 {
	base, ok := industryBaseRSSI[network.Industry]
	if !ok {
		base = -60
	}

	tier := tierRSSIOffset[models.HardwareTier(ap.Manufacturer)]

	loadFrac := 0.0
	if ap.MaxClients > 0 {
		loadFrac = float64(snap.ClientCount) / float64(ap.MaxClients)
	}
	loadPenalty := -loadFrac * maxLoadPenaltyDB

	timeOffset := hourOffsetDB(snap.Timestamp.Hour())

	weekend := 0.0
	if isWeekend(snap.Timestamp) {
		weekend = weekendOffsetDB
	}

	jitter := (r.Float64()*2 - 1) * jitterRangeDB

	return clamp(base+tier+loadPenalty+timeOffset+weekend+jitter, rssiFloor, rssiCeil)
}

// Timeline returns measurement timestamps covering the given number of
// days back from end, spaced by interval, oldest first. The end timestamp
// is truncated to the interval so reruns with the same end land on the
// same grid.
func Timeline(end time.Time, days int, interval time.Duration) []time.Time {
	if days <= 0 || interval <= 0 {
		return nil
	}

	end = end.UTC().Truncate(interval)
	start := end.AddDate(0, 0, -days)

	var ticks []time.Time
	for ts := start; !ts.After(end); ts = ts.Add(interval) {
		ticks = append(ticks, ts)
	}
	return ticks
}

func isWeekend(ts time.Time) bool {
	wd := ts.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
