// Package synthetic generates deterministic demo telemetry for a WiFi
// access-point fleet. Every value is a pure function of (seed, access
// point, timestamp), so any slice of the dataset can be regenerated
// identically, in any order, on any machine.
package synthetic

import (
	"math/rand"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// Signal strength model. RSSI is built additively from the RF environment
// the network lives in, the quality of the hardware, how loaded the radio
// is, and when the measurement happens, then clamped to the physical range
// the fleet reports.
const (
	rssiFloor = -90.0 // dBm, clamp lower bound
	rssiCeil  = -30.0 // dBm, clamp upper bound

	maxLoadPenaltyDB = 12.0 // full radio saturation costs this much signal
	weekendOffsetDB  = 2.0  // quieter spectrum on weekends
	jitterRangeDB    = 3.0  // per-measurement noise, +/-
)

// industryBaseRSSI is the baseline signal environment per industry class.
// Dense, interference-heavy deployments sit lower.
var industryBaseRSSI = map[string]float64{
	models.IndustryCorporate:   -55,
	models.IndustryEducation:   -58,
	models.IndustryRetail:      -60,
	models.IndustryHospitality: -62,
	models.IndustryHealthcare:  -64,
	models.IndustryWarehouse:   -66,
}

// tierRSSIOffset adjusts for hardware quality. Premium radios hold signal
// under conditions that drown budget gear.
var tierRSSIOffset = map[string]float64{
	models.TierPremium:  4,
	models.TierStandard: 0,
	models.TierBudget:   -4,
}

// hourOffsetDB models spectrum congestion over the day: worst during
// business hours, best in the small hours.
func hourOffsetDB(hour int) float64 {
	switch {
	case hour >= 9 && hour <= 17:
		return -6
	case hour >= 18 && hour <= 22:
		return -3
	case hour >= 7 && hour <= 8:
		return -1
	default: // 23:00 - 06:00
		return 3
	}
}

// valueRange is an inclusive [Lo, Hi] interval a QoS metric is drawn from.
type valueRange struct {
	Lo, Hi float64
}

// at interpolates the range at position pos in [0, 1].
func (r valueRange) at(pos float64) float64 {
	return r.Lo + (r.Hi-r.Lo)*pos
}

// signalBand maps an RSSI interval to the QoS a client experiences there.
// Bands are ordered best to worst; each metric range is monotone across
// bands so a weaker signal can never produce better QoS.
type signalBand struct {
	Name             string
	MinRSSI          float64 // inclusive lower edge; upper edge is the previous band's MinRSSI
	Throughput       valueRange
	Latency          valueRange
	PacketLoss       valueRange
	Quality          valueRange
	InterferenceBase float64
}

// signalBands is the QoS lookup table keyed on signal strength.
var signalBands = []signalBand{
	{
		Name:             models.BandExcellent,
		MinRSSI:          -55,
		Throughput:       valueRange{180, 320},
		Latency:          valueRange{8, 2},
		PacketLoss:       valueRange{0.4, 0.0},
		Quality:          valueRange{90, 100},
		InterferenceBase: 2,
	},
	{
		Name:             models.BandGood,
		MinRSSI:          -65,
		Throughput:       valueRange{100, 180},
		Latency:          valueRange{18, 8},
		PacketLoss:       valueRange{1.2, 0.4},
		Quality:          valueRange{75, 90},
		InterferenceBase: 6,
	},
	{
		Name:             models.BandFair,
		MinRSSI:          -72,
		Throughput:       valueRange{40, 100},
		Latency:          valueRange{35, 18},
		PacketLoss:       valueRange{3.0, 1.2},
		Quality:          valueRange{55, 75},
		InterferenceBase: 12,
	},
	{
		Name:             models.BandPoor,
		MinRSSI:          -80,
		Throughput:       valueRange{10, 40},
		Latency:          valueRange{80, 35},
		PacketLoss:       valueRange{8.0, 3.0},
		Quality:          valueRange{30, 55},
		InterferenceBase: 22,
	},
	{
		Name:             models.BandCritical,
		MinRSSI:          rssiFloor,
		Throughput:       valueRange{1, 10},
		Latency:          valueRange{200, 80},
		PacketLoss:       valueRange{25.0, 8.0},
		Quality:          valueRange{5, 30},
		InterferenceBase: 35,
	},
}

// bandFor returns the signal band covering the given RSSI.
func bandFor(rssi float64) signalBand {
	for _, b := range signalBands {
		if rssi >= b.MinRSSI {
			return b
		}
	}
	return signalBands[len(signalBands)-1]
}

// BandName labels an RSSI with its signal band. The ingest path uses it to
// band measurements arriving from real devices with the same thresholds the
// generator uses, so stored facts never disagree on what "good" means.
func BandName(rssi float64) string {
	return bandFor(rssi).Name
}

// bandPosition returns where rssi sits within its band, 0 at the weak edge
// and 1 at the strong edge. Metric ranges are oriented so position 1 is
// always the better experience.
func bandPosition(rssi float64, b signalBand) float64 {
	upper := rssiCeil
	for _, other := range signalBands {
		if other.MinRSSI > b.MinRSSI {
			upper = other.MinRSSI
		}
	}
	if upper <= b.MinRSSI {
		return 0
	}
	pos := (rssi - b.MinRSSI) / (upper - b.MinRSSI)
	return clamp(pos, 0, 1)
}

// loadProfile shapes the client-count curve per industry.
type loadProfile struct {
	WeekendFactor float64 // multiplier applied to weekend load
	NightFloor    float64 // minimum load fraction, around the clock
}

var industryLoadProfiles = map[string]loadProfile{
	models.IndustryCorporate:   {WeekendFactor: 0.30, NightFloor: 0.05},
	models.IndustryEducation:   {WeekendFactor: 0.20, NightFloor: 0.05},
	models.IndustryRetail:      {WeekendFactor: 1.15, NightFloor: 0.05},
	models.IndustryHospitality: {WeekendFactor: 1.05, NightFloor: 0.30},
	models.IndustryHealthcare:  {WeekendFactor: 0.90, NightFloor: 0.35},
	models.IndustryWarehouse:   {WeekendFactor: 0.50, NightFloor: 0.10},
}

// hourlyLoadCurve is the weekday load fraction by hour for a generic
// business deployment, before industry shaping and jitter.
var hourlyLoadCurve = [24]float64{
	0.06, 0.05, 0.05, 0.05, 0.06, 0.08, // 00-05
	0.10, 0.20, 0.45, 0.75, 0.78, 0.75, // 06-11
	0.65, 0.80, 0.82, 0.80, 0.78, 0.60, // 12-17
	0.35, 0.30, 0.25, 0.15, 0.10, 0.08, // 18-23
}

// loadFraction computes the fraction of radio capacity in use at the given
// hour for the given industry, with bounded jitter from r.
func loadFraction(hour int, weekend bool, industry string, r *rand.Rand) float64 {
	base := hourlyLoadCurve[hour]

	profile, ok := industryLoadProfiles[industry]
	if !ok {
		profile = loadProfile{WeekendFactor: 0.5, NightFloor: 0.05}
	}

	if weekend {
		base *= profile.WeekendFactor
	}
	if base < profile.NightFloor {
		base = profile.NightFloor
	}

	base += (r.Float64()*2 - 1) * 0.08
	return clamp(base, 0, 0.98)
}

// Rare-status probabilities, drawn per snapshot from the cell RNG.
const (
	probOffline     = 0.002
	probMaintenance = 0.001
	probDegraded    = 0.010
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
