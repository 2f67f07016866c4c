package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessPoint represents one hardware unit belonging to a network.
// Access points are created once during seeding and never mutated;
// operational state lives in the fact tables.
type AccessPoint struct {
	ID           uuid.UUID `json:"id"`
	NetworkID    uuid.UUID `json:"network_id"`
	Name         string    `json:"name"`
	MACAddress   string    `json:"mac_address"`
	Model        string    `json:"model"`
	Manufacturer string    `json:"manufacturer"`
	WiFiStandard string    `json:"wifi_standard"` // e.g. 802.11ax
	MaxClients   int       `json:"max_clients"`
	Firmware     string    `json:"firmware"`
	Site         string    `json:"site"`
	Building     string    `json:"building"`
	Floor        int       `json:"floor"`
	Zone         string    `json:"zone"`
	CreatedAt    time.Time `json:"created_at"`
}

// Manufacturer tiers. Tier feeds the hardware-quality offset in the signal
// model: premium gear holds signal better under load than budget gear.
const (
	TierPremium  = "premium"
	TierStandard = "standard"
	TierBudget   = "budget"
)

// HardwareTier maps a manufacturer to its quality tier. Unknown
// manufacturers are treated as standard.
func HardwareTier(manufacturer string) string {
	switch manufacturer {
	case "Arista", "Cisco":
		return TierPremium
	case "Aruba", "Ruckus", "Juniper":
		return TierStandard
	case "TP-Link", "D-Link":
		return TierBudget
	default:
		return TierStandard
	}
}
