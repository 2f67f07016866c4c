package synthetic

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// fleetNamespace scopes the deterministic UUIDs of generated dimensions.
var fleetNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("netsight.ai"))

// zeroTime keys fleet-level draws in the cell RNG, which otherwise hashes
// a measurement timestamp.
var zeroTime time.Time

// demoCustomers is the curated customer roster the fleet builder draws
// from, cycling with a numeric suffix when more networks are requested.
var demoCustomers = []struct {
	Customer string
	Industry string
	City     string
	Country  string
}{
	{"Meridian Financial Group", models.IndustryCorporate, "New York", "US"},
	{"Blue Harbor Hotels", models.IndustryHospitality, "Miami", "US"},
	{"St. Alban's Medical Center", models.IndustryHealthcare, "Boston", "US"},
	{"Northgate University", models.IndustryEducation, "Seattle", "US"},
	{"Cascade Retail Co", models.IndustryRetail, "Portland", "US"},
	{"Atlas Logistics", models.IndustryWarehouse, "Dallas", "US"},
	{"Helvetia Insurance", models.IndustryCorporate, "Zurich", "CH"},
	{"Royal Crescent Resorts", models.IndustryHospitality, "London", "GB"},
	{"Nordmark Clinics", models.IndustryHealthcare, "Oslo", "NO"},
	{"Pacific Coast College", models.IndustryEducation, "San Diego", "US"},
	{"Lumen Department Stores", models.IndustryRetail, "Chicago", "US"},
	{"Eastport Distribution", models.IndustryWarehouse, "Rotterdam", "NL"},
}

// slaTargetByIndustry is the minimum quality score each industry contracts
// for.
var slaTargetByIndustry = map[string]float64{
	models.IndustryCorporate:   80,
	models.IndustryHealthcare:  85,
	models.IndustryEducation:   75,
	models.IndustryRetail:      70,
	models.IndustryHospitality: 75,
	models.IndustryWarehouse:   65,
}

// hardwareModel is one entry of the deployable hardware catalog.
type hardwareModel struct {
	Manufacturer string
	Model        string
	Standard     string
	MaxClients   int
}

var hardwareCatalog = []hardwareModel{
	{"Cisco", "Catalyst 9166", "802.11ax", 120},
	{"Cisco", "Catalyst 9136", "802.11ax", 100},
	{"Arista", "C-360", "802.11ax", 110},
	{"Juniper", "AP45", "802.11ax", 100},
	{"Aruba", "AP-635", "802.11ax", 90},
	{"Aruba", "AP-535", "802.11ax", 80},
	{"Ruckus", "R650", "802.11ax", 80},
	{"Ruckus", "R550", "802.11ac", 60},
	{"TP-Link", "EAP660 HD", "802.11ax", 60},
	{"TP-Link", "EAP245", "802.11ac", 50},
	{"D-Link", "DAP-2680", "802.11ac", 45},
}

// macOUI is the vendor prefix stamped on generated MAC addresses.
var macOUI = map[string]string{
	"Cisco":   "00:1B:54",
	"Arista":  "28:99:3A",
	"Juniper": "3C:8A:B0",
	"Aruba":   "24:DE:C6",
	"Ruckus":  "58:93:96",
	"TP-Link": "50:C7:BF",
	"D-Link":  "14:D6:4D",
}

var firmwareByManufacturer = map[string][]string{
	"Cisco":   {"17.9.4", "17.12.2"},
	"Arista":  {"16.1.0", "16.2.1"},
	"Juniper": {"0.12.25703", "0.14.29337"},
	"Aruba":   {"8.11.2.2", "8.12.0.1"},
	"Ruckus":  {"6.1.2.0", "7.0.0.300"},
	"TP-Link": {"5.0.7", "5.1.2"},
	"D-Link":  {"2.03", "2.10"},
}

var buildingNames = []string{"HQ", "Annex", "East Wing"}

var zoneNames = []string{
	"lobby", "open-office", "conference-a", "conference-b",
	"cafeteria", "lab", "storage", "reception",
}

// GenerateFleet builds the demo dimension set: networks across industries
// and their access points. The fleet is a pure function of the seed and
// the requested counts, and the first N networks of a larger fleet are
// identical to a fleet of N.
func (g *Generator) GenerateFleet(networks, apsPerNetwork int) ([]*models.Network, []*models.AccessPoint) {
	nets := make([]*models.Network, 0, networks)
	aps := make([]*models.AccessPoint, 0, networks*apsPerNetwork)

	for i := 0; i < networks; i++ {
		net := g.generateNetwork(i)
		nets = append(nets, net)

		for j := 0; j < apsPerNetwork; j++ {
			aps = append(aps, g.generateAccessPoint(net, i, j))
		}
	}

	return nets, aps
}

func (g *Generator) generateNetwork(idx int) *models.Network {
	c := demoCustomers[idx%len(demoCustomers)]

	customer := c.Customer
	if cycle := idx / len(demoCustomers); cycle > 0 {
		customer = fmt.Sprintf("%s %d", c.Customer, cycle+1)
	}

	id := uuid.NewSHA1(fleetNamespace, fmt.Appendf(nil, "network/%d/%d", g.seed, idx))

	return &models.Network{
		ID:        id,
		Name:      fmt.Sprintf("%s - %s", customer, c.City),
		Customer:  customer,
		Industry:  c.Industry,
		City:      c.City,
		Country:   c.Country,
		SLATarget: slaTargetByIndustry[c.Industry],
	}
}

func (g *Generator) generateAccessPoint(net *models.Network, netIdx, apIdx int) *models.AccessPoint {
	id := uuid.NewSHA1(fleetNamespace, fmt.Appendf(nil, "ap/%d/%d/%d", g.seed, netIdx, apIdx))

	// Draws for this AP come from its own RNG so the hardware mix does not
	// shift when the per-network AP count changes.
	r := g.cellRand(id, zeroTime, "fleet")

	hw := hardwareCatalog[r.Intn(len(hardwareCatalog))]
	firmwares := firmwareByManufacturer[hw.Manufacturer]

	site := siteCode(net.City)
	floor := 1 + r.Intn(5)

	return &models.AccessPoint{
		ID:           id,
		NetworkID:    net.ID,
		Name:         fmt.Sprintf("AP-%s-%d-%02d", site, floor, apIdx+1),
		MACAddress:   generateMAC(hw.Manufacturer, r),
		Model:        hw.Model,
		Manufacturer: hw.Manufacturer,
		WiFiStandard: hw.Standard,
		MaxClients:   hw.MaxClients - r.Intn(hw.MaxClients/5+1),
		Firmware:     firmwares[r.Intn(len(firmwares))],
		Site:         site,
		Building:     buildingNames[r.Intn(len(buildingNames))],
		Floor:        floor,
		Zone:         zoneNames[r.Intn(len(zoneNames))],
	}
}

// generateMAC stamps the vendor OUI onto three random octets.
func generateMAC(manufacturer string, r *rand.Rand) string {
	oui, ok := macOUI[manufacturer]
	if !ok {
		oui = "02:00:00" // locally administered fallback
	}
	return fmt.Sprintf("%s:%02X:%02X:%02X", oui, r.Intn(256), r.Intn(256), r.Intn(256))
}

// siteCode derives a short site label from the network's city.
func siteCode(city string) string {
	letters := make([]rune, 0, 3)
	for _, ch := range city {
		if ch == ' ' || ch == '-' {
			continue
		}
		letters = append(letters, ch)
		if len(letters) == 3 {
			break
		}
	}
	return strings.ToUpper(string(letters))
}
