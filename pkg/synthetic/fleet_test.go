package synthetic

import (
	"regexp"
	"testing"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

var macPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

func TestGenerateFleet_Deterministic(t *testing.T) {
	netsA, apsA := NewGenerator(42).GenerateFleet(4, 6)
	netsB, apsB := NewGenerator(42).GenerateFleet(4, 6)

	if len(netsA) != 4 || len(apsA) != 24 {
		t.Fatalf("expected 4 networks and 24 APs, got %d and %d", len(netsA), len(apsA))
	}

	for i := range netsA {
		if *netsA[i] != *netsB[i] {
			t.Errorf("network %d differs between identical seeds:\n%+v\n%+v", i, *netsA[i], *netsB[i])
		}
	}
	for i := range apsA {
		if *apsA[i] != *apsB[i] {
			t.Errorf("access point %d differs between identical seeds:\n%+v\n%+v", i, *apsA[i], *apsB[i])
		}
	}
}

func TestGenerateFleet_SeedChangesIdentity(t *testing.T) {
	netsA, _ := NewGenerator(42).GenerateFleet(1, 1)
	netsB, _ := NewGenerator(43).GenerateFleet(1, 1)

	if netsA[0].ID == netsB[0].ID {
		t.Error("different seeds must produce different network identities")
	}
}

func TestGenerateFleet_SmallerFleetIsPrefix(t *testing.T) {
	netsSmall, apsSmall := NewGenerator(42).GenerateFleet(3, 5)
	netsLarge, apsLarge := NewGenerator(42).GenerateFleet(6, 5)

	for i := range netsSmall {
		if *netsSmall[i] != *netsLarge[i] {
			t.Errorf("network %d should match between fleet sizes", i)
		}
	}
	for i := range apsSmall {
		if *apsSmall[i] != *apsLarge[i] {
			t.Errorf("access point %d should match between fleet sizes", i)
		}
	}
}

func TestGenerateFleet_ReferentialIntegrity(t *testing.T) {
	nets, aps := NewGenerator(42).GenerateFleet(5, 8)

	networkIDs := make(map[string]bool, len(nets))
	for _, net := range nets {
		networkIDs[net.ID.String()] = true
	}

	for _, ap := range aps {
		if !networkIDs[ap.NetworkID.String()] {
			t.Errorf("access point %s references unknown network %s", ap.Name, ap.NetworkID)
		}
	}
}

func TestGenerateFleet_FieldSanity(t *testing.T) {
	nets, aps := NewGenerator(42).GenerateFleet(8, 10)

	validIndustries := make(map[string]bool)
	for _, ind := range models.Industries() {
		validIndustries[ind] = true
	}

	seenIDs := make(map[string]bool)
	for _, net := range nets {
		if net.Name == "" || net.Customer == "" {
			t.Errorf("network %s missing name or customer", net.ID)
		}
		if !validIndustries[net.Industry] {
			t.Errorf("network %s has unknown industry %q", net.Name, net.Industry)
		}
		if net.SLATarget <= 0 || net.SLATarget > 100 {
			t.Errorf("network %s has implausible SLA target %v", net.Name, net.SLATarget)
		}
		if seenIDs[net.ID.String()] {
			t.Errorf("duplicate network id %s", net.ID)
		}
		seenIDs[net.ID.String()] = true
	}

	seenMACs := make(map[string]bool)
	for _, ap := range aps {
		if !macPattern.MatchString(ap.MACAddress) {
			t.Errorf("access point %s has malformed MAC %q", ap.Name, ap.MACAddress)
		}
		if ap.MaxClients <= 0 {
			t.Errorf("access point %s has nonpositive capacity %d", ap.Name, ap.MaxClients)
		}
		if ap.Model == "" || ap.Manufacturer == "" || ap.Firmware == "" {
			t.Errorf("access point %s missing hardware identity", ap.Name)
		}
		if ap.Floor < 1 || ap.Floor > 5 {
			t.Errorf("access point %s on implausible floor %d", ap.Name, ap.Floor)
		}
		if seenIDs[ap.ID.String()] {
			t.Errorf("duplicate id %s", ap.ID)
		}
		seenIDs[ap.ID.String()] = true
		seenMACs[ap.MACAddress] = true
	}
}

func TestGenerateFleet_CyclesCustomerRoster(t *testing.T) {
	nets, _ := NewGenerator(42).GenerateFleet(len(demoCustomers)+2, 1)

	first := nets[0]
	wrapped := nets[len(demoCustomers)]

	if first.Customer == wrapped.Customer {
		t.Error("wrapped customer should carry a cycle suffix")
	}
	if first.Industry != wrapped.Industry {
		t.Error("wrapped customer should keep its roster industry")
	}
}

func TestSiteCode(t *testing.T) {
	tests := []struct {
		city string
		want string
	}{
		{"New York", "NEW"},
		{"Oslo", "OSL"},
		{"San Diego", "SAN"},
		{"Zurich", "ZUR"},
	}
	for _, tt := range tests {
		if got := siteCode(tt.city); got != tt.want {
			t.Errorf("siteCode(%q) = %q, want %q", tt.city, got, tt.want)
		}
	}
}
