package masking

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/netsight-ai/netsight-engine/pkg/models"
)

// category describes one class of sensitive column the detector looks
// for, with the policy it would suggest.
type category struct {
	name          string
	pattern       *regexp.Regexp
	suggestedType string
	keepSuffix    int
	confidence    float64
	reason        string
}

// Detector scans column names for values that likely need a masking
// policy. It works off names only, never data, so it is safe to run
// against any warehouse the engine can introspect.
type Detector struct {
	categories []category
}

// NewDetector returns a detector covering credentials, network
// identifiers, and common PII column names.
func NewDetector() *Detector {
	return &Detector{
		categories: []category{
			{
				name:          "credential",
				pattern:       regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|token|credential|private[_-]?key)`),
				suggestedType: models.MaskFull,
				confidence:    0.95,
				reason:        "column name matches a credential pattern",
			},
			{
				name:          "mac_address",
				pattern:       regexp.MustCompile(`(?i)(mac[_-]?address|bssid|hw[_-]?addr|hardware[_-]?addr|(^|_)mac($|_))`),
				suggestedType: models.MaskPartial,
				keepSuffix:    5,
				confidence:    0.9,
				reason:        "column name matches a MAC address pattern",
			},
			{
				name:          "contact",
				pattern:       regexp.MustCompile(`(?i)(email|e[_-]mail|phone|mobile|contact)`),
				suggestedType: models.MaskFull,
				confidence:    0.9,
				reason:        "column name matches a contact detail pattern",
			},
			{
				name:          "serial",
				pattern:       regexp.MustCompile(`(?i)(serial[_-]?(number|no)?$|(^|_)sn($|_)|imei)`),
				suggestedType: models.MaskHash,
				confidence:    0.85,
				reason:        "column name matches a device serial pattern",
			},
			{
				name:          "ip_address",
				pattern:       regexp.MustCompile(`(?i)(ip[_-]?address|ipv[46]|(^|_)ip($|_))`),
				suggestedType: models.MaskHash,
				confidence:    0.8,
				reason:        "column name matches an IP address pattern",
			},
			{
				name:          "customer",
				pattern:       regexp.MustCompile(`(?i)(customer|tenant|account[_-]?name|company)`),
				suggestedType: models.MaskFull,
				confidence:    0.7,
				reason:        "column name suggests a customer identity",
			},
			{
				name:          "location",
				pattern:       regexp.MustCompile(`(?i)(street|address|gps|latitude|longitude|(^|_)lat($|_)|(^|_)lon(g?)($|_)|geo[_-]?coord)`),
				suggestedType: models.MaskFull,
				confidence:    0.6,
				reason:        "column name suggests a physical location",
			},
		},
	}
}

// DefaultDetector is shared; the category list is immutable after
// construction so concurrent use is fine.
var DefaultDetector = NewDetector()

// Match returns the first category the column name falls under.
// Categories are ordered most to least specific, so a column like
// api_key_serial reports as credential, not serial.
func (d *Detector) Match(columnName string) (string, bool) {
	for _, c := range d.categories {
		if c.pattern.MatchString(columnName) {
			return c.name, true
		}
	}
	return "", false
}

// TableColumn identifies one introspected column to scan.
type TableColumn struct {
	Schema string
	Table  string
	Column string
}

// Scan checks every column against the category list and returns a
// suggestion per match, sorted by confidence descending then by
// qualified name. Columns already covered by a policy are skipped.
func (d *Detector) Scan(columns []TableColumn, existing []*models.MaskingPolicy) []models.MaskingSuggestion {
	covered := make(map[string]bool, len(existing))
	for _, p := range existing {
		covered[policyKey(p.SchemaName, p.TableName, p.ColumnName)] = true
	}

	var suggestions []models.MaskingSuggestion
	for _, col := range columns {
		if covered[policyKey(col.Schema, col.Table, col.Column)] {
			continue
		}
		for _, c := range d.categories {
			if !c.pattern.MatchString(col.Column) {
				continue
			}
			suggestions = append(suggestions, models.MaskingSuggestion{
				SchemaName:    col.Schema,
				TableName:     col.Table,
				ColumnName:    col.Column,
				Category:      c.name,
				Confidence:    c.confidence,
				SuggestedType: c.suggestedType,
				Reason:        c.reason,
			})
			break
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		ki := policyKey(suggestions[i].SchemaName, suggestions[i].TableName, suggestions[i].ColumnName)
		kj := policyKey(suggestions[j].SchemaName, suggestions[j].TableName, suggestions[j].ColumnName)
		return ki < kj
	})
	return suggestions
}

// SuggestedPolicy converts a suggestion into the policy it describes.
func (d *Detector) SuggestedPolicy(s models.MaskingSuggestion) *models.MaskingPolicy {
	keep := 0
	for _, c := range d.categories {
		if c.name == s.Category {
			keep = c.keepSuffix
			break
		}
	}
	return &models.MaskingPolicy{
		SchemaName:  s.SchemaName,
		TableName:   s.TableName,
		ColumnName:  s.ColumnName,
		MaskingType: s.SuggestedType,
		KeepSuffix:  keep,
		Description: s.Reason,
	}
}

func policyKey(schema, table, column string) string {
	return fmt.Sprintf("%s.%s.%s", schema, table, column)
}
