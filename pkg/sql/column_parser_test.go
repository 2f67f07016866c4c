package sql

import (
	"reflect"
	"testing"
)

func TestParseSelectColumns(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string // expected column names, nil when parsing yields nothing
	}{
		{
			name: "simple columns",
			sql:  "SELECT network_id, network_name FROM wifi.networks",
			want: []string{"network_id", "network_name"},
		},
		{
			name: "as aliases",
			sql:  "SELECT network_name AS name, COUNT(*) AS ap_count FROM wifi.access_points GROUP BY network_name",
			want: []string{"name", "ap_count"},
		},
		{
			name: "implicit alias",
			sql:  "SELECT AVG(latency_ms) avg_latency FROM wifi.qos_facts",
			want: []string{"avg_latency"},
		},
		{
			name: "unaliased function call",
			sql:  "SELECT SUM(packet_loss_pct) FROM wifi.qos_facts",
			want: []string{"sum"},
		},
		{
			name: "table qualified columns",
			sql:  "SELECT n.network_name, a.ap_id FROM wifi.networks n JOIN wifi.access_points a ON a.network_id = n.network_id",
			want: []string{"network_name", "ap_id"},
		},
		{
			name: "function with multiple arguments",
			sql:  "SELECT COALESCE(quality_score, 0) AS score, ap_id FROM wifi.qos_facts",
			want: []string{"score", "ap_id"},
		},
		{
			name: "case expression",
			sql:  "SELECT CASE WHEN quality_score > 80 THEN 'good' ELSE 'poor' END FROM wifi.qos_facts WHERE ap_id = 1",
			want: []string{"case_result"},
		},
		{
			name: "select star",
			sql:  "SELECT * FROM wifi.networks",
			want: nil,
		},
		{
			name: "not a select",
			sql:  "EXPLAIN ANALYZE something",
			want: nil,
		},
		{
			name: "lowercase keywords",
			sql:  "select ap_id, ts from wifi.qos_facts where ts > now() - interval '1 day'",
			want: []string{"ap_id", "ts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := ParseSelectColumns(tt.sql)
			if err != nil {
				t.Fatalf("ParseSelectColumns(%q) error = %v", tt.sql, err)
			}

			var names []string
			for _, c := range cols {
				names = append(names, c.Name)
			}
			if !reflect.DeepEqual(names, tt.want) {
				t.Errorf("ParseSelectColumns(%q) names = %v, want %v", tt.sql, names, tt.want)
			}
		})
	}
}

func TestSplitSelectList(t *testing.T) {
	tests := []struct {
		clause string
		want   []string
	}{
		{"ap_id, ts", []string{"ap_id", " ts"}},
		{"COALESCE(score, 0), ap_id", []string{"COALESCE(score, 0)", " ap_id"}},
		{"ROUND(AVG(latency_ms), 2) AS avg_latency", []string{"ROUND(AVG(latency_ms), 2) AS avg_latency"}},
		{"single", []string{"single"}},
	}

	for _, tt := range tests {
		if got := splitSelectList(tt.clause); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitSelectList(%q) = %q, want %q", tt.clause, got, tt.want)
		}
	}
}

func TestParseColumnExpression(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"quality_score", "quality_score"},
		{"n.network_name", "network_name"},
		{"latency_ms AS latency", "latency"},
		{"SUM(tx_bytes) AS total_tx", "total_tx"},
		{"COUNT(*) total", "total"},
		{"MAX(signal_strength_dbm)", "max"},
		{"COALESCE(quality_score, 0)", "coalesce"},
		{`"QualityScore"`, "qualityscore"},
	}

	for _, tt := range tests {
		parsed := parseColumnExpression(tt.expr)
		if parsed.Name != tt.want {
			t.Errorf("parseColumnExpression(%q).Name = %q, want %q", tt.expr, parsed.Name, tt.want)
		}
		if parsed.Expr != tt.expr {
			t.Errorf("parseColumnExpression(%q).Expr = %q, want original", tt.expr, parsed.Expr)
		}
	}
}

func TestDeriveColumnName(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"ap_id", "ap_id"},
		{"wifi.networks.network_name", "network_name"},
		{"AVG(latency_ms)", "avg"},
		{"CASE WHEN x THEN 1 END", "case_result"},
		{"`backticked`", "backticked"},
		{"[bracketed]", "bracketed"},
	}

	for _, tt := range tests {
		if got := deriveColumnName(tt.expr); got != tt.want {
			t.Errorf("deriveColumnName(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}
