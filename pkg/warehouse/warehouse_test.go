package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/config"
)

func TestEffectiveLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero defaults to max", limit: 0, want: MaxQueryLimit},
		{name: "negative defaults to max", limit: -5, want: MaxQueryLimit},
		{name: "within bounds passes through", limit: 100, want: 100},
		{name: "at max passes through", limit: MaxQueryLimit, want: MaxQueryLimit},
		{name: "above max clamps", limit: MaxQueryLimit + 1, want: MaxQueryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, effectiveLimit(tt.limit))
		})
	}
}

func TestNewFromConfig_DefaultsToPostgres(t *testing.T) {
	cfg := &config.WarehouseConfig{Adapter: ""}

	adapter, err := NewFromConfig(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, adapter.Dialect())
}

func TestNewFromConfig_UnknownAdapter(t *testing.T) {
	cfg := &config.WarehouseConfig{Adapter: "duckdb"}

	_, err := NewFromConfig(cfg, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported warehouse adapter")
}

func TestNewFromConfig_MSSQLRequiresHost(t *testing.T) {
	cfg := &config.WarehouseConfig{Adapter: DialectMSSQL}

	_, err := NewFromConfig(cfg, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MSSQL_HOST")
}

func TestConvertPositionalParams(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single parameter",
			input: "SELECT * FROM wifi.networks WHERE industry = $1",
			want:  "SELECT * FROM wifi.networks WHERE industry = @p1",
		},
		{
			name:  "multiple parameters",
			input: "SELECT * FROM wifi.qos_facts WHERE ts >= $1 AND ts < $2",
			want:  "SELECT * FROM wifi.qos_facts WHERE ts >= @p1 AND ts < @p2",
		},
		{
			name:  "two digit parameter",
			input: "WHERE a = $1 AND k = $12",
			want:  "WHERE a = @p1 AND k = @p12",
		},
		{
			name:  "repeated parameter",
			input: "WHERE start >= $1 OR finish <= $1",
			want:  "WHERE start >= @p1 OR finish <= @p1",
		},
		{
			name:  "no parameters unchanged",
			input: "SELECT COUNT(*) FROM wifi.access_points",
			want:  "SELECT COUNT(*) FROM wifi.access_points",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertPositionalParams(tt.input))
		})
	}
}

func TestMSSQLConnectionString(t *testing.T) {
	cfg := &config.MSSQLConfig{
		Host:     "warehouse.example.com",
		Port:     1433,
		User:     "netsight",
		Password: "s3cret",
		Database: "telemetry",
		Encrypt:  "disable",
	}

	connStr := mssqlConnectionString(cfg)
	assert.Contains(t, connStr, "sqlserver://")
	assert.Contains(t, connStr, "warehouse.example.com:1433")
	assert.Contains(t, connStr, "database=telemetry")
	assert.Contains(t, connStr, "encrypt=disable")
	assert.NotContains(t, connStr, "s3cret ", "password should be URL-encoded, not raw with spaces")
}

func TestMapSQLServerType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"INT", "INTEGER"},
		{"int", "INTEGER"},
		{"BIGINT", "BIGINT"},
		{"NVARCHAR", "VARCHAR"},
		{"DATETIME2", "TIMESTAMP"},
		{"DATETIMEOFFSET", "TIMESTAMP WITH TIME ZONE"},
		{"BIT", "BOOLEAN"},
		{"UNIQUEIDENTIFIER", "UUID"},
		{"FLOAT", "DOUBLE PRECISION"},
		{"GEOGRAPHY", "GEOGRAPHY"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, mapSQLServerType(tt.input))
		})
	}
}

func TestIsStringType(t *testing.T) {
	assert.True(t, isStringType("NVARCHAR"))
	assert.True(t, isStringType("varchar"))
	assert.True(t, isStringType("TEXT"))
	assert.False(t, isStringType("INT"))
	assert.False(t, isStringType("VARBINARY"))
}

func TestPGTypeNameFromOID(t *testing.T) {
	tests := []struct {
		oid  uint32
		want string
	}{
		{16, "BOOL"},
		{20, "INT8"},
		{25, "TEXT"},
		{701, "FLOAT8"},
		{829, "MACADDR"},
		{869, "INET"},
		{1114, "TIMESTAMP"},
		{1184, "TIMESTAMPTZ"},
		{2950, "UUID"},
		{3802, "JSONB"},
		{99999, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, pgTypeNameFromOID(tt.oid))
		})
	}
}
