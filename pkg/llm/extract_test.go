package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
		wantErr  bool
	}{
		{
			name:     "sql fence",
			response: "Here is the query:\n```sql\nSELECT name FROM wifi.networks\n```\nLet me know if you need more.",
			expected: "SELECT name FROM wifi.networks",
		},
		{
			name:     "generic fence with sql inside",
			response: "```\nSELECT COUNT(*) FROM wifi.access_points\n```",
			expected: "SELECT COUNT(*) FROM wifi.access_points",
		},
		{
			name:     "bare select",
			response: "SELECT ap_id, AVG(rssi_dbm) FROM wifi.qos_facts GROUP BY ap_id",
			expected: "SELECT ap_id, AVG(rssi_dbm) FROM wifi.qos_facts GROUP BY ap_id",
		},
		{
			name:     "bare cte",
			response: "WITH recent AS (SELECT * FROM wifi.qos_facts) SELECT COUNT(*) FROM recent",
			expected: "WITH recent AS (SELECT * FROM wifi.qos_facts) SELECT COUNT(*) FROM recent",
		},
		{
			name: "think tags stripped",
			response: `<think>
The user wants network names. That is wifi.networks.name.
</think>
` + "```sql\nSELECT name FROM wifi.networks\n```",
			expected: "SELECT name FROM wifi.networks",
		},
		{
			name:     "prose refusal fails",
			response: "I cannot answer that question with the available tables.",
			wantErr:  true,
		},
		{
			name:     "generic fence with prose fails",
			response: "```\nThis is not a query.\n```",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSQL(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain object",
			response: `{"answer": "ok"}`,
			expected: `{"answer": "ok"}`,
		},
		{
			name:     "object with surrounding prose",
			response: "Sure! Here you go: {\"answer\": \"ok\"} Hope that helps.",
			expected: `{"answer": "ok"}`,
		},
		{
			name:     "nested braces",
			response: `{"outer": {"inner": [1, 2, 3]}}`,
			expected: `{"outer": {"inner": [1, 2, 3]}}`,
		},
		{
			name:     "braces inside strings",
			response: `{"sql": "SELECT '{' FROM t"}`,
			expected: `{"sql": "SELECT '{' FROM t"}`,
		},
		{
			name:     "array response",
			response: `The values are [1, 2, 3] as requested.`,
			expected: `[1, 2, 3]`,
		},
		{
			name:     "think tags stripped",
			response: "<think>reasoning here</think>{\"answer\": \"ok\"}",
			expected: `{"answer": "ok"}`,
		},
		{
			name:     "no json",
			response: "I could not produce a result.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type answer struct {
		SQL        string `json:"sql"`
		Confidence int    `json:"confidence"`
	}

	got, err := ParseJSONResponse[answer](`Here: {"sql": "SELECT 1", "confidence": 90}`)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got.SQL)
	assert.Equal(t, 90, got.Confidence)

	_, err = ParseJSONResponse[answer](`{"sql": 42}`)
	require.Error(t, err)
}

func TestExtractThinking(t *testing.T) {
	assert.Equal(t, "step one", ExtractThinking("<think>step one</think>answer"))
	assert.Equal(t, "", ExtractThinking("no tags here"))
}
