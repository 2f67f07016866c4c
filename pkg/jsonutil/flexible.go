package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases
// where producers (LLMs, device firmware) emit numbers or booleans instead of
// strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// Try number
	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	// Try boolean
	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Fallback: return raw string representation
	return string(raw)
}

// FlexibleFloat64Value converts a json.RawMessage to a float64. Access point
// firmware is inconsistent about numeric metric fields; some models report
// rssi as the string "-62" rather than a number. Returns ok=false for null,
// empty, or unparseable values.
func FlexibleFloat64Value(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal, true
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}

	return 0, false
}

// FlexibleIntValue converts a json.RawMessage to an int, accepting numeric
// strings and truncating fractional values. Returns ok=false for null, empty,
// or unparseable values.
func FlexibleIntValue(raw json.RawMessage) (int, bool) {
	f, ok := FlexibleFloat64Value(raw)
	if !ok {
		return 0, false
	}
	return int(f), true
}
