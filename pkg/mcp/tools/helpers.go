package tools

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
// This is a common helper used across MCP tool parameter validation.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return val
}

// getOptionalFloat extracts an optional float argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	return val, ok
}

// getOptionalObject extracts an optional object argument from the request.
// Agents sometimes send objects as stringified JSON; both forms are
// accepted.
func getOptionalObject(req mcp.CallToolRequest, key string) map[string]any {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := args[key]
	if !ok {
		return nil
	}
	if s, isString := raw.(string); isString {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil
		}
		return parsed
	}
	val, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return val
}

// getOptionalStringArray extracts an optional string array argument from
// the request. Agents sometimes send arrays as stringified JSON; both
// forms are accepted. Non-string elements are skipped.
func getOptionalStringArray(req mcp.CallToolRequest, key string) []string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := args[key]
	if !ok {
		return nil
	}
	if s, isString := raw.(string); isString {
		var parsed []any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil
		}
		raw = parsed
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range items {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
