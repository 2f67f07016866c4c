package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that may appear at the start of LLM responses.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// thinkContentPattern extracts the content inside <think>...</think> tags.
var thinkContentPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// sqlFencePattern matches a ```sql fenced code block.
var sqlFencePattern = regexp.MustCompile("(?s)```sql\\s*\\n?(.*?)```")

// anyFencePattern matches any fenced code block.
var anyFencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// ExtractThinking extracts the content from <think>...</think> tags in an LLM response.
// Returns empty string if no thinking tags are found.
func ExtractThinking(response string) string {
	matches := thinkContentPattern.FindStringSubmatch(response)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// StripThinking removes a leading <think>...</think> block.
func StripThinking(response string) string {
	return thinkTagPattern.ReplaceAllString(response, "")
}

// ExtractSQL pulls a SQL statement out of an LLM response. It prefers a
// ```sql fence, then any fence, then the bare response if it reads as a
// query. Models that answer honestly with prose ("I cannot...") fail
// extraction rather than execute as garbage SQL.
func ExtractSQL(response string) (string, error) {
	cleaned := StripThinking(response)

	if m := sqlFencePattern.FindStringSubmatch(cleaned); len(m) >= 2 {
		return strings.TrimSpace(m[1]), nil
	}
	if m := anyFencePattern.FindStringSubmatch(cleaned); len(m) >= 2 {
		candidate := strings.TrimSpace(m[1])
		if looksLikeSQL(candidate) {
			return candidate, nil
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if looksLikeSQL(trimmed) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no SQL found in response")
}

func looksLikeSQL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "select") || strings.HasPrefix(lower, "with")
}

// ExtractJSON extracts JSON content from an LLM response that may contain
// <think> tags, markdown code blocks, or other formatting.
func ExtractJSON(response string) (string, error) {
	cleaned := StripThinking(response)

	// Find the first occurrence of { or [ to determine JSON type
	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if jsonStr, ok := extractBalancedJSON(cleaned, '{', '}'); ok {
			if json.Valid([]byte(jsonStr)) {
				return jsonStr, nil
			}
		}
	}

	if arrStart >= 0 {
		if jsonStr, ok := extractBalancedJSON(cleaned, '[', ']'); ok {
			if json.Valid([]byte(jsonStr)) {
				return jsonStr, nil
			}
		}
	}

	// Last resort: check if the entire cleaned response is valid JSON
	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalancedJSON finds the first balanced JSON structure starting with openChar.
// It handles nested structures by counting bracket depth.
func extractBalancedJSON(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into the target.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
