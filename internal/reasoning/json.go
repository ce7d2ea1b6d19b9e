package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON strips a ```json fenced code block (if present) and, when the
// model emits more than one JSON object back to back, keeps only the first
// complete one. Grounded on original_source's parse_llm_json_response.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	depth := 0
	for i, r := range text {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return text
}

// coerceSummary normalizes the score node's summary field per spec §4.11:
// a list becomes its first element, a non-string scalar is string-cast, and
// anything empty or unparseable falls back to def.
func coerceSummary(raw json.RawMessage, def string) string {
	if len(raw) == 0 {
		return def
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return def
		}
		return s
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return def
		}
		return coerceSummary(list[0], def)
	}

	var scalar interface{}
	if err := json.Unmarshal(raw, &scalar); err == nil && scalar != nil {
		return fmt.Sprint(scalar)
	}

	return def
}
