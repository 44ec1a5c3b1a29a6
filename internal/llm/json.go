package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty LLM response")

// ParseJSONResponse parses a JSON object from an LLM response, handling
// markdown code fences and prose around the object.
func ParseJSONResponse(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	// Some models wrap the object in a sentence.
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start > 0 && end > start {
		text = text[start : end+1]
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parsing LLM response as JSON: %w", err)
	}
	return result, nil
}

// String returns m[key] when it is a non-empty string.
func String(m map[string]any, key string) (string, bool) {
	v, ok := m[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
