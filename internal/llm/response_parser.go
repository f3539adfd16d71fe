package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FactResponse is a single fact as the extraction model reports it, before
// defaulting and confidence gating are applied.
type FactResponse struct {
	Statement  string   `json:"statement"`
	Keywords   []string `json:"keywords"`
	Persons    []string `json:"persons"`
	Entities   []string `json:"entities"`
	Topic      string   `json:"topic,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Location   string   `json:"location,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// FactExtractionResponse is the top-level JSON object the extraction prompt
// asks the model to return.
type FactExtractionResponse struct {
	Facts []FactResponse `json:"facts"`
}

// ExtractJSON pulls the first complete JSON object out of text, stripping
// markdown code fences and any commentary a model adds despite instructions
// to return JSON only.
func ExtractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString {
			switch ch {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text
}

// ParseFactExtractionResponse parses the extraction model's raw text into
// FactResponse entries. It returns an error only when the JSON itself is
// malformed; individual facts are validated and defaulted by the caller
// (internal/extractor), not here.
func ParseFactExtractionResponse(raw string) ([]FactResponse, error) {
	clean := ExtractJSON(raw)

	var resp FactExtractionResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return nil, fmt.Errorf("llm: failed to parse fact extraction response: %w", err)
	}
	return resp.Facts, nil
}
