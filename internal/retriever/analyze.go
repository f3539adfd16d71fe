// Package retriever classifies a search query, picks a scoring strategy for
// its complexity bucket, scores every candidate fact, and greedily selects a
// token-bounded subset to return.
package retriever

import (
	"regexp"
	"strings"

	"github.com/wardenlabs/atomica/pkg/types"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"day": true, "get": true, "has": true, "him": true, "his": true,
	"man": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "boy": true,
	"did": true, "its": true, "let": true, "put": true, "say": true,
	"she": true, "too": true, "use": true, "with": true, "that": true,
	"this": true, "from": true, "have": true, "which": true, "about": true,
}

var temporalLexicon = map[string]bool{
	"recent": true, "lately": true, "yesterday": true, "today": true,
	"last": true, "this": true, "next": true, "ago": true,
	"before": true, "after": true, "when": true,
}

var reasoningLexicon = map[string]bool{
	"why": true, "how": true, "explain": true, "compare": true,
	"difference": true, "relationship": true, "cause": true,
	"effect": true, "reason": true, "analysis": true,
}

var topicMarkers = []string{"about", "regarding", "concerning", "related to"}

var capitalizedRun = regexp.MustCompile(`[A-Z][a-z]+(?: [A-Z][a-z]+)*`)

// Analyze performs deterministic query analysis: no LLM call is made.
func Analyze(query string) types.QueryAnalysis {
	words := strings.Fields(strings.ToLower(query))

	a := types.QueryAnalysis{
		Raw:       query,
		WordCount: len(words),
		Entities:  dedupStrings(capitalizedRun.FindAllString(query, -1)),
	}

	for _, w := range words {
		trimmed := strings.Trim(w, ".,!?;:\"'")
		if len(trimmed) > 2 && !stopWords[trimmed] {
			a.Keywords = append(a.Keywords, trimmed)
		}
		if temporalLexicon[trimmed] {
			a.Temporal = true
		}
		if reasoningLexicon[trimmed] {
			a.RequiresReasoning = true
		}
	}

	a.Topics = extractTopics(words)
	a.Complexity = classify(a)

	return a
}

// extractTopics returns the three words following any topic marker phrase.
func extractTopics(words []string) []string {
	var topics []string
	for i := 0; i < len(words); i++ {
		markerLen := 0
		for _, marker := range topicMarkers {
			markerWords := strings.Fields(marker)
			if i+len(markerWords) > len(words) {
				continue
			}
			if strings.Join(words[i:i+len(markerWords)], " ") == marker {
				markerLen = len(markerWords)
				break
			}
		}
		if markerLen == 0 {
			continue
		}
		start := i + markerLen
		end := start + 3
		if end > len(words) {
			end = len(words)
		}
		topics = append(topics, words[start:end]...)
		i = end - 1
	}
	return dedupStrings(topics)
}

func classify(a types.QueryAnalysis) types.Complexity {
	switch {
	case a.RequiresReasoning || a.WordCount > 15 || len(a.Topics) > 0:
		return types.ComplexityComplex
	case a.WordCount > 8 || len(a.Entities) > 2 || a.Temporal:
		return types.ComplexityModerate
	default:
		return types.ComplexitySimple
	}
}

func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
