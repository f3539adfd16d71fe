package entropy

import (
	"regexp"
	"strings"

	"github.com/wardenlabs/atomica/pkg/types"
)

// capitalizedRun matches runs of one or more capitalized words, the cheap
// proxy this package uses for "probably a named entity" without calling a
// model just to window a transcript.
var capitalizedRun = regexp.MustCompile(`[A-Z][a-z]+(?: [A-Z][a-z]+)*`)

// WindowEntities returns the capitalized-run matches across every turn in
// window plus each turn's speaker name, deduplicated.
func WindowEntities(window *types.ConversationWindow) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, turn := range window.Turns {
		add(turn.Speaker)
		for _, match := range capitalizedRun.FindAllString(turn.Content, -1) {
			add(match)
		}
	}

	return out
}

// NewEntities returns the entries of candidates that do not case-foldingly
// appear in the union of entities and persons carried by previousFacts.
func NewEntities(candidates []string, previousFacts []*types.AtomicFact) []string {
	known := make(map[string]bool)
	for _, f := range previousFacts {
		for _, e := range f.Entities {
			known[strings.ToLower(e)] = true
		}
		for _, p := range f.Persons {
			known[strings.ToLower(p)] = true
		}
	}

	var fresh []string
	for _, c := range candidates {
		if !known[strings.ToLower(c)] {
			fresh = append(fresh, c)
		}
	}
	return fresh
}
