package extractor

import (
	"sort"
	"strings"

	"github.com/wardenlabs/atomica/pkg/types"
)

// Dedup removes facts whose (normalized statement, sorted entities, sorted
// persons) tuple has already been seen, keeping the first occurrence.
func Dedup(facts []*types.AtomicFact) []*types.AtomicFact {
	seen := make(map[string]bool, len(facts))
	out := make([]*types.AtomicFact, 0, len(facts))

	for _, f := range facts {
		key := dedupKey(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}

	return out
}

func dedupKey(f *types.AtomicFact) string {
	entities := append([]string{}, f.Entities...)
	sort.Strings(entities)
	persons := append([]string{}, f.Persons...)
	sort.Strings(persons)

	return strings.ToLower(strings.Join(strings.Fields(f.Statement), " ")) + "|" +
		strings.Join(entities, ",") + "|" +
		strings.Join(persons, ",")
}
