package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wardenlabs/atomica/pkg/types"
)

func TestDedup_RemovesExactDuplicatesKeepingFirst(t *testing.T) {
	a := &types.AtomicFact{ID: "a", Statement: "Alice met Bob", Entities: []string{"Bob"}, Persons: []string{"Alice"}}
	b := &types.AtomicFact{ID: "b", Statement: "alice met bob", Entities: []string{"Bob"}, Persons: []string{"Alice"}}

	out := Dedup([]*types.AtomicFact{a, b})
	assert.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestDedup_DifferentEntitySetsAreDistinct(t *testing.T) {
	a := &types.AtomicFact{ID: "a", Statement: "same text", Entities: []string{"X"}}
	b := &types.AtomicFact{ID: "b", Statement: "same text", Entities: []string{"Y"}}

	out := Dedup([]*types.AtomicFact{a, b})
	assert.Len(t, out, 2)
}

func TestDedup_CollapsesInternalWhitespace(t *testing.T) {
	a := &types.AtomicFact{ID: "a", Statement: "Alice  met   Bob"}
	b := &types.AtomicFact{ID: "b", Statement: "Alice met Bob"}

	out := Dedup([]*types.AtomicFact{a, b})
	assert.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestDedup_EntityOrderDoesNotMatter(t *testing.T) {
	a := &types.AtomicFact{ID: "a", Statement: "x", Entities: []string{"A", "B"}}
	b := &types.AtomicFact{ID: "b", Statement: "x", Entities: []string{"B", "A"}}

	out := Dedup([]*types.AtomicFact{a, b})
	assert.Len(t, out, 1)
}
