package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/atomica/pkg/types"
)

func TestScore_NewEntitiesRaiseEntropy(t *testing.T) {
	window := &types.ConversationWindow{
		Turns: []types.Turn{
			{Speaker: "Alice", Content: "Bob and Carol are meeting in Paris next week."},
		},
	}
	Score(window, nil, 0.7, 0.2, nil)
	require.NotNil(t, window.Entropy)
	assert.True(t, window.ShouldProcess)
}

func TestScore_KnownEntitiesOnlyLowersNovelty(t *testing.T) {
	previous := []*types.AtomicFact{
		{Statement: "prior", Entities: []string{"Paris"}, Persons: []string{"Alice", "Bob", "Carol"}},
	}
	window := &types.ConversationWindow{
		Turns: []types.Turn{
			{Speaker: "Alice", Content: "Bob and Carol are meeting in Paris next week."},
		},
	}
	Score(window, previous, 0.7, 0.99, nil)
	assert.False(t, window.ShouldProcess)
}

func TestScore_TiesAreKept(t *testing.T) {
	window := &types.ConversationWindow{
		Turns: []types.Turn{{Speaker: "Alice", Content: "hello"}},
	}
	Score(window, []*types.AtomicFact{{Persons: []string{"Alice"}}}, 1.0, 0, nil)
	assert.True(t, window.ShouldProcess)
}

func TestScore_EmptyWindowHasZeroNovelty(t *testing.T) {
	window := &types.ConversationWindow{}
	Score(window, nil, 1.0, 0.01, nil)
	assert.False(t, window.ShouldProcess)
}

type stubEmbeddings struct {
	vectors map[string][]float64
}

func (s *stubEmbeddings) Embed(text string) ([]float64, error) {
	return s.vectors[text], nil
}

func (s *stubEmbeddings) Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func TestSemanticDivergence_UsesEmbeddingsWhenConfigured(t *testing.T) {
	window := &types.ConversationWindow{
		Turns: []types.Turn{{Speaker: "Alice", Content: "identical text "}},
	}
	previous := []*types.AtomicFact{{Statement: "identical text "}}
	embeddings := &stubEmbeddings{vectors: map[string][]float64{
		"identical text  ": {1, 0},
		"identical text ":  {1, 0},
	}}
	div := semanticDivergence(window, previous, embeddings)
	assert.InDelta(t, 0, div, 0.01)
}

func TestSemanticDivergence_FallsBackWithoutEmbeddings(t *testing.T) {
	window := &types.ConversationWindow{}
	previous := []*types.AtomicFact{{Statement: "x"}}
	assert.Equal(t, 0.5, semanticDivergence(window, previous, nil))
}
