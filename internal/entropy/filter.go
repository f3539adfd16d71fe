package entropy

import (
	"math"

	"github.com/wardenlabs/atomica/pkg/types"
)

// EmbeddingSource supplies the vectors needed to compute semantic
// divergence from an actual cosine distance; the Entropy Filter falls back
// to the constant 0.5 divergence when one isn't configured.
type EmbeddingSource interface {
	Embed(text string) ([]float64, error)
	Cosine(a, b []float64) float64
}

// Score scores window against previousFacts and records the result on the
// window (Entropy, ShouldProcess). alpha weights entity novelty against
// semantic divergence; threshold is the keep/drop cutoff, with ties kept.
//
// entity_novelty = |new_entities| / sqrt(sum_of_turn_content_lengths), 0 when
// the denominator is 0. semantic_divergence is 1 - cosine_similarity between
// the window's text and the statement of previousFacts[0] (the most recent
// fact, as Store.GetRecentFacts returns facts newest first) when embeddings
// is non-nil, else the constant 0.5.
func Score(window *types.ConversationWindow, previousFacts []*types.AtomicFact, alpha, threshold float64, embeddings EmbeddingSource) {
	candidates := WindowEntities(window)
	fresh := NewEntities(candidates, previousFacts)

	contentLen := window.ContentLength()
	var novelty float64
	if contentLen > 0 {
		novelty = float64(len(fresh)) / math.Sqrt(float64(contentLen))
	}

	divergence := semanticDivergence(window, previousFacts, embeddings)

	entropy := alpha*novelty + (1-alpha)*divergence
	window.Entropy = &entropy
	window.ShouldProcess = entropy >= threshold
}

func semanticDivergence(window *types.ConversationWindow, previousFacts []*types.AtomicFact, embeddings EmbeddingSource) float64 {
	if embeddings == nil || len(previousFacts) == 0 {
		return 0.5
	}

	prev := previousFacts[0]
	a, err := embeddings.Embed(windowText(window))
	if err != nil {
		return 0.5
	}
	b, err := embeddings.Embed(prev.Statement)
	if err != nil {
		return 0.5
	}

	return 1 - embeddings.Cosine(a, b)
}

func windowText(window *types.ConversationWindow) string {
	var total string
	for _, turn := range window.Turns {
		total += turn.Content + " "
	}
	return total
}
