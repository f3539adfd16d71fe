package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wardenlabs/atomica/pkg/types"
)

func TestAnalyze_SimpleQuery(t *testing.T) {
	a := Analyze("cats")
	assert.Equal(t, types.ComplexitySimple, a.Complexity)
	assert.Contains(t, a.Keywords, "cats")
}

func TestAnalyze_ReasoningWordForcesComplex(t *testing.T) {
	a := Analyze("why did the project fail")
	assert.True(t, a.RequiresReasoning)
	assert.Equal(t, types.ComplexityComplex, a.Complexity)
}

func TestAnalyze_LongQueryForcesComplex(t *testing.T) {
	a := Analyze("one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen")
	assert.Equal(t, types.ComplexityComplex, a.Complexity)
}

func TestAnalyze_TopicMarkerExtractsFollowingWords(t *testing.T) {
	a := Analyze("tell me about the quarterly budget review")
	assert.Equal(t, []string{"the", "quarterly", "budget"}, a.Topics)
	assert.Equal(t, types.ComplexityComplex, a.Complexity)
}

func TestAnalyze_EntitiesAreCapitalizedRuns(t *testing.T) {
	a := Analyze("What did Alice Johnson say about Paris")
	assert.Contains(t, a.Entities, "Alice Johnson")
	assert.Contains(t, a.Entities, "Paris")
}

func TestAnalyze_TemporalWordSetsFlag(t *testing.T) {
	a := Analyze("what happened yesterday")
	assert.True(t, a.Temporal)
}

func TestAnalyze_ManyEntitiesForcesModerate(t *testing.T) {
	a := Analyze("Alice likes Bob and Carol likes Dave")
	assert.Len(t, a.Entities, 4)
	assert.Equal(t, types.ComplexityModerate, a.Complexity)
}
