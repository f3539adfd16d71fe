package retriever

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/pkg/types"
)

func defaultAdaptiveCfg() config.AdaptiveRetrievalConfig {
	return config.DefaultPipelineConfig().AdaptiveRetrieval
}

func TestScore_KeywordMatchRaisesScore(t *testing.T) {
	now := time.Now()
	fact := &types.AtomicFact{Statement: "Alice booked a hotel in Paris"}
	analysis := types.QueryAnalysis{Keywords: []string{"hotel", "paris"}}
	strategy := StrategyFor(types.ComplexitySimple, defaultAdaptiveCfg())

	score, reasons := Score(fact, analysis, strategy, now)
	assert.Greater(t, score, 0.0)
	assert.NotEmpty(t, reasons)
}

func TestScore_NoMatchYieldsWeakReason(t *testing.T) {
	now := time.Now()
	fact := &types.AtomicFact{Statement: "unrelated content"}
	analysis := types.QueryAnalysis{Keywords: []string{"nonexistent"}}
	strategy := StrategyFor(types.ComplexitySimple, defaultAdaptiveCfg())

	score, reasons := Score(fact, analysis, strategy, now)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, []string{"weak content overlap"}, reasons)
}

func TestScore_RecentTimestampBeatsOldOne(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Hour)
	old := now.Add(-80 * 24 * time.Hour)
	strategy := StrategyFor(types.ComplexitySimple, defaultAdaptiveCfg())
	analysis := types.QueryAnalysis{}

	recentScore, _ := Score(&types.AtomicFact{Timestamp: &recent}, analysis, strategy, now)
	oldScore, _ := Score(&types.AtomicFact{Timestamp: &old}, analysis, strategy, now)
	assert.Greater(t, recentScore, oldScore)
}

func TestScore_TemporalQueryRewardsRecentFact(t *testing.T) {
	now := time.Now()
	recent := now.Add(-2 * 24 * time.Hour)
	strategy := StrategyFor(types.ComplexityModerate, defaultAdaptiveCfg())
	analysis := types.QueryAnalysis{Temporal: true}

	score, reasons := Score(&types.AtomicFact{Timestamp: &recent}, analysis, strategy, now)
	assert.Contains(t, reasons, "temporal match")
	assert.Greater(t, score, 0.0)
}
