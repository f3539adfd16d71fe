package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/internal/store/sqlite"
	"github.com/wardenlabs/atomica/pkg/types"
)

func newTestPipeline(t *testing.T, extractFn func(ctx context.Context, prompt string) (string, error)) *Pipeline {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultPipelineConfig()
	cfg.SemanticCompression.MinConfidence = 0
	cfg.SemanticCompression.EntropyThreshold = 0
	cfg.BackgroundConsolidation = false

	consolidateFn := func(ctx context.Context, prompt string) (string, error) {
		return "consolidated statement", nil
	}

	p, err := New(st, cfg, extractFn, consolidateFn, nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)

	return p
}

func sampleTurns(n int) []types.Turn {
	var out []types.Turn
	for i := 0; i < n; i++ {
		out = append(out, types.Turn{Speaker: "Alice", Content: "Alice talked about Paris in message number"})
	}
	return out
}

func TestProcessTranscript_ExtractsAndPersistsFacts(t *testing.T) {
	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[{"statement":"Alice visited Paris","entities":["Paris"],"persons":["Alice"],"confidence":0.9}]}`, nil
	}
	p := newTestPipeline(t, extractFn)

	summary, err := p.ProcessTranscript(context.Background(), sampleTurns(10), "session-1")
	require.NoError(t, err)
	assert.Greater(t, summary.WindowsCreated, 0)
	assert.Greater(t, summary.FactsExtracted, 0)
	assert.NotNil(t, summary.Stat)
}

func TestProcessTranscript_NotStartedErrors(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	cfg := config.DefaultPipelineConfig()
	p, err := New(st, cfg, nil, nil, nil)
	require.NoError(t, err)

	_, err = p.ProcessTranscript(context.Background(), sampleTurns(1), "s")
	assert.Error(t, err)
}

func TestRunConsolidation_ShortCircuitsBelowMinFacts(t *testing.T) {
	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[]}`, nil
	}
	p := newTestPipeline(t, extractFn)

	summary, err := p.RunConsolidation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.NewFacts)
}

func TestRunConsolidation_DoesNotMixLevelsOnSecondRun(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	cfg := config.DefaultPipelineConfig()
	cfg.BackgroundConsolidation = false
	cfg.Consolidation.MinFactsForCluster = 2
	cfg.Consolidation.SimilarityThreshold = 0.5
	cfg.Consolidation.MaxConsolidationLevel = 1

	consolidateFn := func(ctx context.Context, prompt string) (string, error) {
		return "consolidated statement", nil
	}

	p, err := New(st, cfg, nil, consolidateFn, nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	now := time.Now()
	level0 := []*types.AtomicFact{
		{ID: "a", Statement: "Alice visited Paris", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now, Confidence: 0.9},
		{ID: "b", Statement: "Alice booked a hotel in Paris", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now, Confidence: 0.8},
	}
	require.NoError(t, st.PutFacts(context.Background(), level0))

	summary, err := p.RunConsolidation(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.NewFacts)

	byLevel, err := st.CountByLevel(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, byLevel[1], "first run should have produced exactly one level-1 fact")

	more := []*types.AtomicFact{
		{ID: "c", Statement: "Bob visited Rome", Entities: []string{"Rome"}, Persons: []string{"Bob"}, Topic: "travel", Timestamp: &now, Confidence: 0.9},
		{ID: "d", Statement: "Bob booked a flight to Rome", Entities: []string{"Rome"}, Persons: []string{"Bob"}, Topic: "travel", Timestamp: &now, Confidence: 0.8},
	}
	require.NoError(t, st.PutFacts(context.Background(), more))

	// Even though a level-1 fact now exists in the store, the second run
	// must only see level-0 facts: FactsConsolidated counts exactly the
	// level-0 rows, never the level-1 fact the first run produced.
	summary, err = p.RunConsolidation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.FactsConsolidated)

	byLevel, err = st.CountByLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, byLevel[0])
	assert.GreaterOrEqual(t, byLevel[1], 1)
}

func TestRunConsolidation_PersistsResolvableClusterMembership(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	cfg := config.DefaultPipelineConfig()
	cfg.BackgroundConsolidation = false
	cfg.Consolidation.MinFactsForCluster = 2
	cfg.Consolidation.SimilarityThreshold = 0.5
	cfg.Consolidation.MaxConsolidationLevel = 1

	consolidateFn := func(ctx context.Context, prompt string) (string, error) {
		return "consolidated statement", nil
	}

	p, err := New(st, cfg, nil, consolidateFn, nil)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	now := time.Now()
	level0 := []*types.AtomicFact{
		{ID: "a", Statement: "Alice visited Paris", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now, Confidence: 0.9},
		{ID: "b", Statement: "Alice booked a hotel in Paris", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now, Confidence: 0.8},
	}
	require.NoError(t, st.PutFacts(context.Background(), level0))

	summary, err := p.RunConsolidation(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.NewFacts)

	byLevel, err := st.CountByLevel(context.Background())
	require.NoError(t, err)
	ancestor, err := st.GetFactsByLevel(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, ancestor, byLevel[1])
	require.Len(t, ancestor, 1)

	for _, f := range level0 {
		// The source rows were never mutated, per level=0 ⇒ parent_cluster_id=null.
		stored, err := st.GetFact(context.Background(), f.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Level)
		assert.Empty(t, stored.ParentClusterID)

		clusterID, err := st.GetClusterIDForFact(context.Background(), f.ID)
		require.NoError(t, err)

		resolved, err := st.GetFactByParentClusterID(context.Background(), clusterID)
		require.NoError(t, err)
		assert.Equal(t, ancestor[0].ID, resolved.ID)
	}
}

func TestSearch_ReturnsFactsAfterIngest(t *testing.T) {
	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[{"statement":"Alice visited Paris last spring","entities":["Paris"],"persons":["Alice"],"confidence":0.9}]}`, nil
	}
	p := newTestPipeline(t, extractFn)

	_, err := p.ProcessTranscript(context.Background(), sampleTurns(10), "session-1")
	require.NoError(t, err)

	result, err := p.Search(context.Background(), "Paris trip")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Facts)
}

func TestStats_ReflectsIngestedFacts(t *testing.T) {
	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[{"statement":"Alice visited Paris","entities":["Paris"],"persons":["Alice"],"confidence":0.9}]}`, nil
	}
	p := newTestPipeline(t, extractFn)

	_, err := p.ProcessTranscript(context.Background(), sampleTurns(10), "session-1")
	require.NoError(t, err)

	stats, err := p.Stats(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.TotalFacts, 0)
	assert.Equal(t, 2, stats.TotalWindows)
}

func TestStop_PreventsFurtherOperations(t *testing.T) {
	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[]}`, nil
	}
	p := newTestPipeline(t, extractFn)
	p.Stop()

	_, err := p.Search(context.Background(), "anything")
	assert.Error(t, err)
}
