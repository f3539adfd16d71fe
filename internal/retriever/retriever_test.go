package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/internal/store"
	"github.com/wardenlabs/atomica/pkg/types"
)

type fakeSource struct {
	facts         map[string]*types.AtomicFact
	clusterOfFact map[string]string
}

func newFakeSource(facts ...*types.AtomicFact) *fakeSource {
	s := &fakeSource{
		facts:         make(map[string]*types.AtomicFact),
		clusterOfFact: make(map[string]string),
	}
	for _, f := range facts {
		s.facts[f.ID] = f
	}
	return s
}

// putClusterMembers records that every fact in factIDs was a member of
// clusterID, mirroring store.Store.PutClusterMembers.
func (s *fakeSource) putClusterMembers(clusterID string, factIDs ...string) {
	for _, id := range factIDs {
		s.clusterOfFact[id] = clusterID
	}
}

func (s *fakeSource) GetAllFacts(ctx context.Context) ([]*types.AtomicFact, error) {
	var out []*types.AtomicFact
	for _, f := range s.facts {
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeSource) GetFact(ctx context.Context, id string) (*types.AtomicFact, error) {
	if f, ok := s.facts[id]; ok {
		return f, nil
	}
	return nil, store.ErrNotFound
}

func (s *fakeSource) GetClusterIDForFact(ctx context.Context, factID string) (string, error) {
	if clusterID, ok := s.clusterOfFact[factID]; ok {
		return clusterID, nil
	}
	return "", store.ErrNotFound
}

func (s *fakeSource) GetFactByParentClusterID(ctx context.Context, clusterID string) (*types.AtomicFact, error) {
	for _, f := range s.facts {
		if f.ParentClusterID == clusterID {
			return f, nil
		}
	}
	return nil, store.ErrNotFound
}

func TestSearch_EmptyQueryIsInvalid(t *testing.T) {
	r := New(config.DefaultPipelineConfig().AdaptiveRetrieval)
	_, err := r.Search(context.Background(), "", newFakeSource())
	require.Error(t, err)
	assert.IsType(t, &types.QueryInvalidError{}, err)
}

func TestSearch_SelectsBestMatchFirst(t *testing.T) {
	now := time.Now()
	best := &types.AtomicFact{ID: "1", Statement: "Alice visited Paris last week", Entities: []string{"Paris"}, Timestamp: &now}
	worst := &types.AtomicFact{ID: "2", Statement: "unrelated content about gardening", Timestamp: &now}
	source := newFakeSource(best, worst)

	r := New(config.DefaultPipelineConfig().AdaptiveRetrieval)
	result, err := r.Search(context.Background(), "Paris trip", source)
	require.NoError(t, err)
	require.NotEmpty(t, result.Facts)
	assert.Equal(t, "1", result.Facts[0].Fact.ID)
}

func TestSearch_PrefersConsolidatedWhenAvailable(t *testing.T) {
	atomic := &types.AtomicFact{ID: "1", Statement: "Alice visited Paris", Level: 0}
	consolidated := &types.AtomicFact{ID: "2", Statement: "Alice traveled extensively in Europe", Level: 1}
	source := newFakeSource(atomic, consolidated)

	r := New(config.DefaultPipelineConfig().AdaptiveRetrieval)
	result, err := r.Search(context.Background(), "Alice Europe", source)
	require.NoError(t, err)

	for _, sf := range result.Facts {
		assert.Equal(t, "2", sf.Fact.ID)
	}
}

func TestSearch_StopsAtMaxFacts(t *testing.T) {
	var facts []*types.AtomicFact
	for i := 0; i < 10; i++ {
		facts = append(facts, &types.AtomicFact{ID: string(rune('a' + i)), Statement: "keyword match content"})
	}
	source := newFakeSource(facts...)

	r := New(config.DefaultPipelineConfig().AdaptiveRetrieval)
	result, err := r.Search(context.Background(), "keyword", source)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Facts), 5)
}

func TestSearch_IncludesParentWhenConfigured(t *testing.T) {
	// The child's own ParentClusterID stays empty (it's level 0), matching
	// the invariant that only level>0 facts carry one. Resolution goes
	// through the cluster_members side table instead: child was a member of
	// "cluster-1", and the parent's ParentClusterID names that same cluster
	// as the one it was consolidated from.
	parent := &types.AtomicFact{ID: "9f2c-consolidated", Statement: "Alice traveled across Europe", Level: 1, ParentClusterID: "cluster-1"}
	child := &types.AtomicFact{ID: "2", Statement: "Alice booked a flight to Paris"}
	source := newFakeSource(parent, child)
	source.putClusterMembers("cluster-1", child.ID)

	cfg := config.DefaultPipelineConfig().AdaptiveRetrieval
	cfg.IncludeParents = true
	r := New(cfg)
	// "why" forces complexity=complex, which disables PreferConsolidated so
	// the atomic child stays in the candidate pool alongside its parent.
	result, err := r.Search(context.Background(), "why did Alice book a flight to Paris", source)
	require.NoError(t, err)

	var sawParent bool
	for _, sf := range result.Facts {
		if sf.Fact.ID == "9f2c-consolidated" {
			sawParent = true
			assert.Equal(t, 0.5, sf.Relevance)
		}
	}
	assert.True(t, sawParent)
}

func TestSearch_OversizedQueryIsInvalid(t *testing.T) {
	cfg := config.DefaultPipelineConfig().AdaptiveRetrieval
	cfg.MaxQueryLength = 10
	r := New(cfg)

	_, err := r.Search(context.Background(), "this query is far longer than the configured max", newFakeSource())
	require.Error(t, err)
	assert.IsType(t, &types.QueryInvalidError{}, err)
}
