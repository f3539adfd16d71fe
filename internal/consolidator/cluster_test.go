package consolidator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/pkg/types"
)

func TestCluster_GroupsSimilarFactsAboveThreshold(t *testing.T) {
	cfg := config.DefaultPipelineConfig().Consolidation
	cfg.MinFactsForCluster = 2
	cfg.SimilarityThreshold = 0.5

	now := time.Now()
	facts := []*types.AtomicFact{
		{ID: "1", Statement: "a", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now, Confidence: 0.9},
		{ID: "2", Statement: "b", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now, Confidence: 0.8},
		{ID: "3", Statement: "c", Entities: []string{"Rocket"}, Persons: []string{"Zed"}, Topic: "space", Timestamp: &now, Confidence: 0.7},
	}

	clusters := Cluster(facts, cfg)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Facts, 2)
}

func TestCluster_DiscardsUndersizedClusters(t *testing.T) {
	cfg := config.DefaultPipelineConfig().Consolidation
	cfg.MinFactsForCluster = 3
	cfg.SimilarityThreshold = 0.5

	now := time.Now()
	facts := []*types.AtomicFact{
		{ID: "1", Statement: "a", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now},
		{ID: "2", Statement: "b", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now},
	}

	clusters := Cluster(facts, cfg)
	assert.Empty(t, clusters)
}

func TestCluster_CapsAtMaxFactsPerCluster(t *testing.T) {
	cfg := config.DefaultPipelineConfig().Consolidation
	cfg.MinFactsForCluster = 2
	cfg.MaxFactsPerCluster = 2
	cfg.SimilarityThreshold = 0.5

	now := time.Now()
	var facts []*types.AtomicFact
	for i := 0; i < 5; i++ {
		facts = append(facts, &types.AtomicFact{
			ID: string(rune('a' + i)), Statement: "x", Entities: []string{"Paris"},
			Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now,
		})
	}

	clusters := Cluster(facts, cfg)
	require.Len(t, clusters, 2)
	assert.LessOrEqual(t, len(clusters[0].Facts), 2)
}

func TestBuildCluster_EntitiesAndPersonsAreIntersected(t *testing.T) {
	cfg := config.DefaultPipelineConfig().Consolidation
	now := time.Now()
	members := []*types.AtomicFact{
		{ID: "1", Entities: []string{"Paris", "Louvre"}, Persons: []string{"Alice", "Bob"}, Topic: "travel", Timestamp: &now},
		{ID: "2", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now},
	}

	cluster := buildCluster(members, cfg)
	assert.Equal(t, []string{"Paris"}, cluster.CommonEntities)
	assert.Equal(t, []string{"Alice"}, cluster.CommonPersons)
}

func TestBuildCluster_TopicIsModal(t *testing.T) {
	cfg := config.DefaultPipelineConfig().Consolidation
	now := time.Now()
	members := []*types.AtomicFact{
		{ID: "1", Topic: "space", Timestamp: &now},
		{ID: "2", Topic: "travel", Timestamp: &now},
		{ID: "3", Topic: "travel", Timestamp: &now},
	}

	cluster := buildCluster(members, cfg)
	assert.Equal(t, "travel", cluster.Topic)
}

func TestBuildCluster_CoherenceScoreIsMeanPairwiseSimilarity(t *testing.T) {
	cfg := config.DefaultPipelineConfig().Consolidation
	now := time.Now()
	members := []*types.AtomicFact{
		{ID: "1", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now},
		{ID: "2", Entities: []string{"Paris"}, Persons: []string{"Alice"}, Topic: "travel", Timestamp: &now},
	}

	cluster := buildCluster(members, cfg)
	assert.Greater(t, cluster.CoherenceScore, 0.5)
}

func TestCluster_UndatedFactsSortLast(t *testing.T) {
	cfg := config.DefaultPipelineConfig().Consolidation
	now := time.Now()
	facts := []*types.AtomicFact{
		{ID: "1", Statement: "a", Timestamp: nil},
		{ID: "2", Statement: "b", Timestamp: &now},
	}

	// Should not panic regardless of cluster formation.
	assert.NotPanics(t, func() { Cluster(facts, cfg) })
}
