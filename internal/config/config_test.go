package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineConfig_Valid(t *testing.T) {
	cfg := DefaultPipelineConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.SemanticCompression.WindowSize)
	assert.Equal(t, 5, cfg.SemanticCompression.Stride)
	assert.Equal(t, 0.3, cfg.SemanticCompression.EntropyThreshold)
	assert.Equal(t, 3, cfg.Consolidation.MinFactsForCluster)
	assert.Equal(t, 10, cfg.Consolidation.MaxFactsPerCluster)
	assert.Equal(t, 500, cfg.AdaptiveRetrieval.SimpleQueryTokens)
}

func TestValidate_RejectsBadWindowSize(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.SemanticCompression.WindowSize = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_size")
}

func TestValidate_RejectsClusterSizeInversion(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Consolidation.MaxFactsPerCluster = 2
	cfg.Consolidation.MinFactsForCluster = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_facts_per_cluster")
}

func TestValidate_RejectsMissingIntervalWhenBackgroundEnabled(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.BackgroundConsolidation = true
	cfg.ConsolidationIntervalMs = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consolidation_interval_ms")
}

func TestValidate_RejectsNonPositiveMaxQueryLength(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.AdaptiveRetrieval.MaxQueryLength = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_query_length")
}

func TestLoad_AppliesEnvOverrides(t *testing.T) {
	t.Setenv("ATOMICA_WINDOW_SIZE", "20")
	t.Setenv("ATOMICA_ENTROPY_THRESHOLD", "0.6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.SemanticCompression.WindowSize)
	assert.Equal(t, 0.6, cfg.SemanticCompression.EntropyThreshold)
}
