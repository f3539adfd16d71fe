// Package config provides configuration management for the memory pipeline.
// It loads settings from environment variables with the ATOMICA_ prefix and
// provides sensible defaults for all configuration options. An optional
// on-disk YAML file can override any of the defaults before environment
// variables are applied.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/wardenlabs/atomica/pkg/types"
	"gopkg.in/yaml.v3"
)

// SemanticCompressionConfig controls windowing, entropy scoring, and the
// Fact Extractor's batching behaviour.
type SemanticCompressionConfig struct {
	Enabled            bool    `yaml:"enabled"`
	WindowSize         int     `yaml:"window_size"`
	Stride             int     `yaml:"stride"`
	EntropyThreshold   float64 `yaml:"entropy_threshold"`
	EntityWeight       float64 `yaml:"entity_weight"`
	DivergenceWeight   float64 `yaml:"divergence_weight"`
	MaxParallelWorkers int     `yaml:"max_parallel_workers"`
	MaxFactsPerWindow  int     `yaml:"max_facts_per_window"`
	MinConfidence      float64 `yaml:"min_confidence"`
}

// ConsolidationConfig controls clustering and the Consolidator's recursive
// abstraction loop.
type ConsolidationConfig struct {
	Enabled               bool    `yaml:"enabled"`
	MinFactsForCluster    int     `yaml:"min_facts_for_cluster"`
	MaxFactsPerCluster    int     `yaml:"max_facts_per_cluster"`
	SimilarityThreshold   float64 `yaml:"similarity_threshold"`
	MaxConsolidationLevel int     `yaml:"max_consolidation_level"`
	TemporalWindowMs      int64   `yaml:"temporal_window_ms"`
	TopicClustering       bool    `yaml:"topic_clustering"`
	EntityClustering      bool    `yaml:"entity_clustering"`
	TemporalClustering    bool    `yaml:"temporal_clustering"`
}

// AdaptiveRetrievalConfig controls the Retriever's query-adaptive strategy
// selection and token budgeting.
type AdaptiveRetrievalConfig struct {
	Enabled              bool `yaml:"enabled"`
	SimpleQueryTokens    int  `yaml:"simple_query_tokens"`
	ModerateQueryTokens  int  `yaml:"moderate_query_tokens"`
	ComplexQueryTokens   int  `yaml:"complex_query_tokens"`
	PreferConsolidated   bool `yaml:"prefer_consolidated"`
	IncludeParents       bool `yaml:"include_parents"`
	CharsPerToken        int  `yaml:"chars_per_token"`

	// MaxQueryLength bounds the search query in characters; a longer query
	// is rejected with QueryInvalidError rather than processed.
	MaxQueryLength int `yaml:"max_query_length"`
}

// PipelineConfig composes the three stage configs plus background
// consolidation scheduling.
type PipelineConfig struct {
	SemanticCompression SemanticCompressionConfig `yaml:"semantic_compression"`
	Consolidation       ConsolidationConfig        `yaml:"consolidation"`
	AdaptiveRetrieval   AdaptiveRetrievalConfig     `yaml:"adaptive_retrieval"`

	BackgroundConsolidation bool  `yaml:"background_consolidation"`
	ConsolidationIntervalMs int64 `yaml:"consolidation_interval_ms"`
}

// DefaultPipelineConfig returns the documented defaults for every knob.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SemanticCompression: SemanticCompressionConfig{
			Enabled:            true,
			WindowSize:         10,
			Stride:             5,
			EntropyThreshold:   0.3,
			EntityWeight:       0.5,
			DivergenceWeight:   0.5,
			MaxParallelWorkers: 4,
			MaxFactsPerWindow:  20,
			MinConfidence:      0.7,
		},
		Consolidation: ConsolidationConfig{
			Enabled:               true,
			MinFactsForCluster:    3,
			MaxFactsPerCluster:    10,
			SimilarityThreshold:   0.6,
			MaxConsolidationLevel: 3,
			TemporalWindowMs:      7 * 24 * 60 * 60 * 1000,
			TopicClustering:       true,
			EntityClustering:      true,
			TemporalClustering:    true,
		},
		AdaptiveRetrieval: AdaptiveRetrievalConfig{
			Enabled:             true,
			SimpleQueryTokens:   500,
			ModerateQueryTokens: 1500,
			ComplexQueryTokens:  3000,
			PreferConsolidated:  true,
			IncludeParents:      true,
			CharsPerToken:       4,
			MaxQueryLength:      2000,
		},
		BackgroundConsolidation: true,
		ConsolidationIntervalMs: 60 * 60 * 1000,
	}
}

// Load builds a PipelineConfig starting from defaults, applying an optional
// YAML override file (path from ATOMICA_CONFIG_FILE, if set and present),
// then applying ATOMICA_-prefixed environment variables on top.
func Load() (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	if path := os.Getenv("ATOMICA_CONFIG_FILE"); path != "" {
		if err := applyYAMLFile(&cfg, path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyYAMLFile(cfg *PipelineConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *PipelineConfig) {
	sc := &cfg.SemanticCompression
	sc.Enabled = getEnvBool("ATOMICA_COMPRESSION_ENABLED", sc.Enabled)
	sc.WindowSize = getEnvInt("ATOMICA_WINDOW_SIZE", sc.WindowSize)
	sc.Stride = getEnvInt("ATOMICA_STRIDE", sc.Stride)
	sc.EntropyThreshold = getEnvFloat("ATOMICA_ENTROPY_THRESHOLD", sc.EntropyThreshold)
	sc.EntityWeight = getEnvFloat("ATOMICA_ENTITY_WEIGHT", sc.EntityWeight)
	sc.DivergenceWeight = getEnvFloat("ATOMICA_DIVERGENCE_WEIGHT", sc.DivergenceWeight)
	sc.MaxParallelWorkers = getEnvInt("ATOMICA_MAX_PARALLEL_WORKERS", sc.MaxParallelWorkers)
	sc.MaxFactsPerWindow = getEnvInt("ATOMICA_MAX_FACTS_PER_WINDOW", sc.MaxFactsPerWindow)
	sc.MinConfidence = getEnvFloat("ATOMICA_MIN_CONFIDENCE", sc.MinConfidence)

	cc := &cfg.Consolidation
	cc.Enabled = getEnvBool("ATOMICA_CONSOLIDATION_ENABLED", cc.Enabled)
	cc.MinFactsForCluster = getEnvInt("ATOMICA_MIN_FACTS_FOR_CLUSTER", cc.MinFactsForCluster)
	cc.MaxFactsPerCluster = getEnvInt("ATOMICA_MAX_FACTS_PER_CLUSTER", cc.MaxFactsPerCluster)
	cc.SimilarityThreshold = getEnvFloat("ATOMICA_SIMILARITY_THRESHOLD", cc.SimilarityThreshold)
	cc.MaxConsolidationLevel = getEnvInt("ATOMICA_MAX_CONSOLIDATION_LEVEL", cc.MaxConsolidationLevel)
	cc.TemporalWindowMs = int64(getEnvInt("ATOMICA_TEMPORAL_WINDOW_MS", int(cc.TemporalWindowMs)))
	cc.TopicClustering = getEnvBool("ATOMICA_TOPIC_CLUSTERING", cc.TopicClustering)
	cc.EntityClustering = getEnvBool("ATOMICA_ENTITY_CLUSTERING", cc.EntityClustering)
	cc.TemporalClustering = getEnvBool("ATOMICA_TEMPORAL_CLUSTERING", cc.TemporalClustering)

	rc := &cfg.AdaptiveRetrieval
	rc.Enabled = getEnvBool("ATOMICA_RETRIEVAL_ENABLED", rc.Enabled)
	rc.SimpleQueryTokens = getEnvInt("ATOMICA_SIMPLE_QUERY_TOKENS", rc.SimpleQueryTokens)
	rc.ModerateQueryTokens = getEnvInt("ATOMICA_MODERATE_QUERY_TOKENS", rc.ModerateQueryTokens)
	rc.ComplexQueryTokens = getEnvInt("ATOMICA_COMPLEX_QUERY_TOKENS", rc.ComplexQueryTokens)
	rc.PreferConsolidated = getEnvBool("ATOMICA_PREFER_CONSOLIDATED", rc.PreferConsolidated)
	rc.IncludeParents = getEnvBool("ATOMICA_INCLUDE_PARENTS", rc.IncludeParents)
	rc.CharsPerToken = getEnvInt("ATOMICA_CHARS_PER_TOKEN", rc.CharsPerToken)
	rc.MaxQueryLength = getEnvInt("ATOMICA_MAX_QUERY_LENGTH", rc.MaxQueryLength)

	cfg.BackgroundConsolidation = getEnvBool("ATOMICA_BACKGROUND_CONSOLIDATION", cfg.BackgroundConsolidation)
	cfg.ConsolidationIntervalMs = int64(getEnvInt("ATOMICA_CONSOLIDATION_INTERVAL_MS", int(cfg.ConsolidationIntervalMs)))
}

// Validate checks every config field for internal consistency, returning a
// ConfigInvalidError describing the first violation found.
func (c *PipelineConfig) Validate() error {
	sc := c.SemanticCompression
	if sc.WindowSize <= 0 {
		return &types.ConfigInvalidError{Field: "semantic_compression.window_size", Reason: "must be positive"}
	}
	if sc.Stride <= 0 {
		return &types.ConfigInvalidError{Field: "semantic_compression.stride", Reason: "must be positive"}
	}
	if sc.EntropyThreshold < 0 || sc.EntropyThreshold > 1 {
		return &types.ConfigInvalidError{Field: "semantic_compression.entropy_threshold", Reason: "must be in [0,1]"}
	}
	if sc.EntityWeight < 0 || sc.EntityWeight > 1 {
		return &types.ConfigInvalidError{Field: "semantic_compression.entity_weight", Reason: "must be in [0,1]"}
	}
	if sc.MaxParallelWorkers <= 0 {
		return &types.ConfigInvalidError{Field: "semantic_compression.max_parallel_workers", Reason: "must be positive"}
	}
	if sc.MaxFactsPerWindow <= 0 {
		return &types.ConfigInvalidError{Field: "semantic_compression.max_facts_per_window", Reason: "must be positive"}
	}
	if sc.MinConfidence < 0 || sc.MinConfidence > 1 {
		return &types.ConfigInvalidError{Field: "semantic_compression.min_confidence", Reason: "must be in [0,1]"}
	}

	cc := c.Consolidation
	if cc.MinFactsForCluster < 2 {
		return &types.ConfigInvalidError{Field: "consolidation.min_facts_for_cluster", Reason: "must be at least 2"}
	}
	if cc.MaxFactsPerCluster < cc.MinFactsForCluster {
		return &types.ConfigInvalidError{Field: "consolidation.max_facts_per_cluster", Reason: "must be >= min_facts_for_cluster"}
	}
	if cc.SimilarityThreshold < 0 || cc.SimilarityThreshold > 1 {
		return &types.ConfigInvalidError{Field: "consolidation.similarity_threshold", Reason: "must be in [0,1]"}
	}
	if cc.MaxConsolidationLevel < 1 {
		return &types.ConfigInvalidError{Field: "consolidation.max_consolidation_level", Reason: "must be at least 1"}
	}
	if cc.TemporalWindowMs < 0 {
		return &types.ConfigInvalidError{Field: "consolidation.temporal_window_ms", Reason: "must be non-negative"}
	}

	rc := c.AdaptiveRetrieval
	if rc.SimpleQueryTokens <= 0 || rc.ModerateQueryTokens <= 0 || rc.ComplexQueryTokens <= 0 {
		return &types.ConfigInvalidError{Field: "adaptive_retrieval.*_query_tokens", Reason: "must be positive"}
	}
	if rc.CharsPerToken <= 0 {
		return &types.ConfigInvalidError{Field: "adaptive_retrieval.chars_per_token", Reason: "must be positive"}
	}
	if rc.MaxQueryLength <= 0 {
		return &types.ConfigInvalidError{Field: "adaptive_retrieval.max_query_length", Reason: "must be positive"}
	}

	if c.BackgroundConsolidation && c.ConsolidationIntervalMs <= 0 {
		return &types.ConfigInvalidError{Field: "consolidation_interval_ms", Reason: "must be positive when background_consolidation is enabled"}
	}

	return nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
