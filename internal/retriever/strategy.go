package retriever

import (
	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/pkg/types"
)

// StrategyFor resolves a complexity bucket to a concrete retrieval
// strategy, with token budgets taken from cfg. cfg.PreferConsolidated is a
// master switch: when false, no bucket prefers consolidated facts,
// regardless of its usual table value.
func StrategyFor(complexity types.Complexity, cfg config.AdaptiveRetrievalConfig) types.RetrievalStrategy {
	var s types.RetrievalStrategy
	switch complexity {
	case types.ComplexitySimple:
		s = types.RetrievalStrategy{
			MaxFacts: 5, MaxTokens: cfg.SimpleQueryTokens, PreferConsolidated: true,
			KeywordWeight: 0.40, EntityWeight: 0.30, TopicWeight: 0.10, TemporalWeight: 0.10, RecencyWeight: 0.10,
		}
	case types.ComplexityModerate:
		s = types.RetrievalStrategy{
			MaxFacts: 10, MaxTokens: cfg.ModerateQueryTokens, PreferConsolidated: true,
			KeywordWeight: 0.30, EntityWeight: 0.30, TopicWeight: 0.20, TemporalWeight: 0.10, RecencyWeight: 0.10,
		}
	default:
		s = types.RetrievalStrategy{
			MaxFacts: 20, MaxTokens: cfg.ComplexQueryTokens, PreferConsolidated: false,
			KeywordWeight: 0.25, EntityWeight: 0.25, TopicWeight: 0.25, TemporalWeight: 0.15, RecencyWeight: 0.10,
		}
	}
	s.PreferConsolidated = s.PreferConsolidated && cfg.PreferConsolidated
	return s
}
