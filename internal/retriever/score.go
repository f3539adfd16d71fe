package retriever

import (
	"fmt"
	"strings"
	"time"

	"github.com/wardenlabs/atomica/pkg/types"
)

const (
	recentWindow  = 7 * 24 * time.Hour
	staleWindow   = 30 * 24 * time.Hour
	recencyWindow = 90 * 24 * time.Hour
)

// Score computes a candidate fact's relevance for analysis under strategy,
// plus a list of human-readable reasons it matched.
func Score(fact *types.AtomicFact, analysis types.QueryAnalysis, strategy types.RetrievalStrategy, now time.Time) (float64, []string) {
	var score float64
	var reasons []string

	if kw, n := keywordScore(fact, analysis, strategy); n > 0 {
		score += kw
		if n == len(analysis.Keywords) && n > 0 {
			reasons = append(reasons, "all keywords matched")
		} else {
			reasons = append(reasons, fmt.Sprintf("%d keyword match(es)", n))
		}
	}

	if ent, n := entityScore(fact, analysis, strategy); n > 0 {
		score += ent
		reasons = append(reasons, fmt.Sprintf("%d entity match(es)", n))
	}

	if topicScore(fact, analysis, strategy) > 0 {
		score += strategy.TopicWeight
		reasons = append(reasons, "topic match")
	}

	if t := temporalScore(fact, analysis, strategy, now); t > 0 {
		score += t
		reasons = append(reasons, "temporal match")
	}

	if r := recencyScore(fact, strategy, now); r > 0 {
		score += r
		if r >= strategy.RecencyWeight*0.8 {
			reasons = append(reasons, "recent")
		}
	}

	if len(reasons) == 0 {
		reasons = []string{"weak content overlap"}
	}

	return score, reasons
}

func keywordScore(fact *types.AtomicFact, analysis types.QueryAnalysis, strategy types.RetrievalStrategy) (float64, int) {
	if len(analysis.Keywords) == 0 {
		return 0, 0
	}
	haystack := strings.ToLower(fact.Statement)
	matched := 0
	for _, kw := range analysis.Keywords {
		if strings.Contains(haystack, kw) {
			matched++
		}
	}
	if matched == 0 {
		return 0, 0
	}
	return (float64(matched) / float64(len(analysis.Keywords))) * strategy.KeywordWeight, matched
}

func entityScore(fact *types.AtomicFact, analysis types.QueryAnalysis, strategy types.RetrievalStrategy) (float64, int) {
	denom := len(analysis.Entities)
	if denom == 0 {
		denom = 1
	}
	matched := 0
	for _, qe := range analysis.Entities {
		for _, fe := range fact.Entities {
			if strings.EqualFold(qe, fe) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0, 0
	}
	return (float64(matched) / float64(denom)) * strategy.EntityWeight, matched
}

func topicScore(fact *types.AtomicFact, analysis types.QueryAnalysis, strategy types.RetrievalStrategy) float64 {
	if fact.Topic == "" || len(analysis.Topics) == 0 {
		return 0
	}
	topicLower := strings.ToLower(fact.Topic)
	for _, t := range analysis.Topics {
		if strings.Contains(topicLower, strings.ToLower(t)) {
			return strategy.TopicWeight
		}
	}
	return 0
}

func temporalScore(fact *types.AtomicFact, analysis types.QueryAnalysis, strategy types.RetrievalStrategy, now time.Time) float64 {
	if !analysis.Temporal || fact.Timestamp == nil {
		return 0
	}
	age := now.Sub(*fact.Timestamp)
	switch {
	case age <= recentWindow:
		return strategy.TemporalWeight
	case age <= staleWindow:
		return strategy.TemporalWeight * 0.5
	default:
		return 0
	}
}

func recencyScore(fact *types.AtomicFact, strategy types.RetrievalStrategy, now time.Time) float64 {
	if fact.Timestamp == nil {
		return 0
	}
	age := now.Sub(*fact.Timestamp)
	fraction := 1 - float64(age)/float64(recencyWindow)
	if fraction < 0 {
		fraction = 0
	}
	return fraction * strategy.RecencyWeight
}
