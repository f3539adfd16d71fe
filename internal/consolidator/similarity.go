// Package consolidator groups related AtomicFacts into FactClusters and
// abstracts each cluster into a higher-level fact via an LLM call, looping
// recursively up to a configured maximum level.
package consolidator

import (
	"strings"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/pkg/types"
)

// dimension weights per the similarity table: entity overlap 0.3, person
// overlap 0.3, topic match 0.2, temporal proximity 0.2.
const (
	entityWeight   = 0.3
	personWeight   = 0.3
	topicWeight    = 0.2
	temporalWeight = 0.2
)

// Similarity returns the weighted similarity between two facts. Only the
// dimensions enabled in cfg contribute; the result is normalized by the sum
// of enabled weights so similarity still ranges over [0,1].
func Similarity(a, b *types.AtomicFact, cfg config.ConsolidationConfig) float64 {
	var score, totalWeight float64

	if cfg.EntityClustering {
		score += entityWeight * setOverlap(a.Entities, b.Entities)
		totalWeight += entityWeight
		score += personWeight * setOverlap(a.Persons, b.Persons)
		totalWeight += personWeight
	}
	if cfg.TopicClustering {
		score += topicWeight * topicMatch(a.Topic, b.Topic)
		totalWeight += topicWeight
	}
	if cfg.TemporalClustering {
		score += temporalWeight * temporalProximity(a, b, cfg.TemporalWindowMs)
		totalWeight += temporalWeight
	}

	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight
}

// setOverlap returns the Jaccard overlap of two case-folded string sets.
func setOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}

	union := len(setA)
	for k := range setB {
		if !setA[k] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}

func topicMatch(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if strings.EqualFold(a, b) {
		return 1
	}
	return 0
}

func temporalProximity(a, b *types.AtomicFact, windowMs int64) float64 {
	if a.Timestamp == nil || b.Timestamp == nil || windowMs <= 0 {
		return 0
	}
	delta := a.Timestamp.Sub(*b.Timestamp).Milliseconds()
	if delta < 0 {
		delta = -delta
	}
	if delta > windowMs {
		return 0
	}
	return 1 - float64(delta)/float64(windowMs)
}
