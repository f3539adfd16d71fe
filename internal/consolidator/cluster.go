package consolidator

import (
	"sort"
	"time"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/pkg/types"
)

// Cluster greedily groups facts sorted by timestamp ascending (undated
// facts last). Each unclustered fact seeds a new cluster; subsequent facts
// join the seed's cluster when their mean similarity to the cluster's
// current members is at least cfg.SimilarityThreshold, up to
// cfg.MaxFactsPerCluster members. Clusters smaller than
// cfg.MinFactsForCluster are discarded.
func Cluster(facts []*types.AtomicFact, cfg config.ConsolidationConfig) []*types.FactCluster {
	ordered := make([]*types.AtomicFact, len(facts))
	copy(ordered, facts)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := ordered[i].Timestamp, ordered[j].Timestamp
		if ti == nil && tj == nil {
			return false
		}
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.Before(*tj)
	})

	used := make(map[string]bool, len(ordered))
	var clusters []*types.FactCluster

	for _, seed := range ordered {
		if used[seed.ID] {
			continue
		}

		members := []*types.AtomicFact{seed}
		used[seed.ID] = true

		for _, candidate := range ordered {
			if used[candidate.ID] {
				continue
			}
			if len(members) >= cfg.MaxFactsPerCluster {
				break
			}
			if meanSimilarity(candidate, members, cfg) >= cfg.SimilarityThreshold {
				members = append(members, candidate)
				used[candidate.ID] = true
			}
		}

		if len(members) < cfg.MinFactsForCluster {
			continue
		}

		clusters = append(clusters, buildCluster(members, cfg))
	}

	return clusters
}

func meanSimilarity(candidate *types.AtomicFact, members []*types.AtomicFact, cfg config.ConsolidationConfig) float64 {
	if len(members) == 0 {
		return 0
	}
	var total float64
	for _, m := range members {
		total += Similarity(candidate, m, cfg)
	}
	return total / float64(len(members))
}

func buildCluster(members []*types.AtomicFact, cfg config.ConsolidationConfig) *types.FactCluster {
	var start, end *time.Time
	for _, f := range members {
		if f.Timestamp != nil {
			if start == nil || f.Timestamp.Before(*start) {
				t := *f.Timestamp
				start = &t
			}
			if end == nil || f.Timestamp.After(*end) {
				t := *f.Timestamp
				end = &t
			}
		}
	}

	cluster := &types.FactCluster{
		Facts:          members,
		CommonEntities: intersectStrings(func(f *types.AtomicFact) []string { return f.Entities }, members),
		CommonPersons:  intersectStrings(func(f *types.AtomicFact) []string { return f.Persons }, members),
		Topic:          modalTopic(members),
		TimeRangeStart: start,
		TimeRangeEnd:   end,
		CoherenceScore: meanPairwiseSimilarity(members, cfg),
	}
	cluster.ID = clusterID(cluster)
	return cluster
}

// intersectStrings returns the values present in get(f) for every member f,
// in the order they appear in the first member.
func intersectStrings(get func(*types.AtomicFact) []string, members []*types.AtomicFact) []string {
	if len(members) == 0 {
		return nil
	}

	common := toSetCaseSensitive(get(members[0]))
	for _, m := range members[1:] {
		next := toSetCaseSensitive(get(m))
		for v := range common {
			if !next[v] {
				delete(common, v)
			}
		}
	}

	var out []string
	for _, v := range get(members[0]) {
		if common[v] {
			out = append(out, v)
			delete(common, v)
		}
	}
	return out
}

func toSetCaseSensitive(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, v := range items {
		set[v] = true
	}
	return set
}

// modalTopic returns the most frequent non-empty topic among members,
// breaking ties toward whichever topic appears first.
func modalTopic(members []*types.AtomicFact) string {
	counts := make(map[string]int)
	var order []string
	for _, f := range members {
		if f.Topic == "" {
			continue
		}
		if counts[f.Topic] == 0 {
			order = append(order, f.Topic)
		}
		counts[f.Topic]++
	}

	best := ""
	bestCount := 0
	for _, t := range order {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}
	return best
}

func meanPairwiseSimilarity(members []*types.AtomicFact, cfg config.ConsolidationConfig) float64 {
	if len(members) < 2 {
		return 0
	}
	var total float64
	var pairs int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += Similarity(members[i], members[j], cfg)
			pairs++
		}
	}
	return total / float64(pairs)
}
