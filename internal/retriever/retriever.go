package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/pkg/types"
)

// Retriever scores every candidate fact against a query and greedily
// selects a token-bounded subset to return.
type Retriever struct {
	cfg config.AdaptiveRetrievalConfig
}

// New creates a Retriever.
func New(cfg config.AdaptiveRetrievalConfig) *Retriever {
	return &Retriever{cfg: cfg}
}

// FactSource supplies the candidate pool and, optionally, parent lookups
// for hierarchy inclusion. The pipeline's Store satisfies it directly.
type FactSource interface {
	GetAllFacts(ctx context.Context) ([]*types.AtomicFact, error)
	GetFact(ctx context.Context, id string) (*types.AtomicFact, error)
	GetClusterIDForFact(ctx context.Context, factID string) (string, error)
	GetFactByParentClusterID(ctx context.Context, clusterID string) (*types.AtomicFact, error)
}

// Search analyses query, resolves a strategy for its complexity, scores
// every candidate from source, and returns a token-bounded selection.
func (r *Retriever) Search(ctx context.Context, query string, source FactSource) (*types.RetrievalResult, error) {
	if query == "" {
		return nil, &types.QueryInvalidError{Reason: "query must not be empty"}
	}
	if max := r.cfg.MaxQueryLength; max > 0 && len(query) > max {
		return nil, &types.QueryInvalidError{Reason: fmt.Sprintf("query length %d exceeds max %d", len(query), max)}
	}

	analysis := Analyze(query)
	strategy := StrategyFor(analysis.Complexity, r.cfg)

	all, err := source.GetAllFacts(ctx)
	if err != nil {
		return nil, err
	}

	candidates := all
	if strategy.PreferConsolidated {
		if consolidated := filterConsolidated(all); len(consolidated) > 0 {
			candidates = consolidated
		}
	}

	now := time.Now()
	scored := make([]types.ScoredFact, 0, len(candidates))
	for _, f := range candidates {
		relevance, reasons := Score(f, analysis, strategy, now)
		scored = append(scored, types.ScoredFact{Fact: f, Relevance: relevance, Reasons: reasons})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})

	selected := r.selectUnderBudget(ctx, scored, strategy, source)

	totalTokens := 0
	for _, sf := range selected {
		totalTokens += factTokens(sf.Fact, r.cfg.CharsPerToken)
	}

	compressionRatio := 0.0
	if len(all) > 0 {
		compressionRatio = 1 - float64(len(selected))/float64(len(all))
	}

	return &types.RetrievalResult{
		Facts:             selected,
		Strategy:          analysis.Complexity,
		Analysis:          analysis,
		TotalTokens:       totalTokens,
		CandidatesScanned: len(candidates),
		CompressionRatio:  compressionRatio,
	}, nil
}

func (r *Retriever) selectUnderBudget(ctx context.Context, scored []types.ScoredFact, strategy types.RetrievalStrategy, source FactSource) []types.ScoredFact {
	var selected []types.ScoredFact
	seen := make(map[string]bool)
	cumulativeTokens := 0

	for _, sf := range scored {
		if len(selected) >= strategy.MaxFacts {
			break
		}
		if seen[sf.Fact.ID] {
			continue
		}
		tokens := factTokens(sf.Fact, r.cfg.CharsPerToken)
		if cumulativeTokens+tokens > strategy.MaxTokens {
			continue
		}
		selected = append(selected, sf)
		seen[sf.Fact.ID] = true
		cumulativeTokens += tokens

		if r.cfg.IncludeParents {
			if parent, ok := r.fetchParent(ctx, sf.Fact, source); ok && !seen[parent.ID] {
				parentTokens := factTokens(parent, r.cfg.CharsPerToken)
				if len(selected) < strategy.MaxFacts && cumulativeTokens+parentTokens <= strategy.MaxTokens {
					selected = append(selected, types.ScoredFact{Fact: parent, Relevance: 0.5, Reasons: []string{"parent fact for context"}})
					seen[parent.ID] = true
					cumulativeTokens += parentTokens
				}
			}
		}
	}

	return selected
}

// fetchParent finds the consolidated ancestor of fact, if one exists. A
// fact's own ParentClusterID only ever names the cluster *it* summarises
// (present iff its own Level > 0), not a pointer to whatever summarised it,
// so resolving "what was this fact consolidated into" goes through the
// cluster_members side table instead: first which cluster fact was a member
// of, then which fact was consolidated from that cluster. It's a no-op
// rather than an error when either lookup misses, which is expected for
// facts that haven't been through a consolidation pass yet.
func (r *Retriever) fetchParent(ctx context.Context, fact *types.AtomicFact, source FactSource) (*types.AtomicFact, bool) {
	clusterID, err := source.GetClusterIDForFact(ctx, fact.ID)
	if err != nil || clusterID == "" {
		return nil, false
	}
	parent, err := source.GetFactByParentClusterID(ctx, clusterID)
	if err != nil || parent == nil {
		return nil, false
	}
	return parent, true
}

func filterConsolidated(facts []*types.AtomicFact) []*types.AtomicFact {
	var out []*types.AtomicFact
	for _, f := range facts {
		if f.Level > 0 {
			out = append(out, f)
		}
	}
	return out
}

func factTokens(fact *types.AtomicFact, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = 1
	}
	return int(math.Ceil(float64(len(fact.Statement)) / float64(charsPerToken)))
}
