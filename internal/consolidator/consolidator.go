package consolidator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/internal/llm"
	"github.com/wardenlabs/atomica/pkg/types"
)

var errEmptyResponse = errors.New("consolidator: model returned an empty response")

// Consolidator clusters facts and abstracts each cluster into a new,
// higher-level fact via an LLM call, recursing on its own output up to
// cfg.MaxConsolidationLevel.
type Consolidator struct {
	consolidateFn llm.ConsolidateFn
	breaker       *llm.CircuitBreaker
	cfg           config.ConsolidationConfig
}

// New creates a Consolidator. consolidateFn is the opaque model call the
// pipeline supplies.
func New(consolidateFn llm.ConsolidateFn, cfg config.ConsolidationConfig) *Consolidator {
	return &Consolidator{
		consolidateFn: consolidateFn,
		breaker:       llm.NewCircuitBreaker(),
		cfg:           cfg,
	}
}

// Breaker exposes the consolidator's circuit breaker so Pipeline.Stats can
// report whether consolidation calls are currently healthy.
func (c *Consolidator) Breaker() *llm.CircuitBreaker {
	return c.breaker
}

// Result is the outcome of a consolidation run: the newly created
// consolidated facts across every level processed, the clusters that
// produced them (for the caller to persist membership of), and one
// recoverable error per cluster that failed.
type Result struct {
	Facts    []*types.AtomicFact
	Clusters []*types.FactCluster
	Errors   []error
}

// Run clusters facts at their current level and abstracts each cluster into
// a new fact, then recurses on the produced facts until no cluster forms or
// cfg.MaxConsolidationLevel is reached.
func (c *Consolidator) Run(ctx context.Context, facts []*types.AtomicFact) *Result {
	result := &Result{}
	current := facts

	for level := 0; level < c.cfg.MaxConsolidationLevel; level++ {
		clusters := Cluster(current, c.cfg)
		if len(clusters) == 0 {
			break
		}
		result.Clusters = append(result.Clusters, clusters...)

		var produced []*types.AtomicFact
		for _, cluster := range clusters {
			if ctx.Err() != nil {
				result.Errors = append(result.Errors, &types.CancelledError{Err: ctx.Err()})
				return result
			}

			fact, err := c.consolidateCluster(ctx, cluster)
			if err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			produced = append(produced, fact)
		}

		if len(produced) == 0 {
			break
		}

		result.Facts = append(result.Facts, produced...)
		current = produced
	}

	return result
}

// consolidateCluster calls the model to abstract cluster into a single
// statement, then builds the consolidated AtomicFact: unioned keyword/
// entity/person sets, the cluster's topic, timestamp pinned to the start of
// its time range, the first non-empty location among its members, mean
// confidence, and level one above the maximum level among its sources.
func (c *Consolidator) consolidateCluster(ctx context.Context, cluster *types.FactCluster) (*types.AtomicFact, error) {
	prompt := llm.BuildConsolidationPrompt(cluster)

	raw, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.consolidateFn(ctx, prompt)
	})
	if err != nil {
		kind := types.KindBadResponse
		if ctx.Err() != nil {
			kind = types.KindCancelled
		}
		return nil, &types.ConsolidateError{Kind: kind, ClusterID: cluster.ID, Err: err}
	}

	statement, ok := raw.(string)
	if !ok || statement == "" {
		return nil, &types.ConsolidateError{Kind: types.KindBadResponse, ClusterID: cluster.ID, Err: errEmptyResponse}
	}

	return buildConsolidatedFact(statement, cluster), nil
}

func buildConsolidatedFact(statement string, cluster *types.FactCluster) *types.AtomicFact {
	keywords := unionStrings(func(f *types.AtomicFact) []string { return f.Keywords }, cluster.Facts)
	persons := unionStrings(func(f *types.AtomicFact) []string { return f.Persons }, cluster.Facts)
	entities := unionStrings(func(f *types.AtomicFact) []string { return f.Entities }, cluster.Facts)

	var confidenceSum float64
	maxLevel := 0
	var location string
	for _, f := range cluster.Facts {
		confidenceSum += f.Confidence
		if f.Level > maxLevel {
			maxLevel = f.Level
		}
		if location == "" && f.Location != "" {
			location = f.Location
		}
	}

	var ts *time.Time
	if cluster.TimeRangeStart != nil {
		t := *cluster.TimeRangeStart
		ts = &t
	}

	return &types.AtomicFact{
		ID:              uuid.NewString(),
		Statement:       statement,
		Keywords:        keywords,
		Persons:         persons,
		Entities:        entities,
		Topic:           cluster.Topic,
		Timestamp:       ts,
		Location:        location,
		Confidence:      confidenceSum / float64(len(cluster.Facts)),
		ExtractedAt:     time.Now().UTC(),
		Level:           maxLevel + 1,
		ParentClusterID: cluster.ID,
	}
}

func unionStrings(get func(*types.AtomicFact) []string, facts []*types.AtomicFact) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range facts {
		for _, s := range get(f) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
