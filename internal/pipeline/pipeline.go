// Package pipeline wires the Store, Entropy Filter, Fact Extractor,
// Consolidator and Retriever into the public operations that make up the
// memory engine: process_transcript, run_consolidation, search, stats and
// stop.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/internal/consolidator"
	"github.com/wardenlabs/atomica/internal/entropy"
	"github.com/wardenlabs/atomica/internal/extractor"
	"github.com/wardenlabs/atomica/internal/llm"
	"github.com/wardenlabs/atomica/internal/notify"
	"github.com/wardenlabs/atomica/internal/retriever"
	"github.com/wardenlabs/atomica/internal/store"
	"github.com/wardenlabs/atomica/pkg/types"
)

const previousFactsContextSize = 100

// Pipeline is the orchestrator for the memory engine's public operations.
// A process has exactly one writer to the Store (per store.Store's
// concurrency contract); Pipeline's own mutex guards only its lifecycle
// state (started, shutting down) and does not serialise Store calls.
type Pipeline struct {
	store store.Store
	cfg   config.PipelineConfig

	extractor    *extractor.Extractor
	consolidator *consolidator.Consolidator
	retriever    *retriever.Retriever
	embeddings   entropy.EmbeddingSource

	hub *notify.Hub

	mu             sync.RWMutex
	started        bool
	shuttingDown   bool
	backgroundStop context.CancelFunc
	backgroundWg   sync.WaitGroup
}

// New validates cfg, wires every component, and returns a ready-to-Start
// Pipeline. extractFn and consolidateFn are the opaque model calls; embeddings
// is optional and may be nil, in which case the Entropy Filter falls back to
// its constant semantic-divergence score.
func New(st store.Store, cfg config.PipelineConfig, extractFn llm.ExtractFn, consolidateFn llm.ConsolidateFn, embeddings entropy.EmbeddingSource) (*Pipeline, error) {
	if st == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:        st,
		cfg:          cfg,
		extractor:    extractor.New(extractFn, cfg.SemanticCompression),
		consolidator: consolidator.New(consolidateFn, cfg.Consolidation),
		retriever:    retriever.New(cfg.AdaptiveRetrieval),
		embeddings:   embeddings,
		hub:          notify.NewHub(),
	}

	return p, nil
}

// Hub exposes the pipeline's event hub so callers can attach it to an HTTP
// mux (hub.ServeHTTP) to expose a live event feed.
func (p *Pipeline) Hub() *notify.Hub {
	return p.hub
}

// Start brings the pipeline's background consolidation timer up, if
// cfg.BackgroundConsolidation is enabled. It must be called before
// ProcessTranscript, RunConsolidation, or Search.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("pipeline: already started")
	}

	go p.hub.Run()

	if p.cfg.BackgroundConsolidation {
		bgCtx, cancel := context.WithCancel(ctx)
		p.backgroundStop = cancel
		p.backgroundWg.Add(1)
		go p.runBackgroundConsolidation(bgCtx)
	}

	p.started = true
	log.Println("pipeline: started")
	return nil
}

// Stop cancels the background consolidation timer and shuts down the event
// hub. It does not close the Store; the caller owns that.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started || p.shuttingDown {
		p.mu.Unlock()
		return
	}
	p.shuttingDown = true
	if p.backgroundStop != nil {
		p.backgroundStop()
	}
	p.mu.Unlock()

	p.backgroundWg.Wait()
	p.hub.Stop()
	p.hub.Publish(notify.Event{Type: "stopped", Timestamp: time.Now().Unix()})

	p.mu.Lock()
	p.started = false
	p.shuttingDown = false
	p.mu.Unlock()

	log.Println("pipeline: stopped")
}

// ProcessTranscript windows turns, filters them through the Entropy Filter
// using the most recent previousFactsContextSize facts as context, extracts
// AtomicFacts from the windows worth processing, persists the kept windows
// and the extracted facts (each batch in its own transaction), and records a
// CompressionStat.
func (p *Pipeline) ProcessTranscript(ctx context.Context, turns []types.Turn, sessionFile string) (*Summary, error) {
	if !p.isStarted() {
		return nil, fmt.Errorf("pipeline: not started")
	}

	start := time.Now()

	windows := entropy.CreateWindows(sessionFile, turns, p.cfg.SemanticCompression.WindowSize, p.cfg.SemanticCompression.Stride)

	previousFacts, err := p.store.GetRecentFacts(ctx, previousFactsContextSize)
	if err != nil {
		return nil, err
	}

	alpha := p.cfg.SemanticCompression.EntityWeight
	threshold := p.cfg.SemanticCompression.EntropyThreshold
	for _, w := range windows {
		entropy.Score(w, previousFacts, alpha, threshold, p.embeddings)
	}

	kept := make([]*types.ConversationWindow, 0, len(windows))
	for _, w := range windows {
		if w.ShouldProcess {
			kept = append(kept, w)
		}
	}
	if err := p.store.PutWindows(ctx, kept); err != nil {
		return nil, err
	}

	result := p.extractor.ExtractAll(ctx, windows)
	if len(result.Facts) > 0 {
		if err := p.store.PutFacts(ctx, result.Facts); err != nil {
			return nil, err
		}
	}

	processed := 0
	for _, w := range windows {
		if w.ShouldProcess {
			processed++
		}
	}

	inputTokens := 0
	for _, t := range turns {
		inputTokens += len(t.Content) / p.cfg.AdaptiveRetrieval.CharsPerToken
	}
	compressionRatio := 0.0
	if inputTokens > 0 {
		compressionRatio = 1 - float64(len(result.Facts))/float64(inputTokens)
	}

	avgEntropy := 0.0
	if len(windows) > 0 {
		var sum float64
		for _, w := range windows {
			if w.Entropy != nil {
				sum += *w.Entropy
			}
		}
		avgEntropy = sum / float64(len(windows))
	}

	stat := &types.CompressionStat{
		ID:                sessionFile + ":" + start.Format(time.RFC3339Nano),
		InputTokens:       inputTokens,
		OutputFacts:       len(result.Facts),
		CompressionRatio:  compressionRatio,
		EntropyScore:      avgEntropy,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
		CreatedAt:         time.Now().UTC(),
		SourceSessionFile: sessionFile,
	}
	if err := p.store.PutStat(ctx, stat); err != nil {
		return nil, err
	}

	p.hub.Publish(notify.Event{Type: "facts_extracted", Detail: sessionFile, Count: len(result.Facts), Timestamp: time.Now().Unix()})

	return &Summary{
		WindowsCreated:   len(windows),
		WindowsProcessed: processed,
		FactsExtracted:   len(result.Facts),
		Stat:             stat,
		Errors:           result.Errors,
	}, nil
}

// RunConsolidation clusters and abstracts the lowest level that currently
// holds any facts, persisting whatever new facts the Consolidator produces.
// Consolidator.Run recurses on its own output, cascading up through however
// many levels form clusters in one pass, but its input must be a single,
// homogeneous level: feeding it the whole store would let facts from an
// earlier consolidation run get clustered together with the level below
// them, violating a FactCluster's equal-level invariant. It short-circuits
// when that level holds fewer facts than cfg.MinFactsForCluster.
func (p *Pipeline) RunConsolidation(ctx context.Context) (*ConsolidationSummary, error) {
	if !p.isStarted() {
		return nil, fmt.Errorf("pipeline: not started")
	}

	byLevel, err := p.store.CountByLevel(ctx)
	if err != nil {
		return nil, err
	}
	level, ok := lowestNonEmptyLevel(byLevel)
	if !ok {
		return &ConsolidationSummary{}, nil
	}

	source, err := p.store.GetFactsByLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	if len(source) < p.cfg.Consolidation.MinFactsForCluster {
		return &ConsolidationSummary{}, nil
	}

	result := p.consolidator.Run(ctx, source)
	if len(result.Facts) > 0 {
		if err := p.store.PutFacts(ctx, result.Facts); err != nil {
			return nil, err
		}
	}
	// Source facts are never mutated; instead each cluster's membership is
	// persisted as its own row so the Retriever can later walk from a member
	// fact to the cluster ID and from there to the fact that cluster was
	// consolidated into.
	for _, cluster := range result.Clusters {
		if err := p.store.PutClusterMembers(ctx, cluster.ID, factIDs(cluster.Facts)); err != nil {
			return nil, err
		}
	}

	compressionRatio := 0.0
	if len(source) > 0 {
		compressionRatio = float64(len(result.Facts)) / float64(len(source))
	}

	p.hub.Publish(notify.Event{Type: "consolidation_run", Count: len(result.Facts), Timestamp: time.Now().Unix()})

	return &ConsolidationSummary{
		FactsConsolidated: len(source),
		NewFacts:          len(result.Facts),
		CompressionRatio:  compressionRatio,
		Errors:            result.Errors,
	}, nil
}

func factIDs(facts []*types.AtomicFact) []string {
	ids := make([]string, len(facts))
	for i, f := range facts {
		ids[i] = f.ID
	}
	return ids
}

// lowestNonEmptyLevel returns the smallest level key in byLevel with a
// nonzero count, or ok=false if every level is empty.
func lowestNonEmptyLevel(byLevel map[int]int) (level int, ok bool) {
	for l, n := range byLevel {
		if n == 0 {
			continue
		}
		if !ok || l < level {
			level = l
			ok = true
		}
	}
	return level, ok
}

// Search classifies query and returns a token-bounded, relevance-ranked
// selection of facts.
func (p *Pipeline) Search(ctx context.Context, query string) (*types.RetrievalResult, error) {
	if !p.isStarted() {
		return nil, fmt.Errorf("pipeline: not started")
	}
	return p.retriever.Search(ctx, query, p.store)
}

// Stats summarises the store's current contents.
func (p *Pipeline) Stats(ctx context.Context) (*PipelineStats, error) {
	if !p.isStarted() {
		return nil, fmt.Errorf("pipeline: not started")
	}

	byLevel, err := p.store.CountByLevel(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byLevel {
		total += n
	}

	totalWindows, err := p.store.TotalWindows(ctx)
	if err != nil {
		return nil, err
	}

	avgRatio, err := p.store.AvgCompressionRatio(ctx)
	if err != nil {
		return nil, err
	}

	return &PipelineStats{
		TotalFacts:          total,
		FactsByLevel:        byLevel,
		TotalWindows:        totalWindows,
		AvgCompressionRatio: avgRatio,
		ExtractorCircuit:    circuitStatus(p.extractor.Breaker()),
		ConsolidatorCircuit: circuitStatus(p.consolidator.Breaker()),
	}, nil
}

func circuitStatus(cb *llm.CircuitBreaker) CircuitStatus {
	m := cb.Metrics()
	return CircuitStatus{
		State:               cb.State(),
		TotalRequests:       m.TotalRequests,
		TotalFailures:       m.TotalFailures,
		ConsecutiveFailures: m.ConsecutiveFailures,
	}
}

func (p *Pipeline) isStarted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started && !p.shuttingDown
}

func (p *Pipeline) runBackgroundConsolidation(ctx context.Context) {
	defer p.backgroundWg.Done()

	interval := time.Duration(p.cfg.ConsolidationIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RunConsolidation(ctx); err != nil {
				log.Printf("pipeline: background consolidation failed: %v", err)
			}
		}
	}
}
