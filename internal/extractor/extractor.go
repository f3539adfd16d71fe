// Package extractor turns kept conversation windows into AtomicFacts by
// calling an LLM extraction function, bounded to a fixed number of
// in-flight calls at a time and tolerant of malformed per-fact entries.
package extractor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/internal/llm"
	"github.com/wardenlabs/atomica/pkg/types"
)

// Extractor wraps an ExtractFn with circuit breaking, rate limiting and the
// parsing/validation/capping rules that turn a raw model response into
// AtomicFacts.
type Extractor struct {
	extractFn llm.ExtractFn
	breaker   *llm.CircuitBreaker
	limiter   *llm.CallLimiter
	cfg       config.SemanticCompressionConfig
}

// New creates an Extractor. extractFn is the opaque model call the pipeline
// supplies; cfg controls batching, capping and the confidence gate.
func New(extractFn llm.ExtractFn, cfg config.SemanticCompressionConfig) *Extractor {
	return &Extractor{
		extractFn: extractFn,
		breaker:   llm.NewCircuitBreaker(),
		limiter:   llm.NewCallLimiter(float64(cfg.MaxParallelWorkers), cfg.MaxParallelWorkers),
		cfg:       cfg,
	}
}

// Breaker exposes the extractor's circuit breaker so Pipeline.Stats can
// report whether extraction calls are currently healthy.
func (e *Extractor) Breaker() *llm.CircuitBreaker {
	return e.breaker
}

// ExtractResult is the outcome of running ExtractAll over a batch of
// windows: the deduplicated facts kept across every window, plus one
// recoverable error per window that failed (the caller accumulates these
// rather than aborting the batch, per the Extractor/Consolidator error
// policy).
type ExtractResult struct {
	Facts  []*types.AtomicFact
	Errors []error
}

// ExtractAll runs every window with ShouldProcess set through the
// extraction function, bounded to cfg.MaxParallelWorkers calls in flight at
// once via chunking, then deduplicates the combined output.
func (e *Extractor) ExtractAll(ctx context.Context, windows []*types.ConversationWindow) *ExtractResult {
	var kept []*types.ConversationWindow
	for _, w := range windows {
		if w.ShouldProcess {
			kept = append(kept, w)
		}
	}

	result := &ExtractResult{}
	chunkSize := e.cfg.MaxParallelWorkers
	if chunkSize <= 0 {
		chunkSize = 1
	}

	var allFacts []*types.AtomicFact
	for start := 0; start < len(kept); start += chunkSize {
		end := start + chunkSize
		if end > len(kept) {
			end = len(kept)
		}
		chunk := kept[start:end]

		type chunkResult struct {
			facts []*types.AtomicFact
			err   error
		}
		results := make([]chunkResult, len(chunk))

		var wg sync.WaitGroup
		for i, window := range chunk {
			wg.Add(1)
			go func(i int, window *types.ConversationWindow) {
				defer wg.Done()
				facts, err := e.extractWindow(ctx, window)
				results[i] = chunkResult{facts: facts, err: err}
			}(i, window)
		}
		wg.Wait()

		for _, r := range results {
			if r.err != nil {
				result.Errors = append(result.Errors, r.err)
				continue
			}
			allFacts = append(allFacts, r.facts...)
		}

		if ctx.Err() != nil {
			result.Errors = append(result.Errors, &types.CancelledError{Err: ctx.Err()})
			break
		}
	}

	result.Facts = Dedup(allFacts)
	return result
}

// extractWindow calls the model for a single window and turns its response
// into validated, confidence-gated, capped AtomicFacts.
func (e *Extractor) extractWindow(ctx context.Context, window *types.ConversationWindow) ([]*types.AtomicFact, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, &types.ExtractError{Kind: types.KindCancelled, WindowID: window.ID, Err: err}
	}

	prompt := llm.BuildExtractionPrompt(window)

	raw, err := e.breaker.Execute(ctx, func() (interface{}, error) {
		return e.extractFn(ctx, prompt)
	})
	if err != nil {
		kind := types.KindBadResponse
		if ctx.Err() != nil {
			kind = types.KindCancelled
		}
		return nil, &types.ExtractError{Kind: kind, WindowID: window.ID, Err: err}
	}

	responses, err := llm.ParseFactExtractionResponse(raw.(string))
	if err != nil {
		return nil, &types.ExtractError{Kind: types.KindBadResponse, WindowID: window.ID, Err: err}
	}

	now := time.Now().UTC()
	var facts []*types.AtomicFact
	for _, r := range responses {
		if len(facts) >= e.cfg.MaxFactsPerWindow {
			break
		}

		fact, ok := normalizeFact(r, window, now, e.cfg.MinConfidence)
		if !ok {
			continue
		}
		facts = append(facts, fact)
	}

	return facts, nil
}

// normalizeFact coerces a raw FactResponse into an AtomicFact, defaulting
// missing sets to empty and missing confidence to 0.8, and reports ok=false
// when the fact should be dropped (empty statement, or confidence below
// minConfidence).
func normalizeFact(r llm.FactResponse, window *types.ConversationWindow, now time.Time, minConfidence float64) (*types.AtomicFact, bool) {
	if r.Statement == "" {
		return nil, false
	}

	confidence := 0.8
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	if confidence < minConfidence {
		return nil, false
	}

	fact := &types.AtomicFact{
		ID:                uuid.NewString(),
		Statement:         r.Statement,
		Keywords:          orEmpty(r.Keywords),
		Persons:           orEmpty(r.Persons),
		Entities:          orEmpty(r.Entities),
		Topic:             r.Topic,
		Location:          r.Location,
		Confidence:        confidence,
		ExtractedAt:       now,
		Level:             0,
		SourceWindowID:    window.ID,
		SourceSessionFile: window.SourceSessionFile,
	}

	if r.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			fact.Timestamp = &t
		}
	}

	return fact, true
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
