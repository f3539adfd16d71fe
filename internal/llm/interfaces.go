// Package llm holds the glue between the pipeline and whatever large
// language model backs fact extraction and consolidation: the opaque
// string-to-string functions the pipeline calls, the provider clients that
// can implement them, and the circuit breaking, rate limiting and response
// parsing wrapped around the calls.
package llm

import "context"

// TextGenerator is a single-turn text completion backend. ExtractFn and
// ConsolidateFn are both satisfied by a TextGenerator's Complete method.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator produces vector embeddings for text, used by the
// Entropy Filter to compute semantic_divergence when configured.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// ExtractFn sends a fact-extraction prompt to a model and returns its raw
// text response. The pipeline supplies the implementation; this package
// never calls a model API on its own initiative outside of the provider
// clients in this package.
type ExtractFn func(ctx context.Context, prompt string) (string, error)

// ConsolidateFn sends a consolidation prompt to a model and returns its raw
// text response, expected to be prose rather than JSON.
type ConsolidateFn func(ctx context.Context, prompt string) (string, error)

// AsExtractFn adapts a TextGenerator into an ExtractFn.
func AsExtractFn(g TextGenerator) ExtractFn {
	return func(ctx context.Context, prompt string) (string, error) {
		return g.Complete(ctx, prompt)
	}
}

// AsConsolidateFn adapts a TextGenerator into a ConsolidateFn.
func AsConsolidateFn(g TextGenerator) ConsolidateFn {
	return func(ctx context.Context, prompt string) (string, error) {
		return g.Complete(ctx, prompt)
	}
}
