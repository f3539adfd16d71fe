package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/pkg/types"
)

func testWindow(id string) *types.ConversationWindow {
	return &types.ConversationWindow{
		ID:                id,
		ShouldProcess:     true,
		SourceSessionFile: "session.json",
		Turns:             []types.Turn{{Speaker: "Alice", Content: "hello"}},
	}
}

func TestExtractAll_ParsesAndCapsFacts(t *testing.T) {
	cfg := config.DefaultPipelineConfig().SemanticCompression
	cfg.MaxFactsPerWindow = 1
	cfg.MinConfidence = 0

	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[{"statement":"fact one","confidence":0.9},{"statement":"fact two","confidence":0.9}]}`, nil
	}

	ex := New(extractFn, cfg)
	result := ex.ExtractAll(context.Background(), []*types.ConversationWindow{testWindow("w1")})

	require.Empty(t, result.Errors)
	require.Len(t, result.Facts, 1)
	assert.Equal(t, "fact one", result.Facts[0].Statement)
	assert.Equal(t, "w1", result.Facts[0].SourceWindowID)
}

func TestExtractAll_DropsBelowMinConfidence(t *testing.T) {
	cfg := config.DefaultPipelineConfig().SemanticCompression
	cfg.MinConfidence = 0.9

	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[{"statement":"low confidence","confidence":0.5}]}`, nil
	}

	ex := New(extractFn, cfg)
	result := ex.ExtractAll(context.Background(), []*types.ConversationWindow{testWindow("w1")})

	require.Empty(t, result.Errors)
	assert.Empty(t, result.Facts)
}

func TestExtractAll_SkipsWindowsNotMarkedForProcessing(t *testing.T) {
	cfg := config.DefaultPipelineConfig().SemanticCompression
	called := false

	extractFn := func(ctx context.Context, prompt string) (string, error) {
		called = true
		return `{"facts":[]}`, nil
	}

	w := testWindow("w1")
	w.ShouldProcess = false

	ex := New(extractFn, cfg)
	result := ex.ExtractAll(context.Background(), []*types.ConversationWindow{w})

	assert.False(t, called)
	assert.Empty(t, result.Facts)
	assert.Empty(t, result.Errors)
}

func TestExtractAll_MissingConfidenceDefaultsToPointEight(t *testing.T) {
	cfg := config.DefaultPipelineConfig().SemanticCompression
	cfg.MinConfidence = 0.75

	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `{"facts":[{"statement":"no confidence given"}]}`, nil
	}

	ex := New(extractFn, cfg)
	result := ex.ExtractAll(context.Background(), []*types.ConversationWindow{testWindow("w1")})

	require.Len(t, result.Facts, 1)
	assert.Equal(t, 0.8, result.Facts[0].Confidence)
}

func TestExtractAll_MalformedResponseAccumulatesRecoverableError(t *testing.T) {
	cfg := config.DefaultPipelineConfig().SemanticCompression

	extractFn := func(ctx context.Context, prompt string) (string, error) {
		return `not json`, nil
	}

	ex := New(extractFn, cfg)
	result := ex.ExtractAll(context.Background(), []*types.ConversationWindow{testWindow("w1")})

	assert.Empty(t, result.Facts)
	assert.Len(t, result.Errors, 1)
}
