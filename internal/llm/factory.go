package llm

// ProviderConfig selects and configures a TextGenerator/EmbeddingGenerator
// pair, mirroring the three backends the pipeline can talk to.
type ProviderConfig struct {
	Provider       string // "openai", "anthropic", "ollama" (default)
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string
}

// NewTextGenerator builds the TextGenerator for cfg.Provider.
func NewTextGenerator(cfg ProviderConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model}), nil
	case "ollama", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "qwen2.5:7b"
		}
		return NewOllamaClient(OllamaConfig{BaseURL: baseURL, Model: model}), nil
	default:
		return nil, &UnsupportedProviderError{Provider: cfg.Provider}
	}
}

// NewEmbeddingGenerator builds the EmbeddingGenerator for cfg.Provider.
// Returns (nil, nil) for providers that don't support embeddings (Anthropic);
// the Entropy Filter falls back to the constant semantic_divergence in that case.
func NewEmbeddingGenerator(cfg ProviderConfig) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai":
		model := cfg.EmbeddingModel
		if model == "" {
			model = "text-embedding-3-small"
		}
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL}), nil
	case "ollama", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.EmbeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaClient(OllamaConfig{BaseURL: baseURL, Model: model}), nil
	default:
		return nil, nil
	}
}

// UnsupportedProviderError is returned when ProviderConfig.Provider names a
// backend this package doesn't implement.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return "llm: unsupported provider: " + e.Provider
}
