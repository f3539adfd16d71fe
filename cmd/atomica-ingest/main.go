// Command atomica-ingest runs a conversation transcript through the memory
// pipeline: windowing, entropy filtering, fact extraction, and an optional
// consolidation pass, then prints the resulting summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/internal/entropy"
	"github.com/wardenlabs/atomica/internal/llm"
	"github.com/wardenlabs/atomica/internal/pipeline"
	"github.com/wardenlabs/atomica/internal/store"
	"github.com/wardenlabs/atomica/internal/store/postgres"
	"github.com/wardenlabs/atomica/internal/store/sqlite"
	"github.com/wardenlabs/atomica/pkg/types"
)

var (
	backend     = flag.String("backend", envOr("ATOMICA_BACKEND", "sqlite"), "Store backend: sqlite or postgres")
	dbPath      = flag.String("db", envOr("ATOMICA_DB_PATH", "./atomica.db"), "Path to the SQLite database file (backend=sqlite)")
	dsn         = flag.String("dsn", envOr("ATOMICA_DSN", ""), "Postgres connection string (backend=postgres)")
	transcript  = flag.String("transcript", "", "Path to a JSON transcript file ({session_file, turns:[{speaker,content,timestamp?}]})")
	provider    = flag.String("provider", envOr("ATOMICA_LLM_PROVIDER", "ollama"), "LLM provider: openai, anthropic, or ollama")
	model       = flag.String("model", "", "Override the provider's default model")
	consolidate = flag.Bool("consolidate", false, "Run a consolidation pass after ingesting")
)

func openStore() (store.Store, error) {
	switch *backend {
	case "postgres":
		if *dsn == "" {
			return nil, fmt.Errorf("-dsn is required for backend=postgres")
		}
		return postgres.New(*dsn)
	case "sqlite", "":
		return sqlite.New(*dbPath)
	default:
		return nil, fmt.Errorf("unknown backend %q", *backend)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// checkHealth pings the backend before starting the pipeline, if the
// client supports it (only OllamaClient does; OpenAI and Anthropic are
// remote APIs we don't probe on startup).
func checkHealth(provider string, textGen llm.TextGenerator) {
	hc, ok := textGen.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hc.HealthCheck(ctx); err != nil {
		log.Printf("atomica-ingest: warning: %s provider health check failed: %v", provider, err)
	}
}

func main() {
	flag.Parse()

	if *transcript == "" {
		log.Fatalf("atomica-ingest: -transcript is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("atomica-ingest: failed to load config: %v", err)
	}

	st, err := openStore()
	if err != nil {
		log.Fatalf("atomica-ingest: failed to open store: %v", err)
	}
	defer st.Close()

	providerCfg := llm.ProviderConfig{
		Provider: *provider,
		APIKey:   envOr("ATOMICA_LLM_API_KEY", ""),
		Model:    *model,
		BaseURL:  envOr("ATOMICA_LLM_BASE_URL", ""),
	}

	textGen, err := llm.NewTextGenerator(providerCfg)
	if err != nil {
		log.Fatalf("atomica-ingest: failed to create LLM client: %v", err)
	}
	checkHealth(*provider, textGen)

	embedGen, err := llm.NewEmbeddingGenerator(providerCfg)
	if err != nil {
		log.Printf("atomica-ingest: warning: no embedding client (%v), entropy filter will use constant divergence", err)
	}

	var embeddings entropy.EmbeddingSource
	ctx := context.Background()
	if embedGen != nil {
		embeddings = llm.NewEmbeddingAdapter(ctx, embedGen)
	}

	p, err := pipeline.New(st, *cfg, llm.AsExtractFn(textGen), llm.AsConsolidateFn(textGen), embeddings)
	if err != nil {
		log.Fatalf("atomica-ingest: failed to construct pipeline: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		log.Fatalf("atomica-ingest: failed to start pipeline: %v", err)
	}
	defer p.Stop()

	sessionFile, turns, err := loadTranscript(*transcript)
	if err != nil {
		log.Fatalf("atomica-ingest: failed to load transcript: %v", err)
	}

	summary, err := p.ProcessTranscript(ctx, turns, sessionFile)
	if err != nil {
		log.Fatalf("atomica-ingest: process_transcript failed: %v", err)
	}
	printJSON(summary)

	if *consolidate {
		consolidationSummary, err := p.RunConsolidation(ctx)
		if err != nil {
			log.Fatalf("atomica-ingest: run_consolidation failed: %v", err)
		}
		printJSON(consolidationSummary)
	}
}

type transcriptFile struct {
	SessionFile string       `json:"session_file"`
	Turns       []types.Turn `json:"turns"`
}

func loadTranscript(path string) (string, []types.Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var t transcriptFile
	if err := json.Unmarshal(data, &t); err != nil {
		return "", nil, err
	}
	if t.SessionFile == "" {
		t.SessionFile = path
	}
	return t.SessionFile, t.Turns, nil
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("atomica-ingest: failed to marshal result: %v", err)
		return
	}
	fmt.Println(string(data))
}
