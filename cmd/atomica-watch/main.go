// Command atomica-watch runs a long-lived pipeline and exposes it over HTTP:
// a websocket feed of lifecycle events, plus small JSON endpoints for search
// and stats, so an operator can watch the memory engine work in real time.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardenlabs/atomica/internal/config"
	"github.com/wardenlabs/atomica/internal/entropy"
	"github.com/wardenlabs/atomica/internal/llm"
	"github.com/wardenlabs/atomica/internal/pipeline"
	"github.com/wardenlabs/atomica/internal/store"
	"github.com/wardenlabs/atomica/internal/store/postgres"
	"github.com/wardenlabs/atomica/internal/store/sqlite"
)

var (
	backend  = flag.String("backend", envOr("ATOMICA_BACKEND", "sqlite"), "Store backend: sqlite or postgres")
	dbPath   = flag.String("db", envOr("ATOMICA_DB_PATH", "./atomica.db"), "Path to the SQLite database file (backend=sqlite)")
	dsn      = flag.String("dsn", envOr("ATOMICA_DSN", ""), "Postgres connection string (backend=postgres)")
	addr     = flag.String("addr", envOr("ATOMICA_ADDR", ":8790"), "HTTP listen address")
	provider = flag.String("provider", envOr("ATOMICA_LLM_PROVIDER", "ollama"), "LLM provider: openai, anthropic, or ollama")
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
		log.Printf("atomica-watch: warning: %s provider health check failed: %v", provider, err)
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("atomica-watch: failed to load config: %v", err)
	}
	cfg.BackgroundConsolidation = true

	st, err := openStore()
	if err != nil {
		log.Fatalf("atomica-watch: failed to open store: %v", err)
	}
	defer st.Close()

	providerCfg := llm.ProviderConfig{
		Provider: *provider,
		APIKey:   envOr("ATOMICA_LLM_API_KEY", ""),
		BaseURL:  envOr("ATOMICA_LLM_BASE_URL", ""),
	}

	textGen, err := llm.NewTextGenerator(providerCfg)
	if err != nil {
		log.Fatalf("atomica-watch: failed to create LLM client: %v", err)
	}
	checkHealth(*provider, textGen)

	embedGen, err := llm.NewEmbeddingGenerator(providerCfg)
	if err != nil {
		log.Printf("atomica-watch: warning: no embedding client (%v)", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var embeddings entropy.EmbeddingSource
	if embedGen != nil {
		embeddings = llm.NewEmbeddingAdapter(ctx, embedGen)
	}

	p, err := pipeline.New(st, *cfg, llm.AsExtractFn(textGen), llm.AsConsolidateFn(textGen), embeddings)
	if err != nil {
		log.Fatalf("atomica-watch: failed to construct pipeline: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		log.Fatalf("atomica-watch: failed to start pipeline: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", p.Hub().ServeHTTP)
	mux.HandleFunc("/search", handleSearch(p))
	mux.HandleFunc("/stats", handleStats(p))

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		log.Printf("atomica-watch: listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("atomica-watch: server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("atomica-watch: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	p.Stop()
	cancel()
}

func handleSearch(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			http.Error(w, "missing q parameter", http.StatusBadRequest)
			return
		}
		result, err := p.Search(r.Context(), query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

func handleStats(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := p.Stats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("atomica-watch: failed to encode response: %v", err)
	}
}
