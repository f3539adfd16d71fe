package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log"
	"math"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/wardenlabs/atomica/internal/store"
)

// EmbeddingProvider stores and compares fact embeddings. Nothing in the
// pipeline calls it: the Entropy Filter takes its vectors from an
// entropy.EmbeddingSource, not from stored embeddings.
type EmbeddingProvider struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewEmbeddingProvider wraps db. pgvectorAvailable should match the value
// returned when the Store was opened.
func NewEmbeddingProvider(db *sql.DB, pgvectorAvailable bool) *EmbeddingProvider {
	return &EmbeddingProvider{db: db, pgvectorAvailable: pgvectorAvailable}
}

// StoreEmbedding persists the embedding for factID. It is always written to
// the BYTEA column; when pgvector is available it is also written to
// embedding_vec so similarity queries can use the native distance operator.
func (p *EmbeddingProvider) StoreEmbedding(ctx context.Context, factID string, embedding []float64, dimension int, model string) error {
	if factID == "" {
		return fmt.Errorf("%w: fact ID is required", store.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", store.ErrInvalidInput)
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", store.ErrInvalidInput)
	}
	if model == "" {
		return fmt.Errorf("%w: model is required", store.ErrInvalidInput)
	}
	if len(embedding) != dimension {
		return fmt.Errorf("%w: embedding length (%d) does not match dimension (%d)",
			store.ErrInvalidInput, len(embedding), dimension)
	}

	embeddingBytes := serializeEmbedding(embedding)

	if p.pgvectorAvailable {
		f32 := make([]float32, len(embedding))
		for i, v := range embedding {
			f32[i] = float32(v)
		}
		vec := pgvector.NewVector(f32)

		const q = `
			INSERT INTO fact_embeddings (fact_id, embedding, dimension, model, embedding_vec, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT(fact_id) DO UPDATE SET
				embedding = excluded.embedding,
				dimension = excluded.dimension,
				model = excluded.model,
				embedding_vec = excluded.embedding_vec
		`
		if _, err := p.db.ExecContext(ctx, q, factID, embeddingBytes, dimension, model, vec); err == nil {
			return nil
		} else {
			log.Printf("postgres: failed to store embedding_vec (falling back to BYTEA only): %v", err)
		}
	}

	const q = `
		INSERT INTO fact_embeddings (fact_id, embedding, dimension, model, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT(fact_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model
	`
	if _, err := p.db.ExecContext(ctx, q, factID, embeddingBytes, dimension, model); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// GetEmbedding returns the embedding stored for factID, or store.ErrNotFound.
func (p *EmbeddingProvider) GetEmbedding(ctx context.Context, factID string) ([]float64, error) {
	if factID == "" {
		return nil, fmt.Errorf("%w: fact ID is required", store.ErrInvalidInput)
	}

	const q = `SELECT embedding, dimension FROM fact_embeddings WHERE fact_id = $1`

	var embeddingBytes []byte
	var dimension int
	if err := p.db.QueryRowContext(ctx, q, factID).Scan(&embeddingBytes, &dimension); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	return deserializeEmbedding(embeddingBytes, dimension)
}

// DeleteEmbedding removes the embedding for factID, or returns store.ErrNotFound.
func (p *EmbeddingProvider) DeleteEmbedding(ctx context.Context, factID string) error {
	if factID == "" {
		return fmt.Errorf("%w: fact ID is required", store.ErrInvalidInput)
	}

	result, err := p.db.ExecContext(ctx, `DELETE FROM fact_embeddings WHERE fact_id = $1`, factID)
	if err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CosineSimilarity returns the cosine similarity between two embeddings of
// equal length, used by the Entropy Filter to derive semantic_divergence as
// 1 - cosine_similarity.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func serializeEmbedding(embedding []float64) []byte {
	buf := make([]byte, len(embedding)*8)
	for i, v := range embedding {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func deserializeEmbedding(buf []byte, dimension int) ([]float64, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	expectedSize := dimension * 8
	if len(buf) != expectedSize {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", expectedSize, len(buf))
	}
	embedding := make([]float64, dimension)
	for i := 0; i < dimension; i++ {
		embedding[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return embedding, nil
}
