package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/wardenlabs/atomica/internal/store"
	"github.com/wardenlabs/atomica/pkg/types"
)

// Store implements store.Store using PostgreSQL. Unlike the sqlite
// implementation it does not restrict itself to a single connection: lib/pq
// and PostgreSQL both handle concurrent writers, serialising conflicting
// updates at the row level.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// New opens a PostgreSQL-backed Store and applies the schema. If the
// pgvector extension is present, the optional vector column is added so
// embedding comparisons can use native distance operators.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	pgvectorAvailable := false
	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err == nil {
		if _, err := db.Exec(VectorSchema); err == nil {
			pgvectorAvailable = true
		}
	}

	return &Store{db: db, pgvectorAvailable: pgvectorAvailable}, nil
}

func (s *Store) PutWindow(ctx context.Context, w *types.ConversationWindow) error {
	return s.putWindows(ctx, s.db, []*types.ConversationWindow{w})
}

func (s *Store) PutWindows(ctx context.Context, ws []*types.ConversationWindow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: put_windows: %w", err)
	}
	if err := s.putWindows(ctx, tx, ws); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) putWindows(ctx context.Context, ex execer, ws []*types.ConversationWindow) error {
	const q = `
		INSERT INTO conversation_windows
			(id, turns, start_index, end_index, entropy, should_process, processed_at, source_session_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT(id) DO UPDATE SET
			turns = excluded.turns,
			start_index = excluded.start_index,
			end_index = excluded.end_index,
			entropy = excluded.entropy,
			should_process = excluded.should_process,
			processed_at = excluded.processed_at,
			source_session_file = excluded.source_session_file
	`
	for _, w := range ws {
		if w == nil || w.ID == "" {
			return store.ErrInvalidInput
		}
		turnsJSON, err := json.Marshal(w.Turns)
		if err != nil {
			return fmt.Errorf("postgres: failed to marshal turns: %w", err)
		}
		var processedAt sql.NullInt64
		if w.ProcessedAt != nil {
			processedAt = sql.NullInt64{Int64: w.ProcessedAt.UnixMilli(), Valid: true}
		}
		if _, err := ex.ExecContext(ctx, q, w.ID, string(turnsJSON), w.StartIndex, w.EndIndex,
			nullableFloat(w.Entropy), w.ShouldProcess, processedAt, nullableString(w.SourceSessionFile)); err != nil {
			return wrapStoreIO("put_window", err)
		}
	}
	return nil
}

func (s *Store) PutFact(ctx context.Context, f *types.AtomicFact) error {
	return s.putFacts(ctx, s.db, []*types.AtomicFact{f})
}

func (s *Store) PutFacts(ctx context.Context, fs []*types.AtomicFact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: put_facts: %w", err)
	}
	if err := s.putFacts(ctx, tx, fs); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) putFacts(ctx context.Context, ex execer, fs []*types.AtomicFact) error {
	const q = `
		INSERT INTO atomic_facts
			(id, statement, keywords, persons, entities, topic, timestamp, location,
			 source_window_id, source_chunk_id, source_session_file,
			 confidence, entropy, extracted_at, level, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT(id) DO UPDATE SET
			statement = excluded.statement,
			keywords = excluded.keywords,
			persons = excluded.persons,
			entities = excluded.entities,
			topic = excluded.topic,
			timestamp = excluded.timestamp,
			location = excluded.location,
			confidence = excluded.confidence,
			entropy = excluded.entropy,
			level = excluded.level,
			parent_id = excluded.parent_id
	`
	for _, f := range fs {
		if f == nil || f.ID == "" || f.Statement == "" {
			return store.ErrInvalidInput
		}
		kw, _ := json.Marshal(f.Keywords)
		persons, _ := json.Marshal(f.Persons)
		entities, _ := json.Marshal(f.Entities)

		var ts sql.NullTime
		if f.Timestamp != nil {
			ts = sql.NullTime{Time: *f.Timestamp, Valid: true}
		}

		if _, err := ex.ExecContext(ctx, q, f.ID, f.Statement, string(kw), string(persons), string(entities),
			nullableString(f.Topic), ts, nullableString(f.Location),
			nullableString(f.SourceWindowID), nullableString(f.SourceChunkID), nullableString(f.SourceSessionFile),
			f.Confidence, nullableFloat(f.Entropy), f.ExtractedAt.UnixMilli(), f.Level, nullableString(f.ParentClusterID)); err != nil {
			return wrapStoreIO("put_fact", err)
		}
	}
	return nil
}

func (s *Store) PutStat(ctx context.Context, st *types.CompressionStat) error {
	if st == nil || st.ID == "" {
		return store.ErrInvalidInput
	}
	const q = `
		INSERT INTO compression_stats
			(id, input_tokens, output_facts, compression_ratio, entropy_score, processing_time_ms, created_at, source_session_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, q, st.ID, st.InputTokens, st.OutputFacts, st.CompressionRatio,
		st.EntropyScore, st.ProcessingTimeMs, st.CreatedAt.UnixMilli(), nullableString(st.SourceSessionFile)); err != nil {
		return wrapStoreIO("put_stat", err)
	}
	return nil
}

const factSelect = `
	SELECT id, statement, keywords, persons, entities, topic, timestamp, location,
	       source_window_id, source_chunk_id, source_session_file,
	       confidence, entropy, extracted_at, level, parent_id
	FROM atomic_facts
`

func (s *Store) GetRecentFacts(ctx context.Context, limit int) ([]*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+" ORDER BY extracted_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, wrapStoreIO("get_recent_facts", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func (s *Store) GetFactsByLevel(ctx context.Context, level int) ([]*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+" WHERE level = $1", level)
	if err != nil {
		return nil, wrapStoreIO("get_facts_by_level", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func (s *Store) GetAllFacts(ctx context.Context) ([]*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect)
	if err != nil {
		return nil, wrapStoreIO("get_all_facts", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func (s *Store) GetFact(ctx context.Context, id string) (*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+" WHERE id = $1", id)
	if err != nil {
		return nil, wrapStoreIO("get_fact", err)
	}
	defer rows.Close()
	facts, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, store.ErrNotFound
	}
	return facts[0], nil
}

// PutClusterMembers persists the membership rows for one cluster in a
// single transaction.
func (s *Store) PutClusterMembers(ctx context.Context, clusterID string, factIDs []string) error {
	if clusterID == "" || len(factIDs) == 0 {
		return store.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: put_cluster_members: %w", err)
	}
	const q = `INSERT INTO cluster_members (cluster_id, fact_id) VALUES ($1, $2) ON CONFLICT(cluster_id, fact_id) DO NOTHING`
	for _, factID := range factIDs {
		if _, err := tx.ExecContext(ctx, q, clusterID, factID); err != nil {
			tx.Rollback()
			return wrapStoreIO("put_cluster_members", err)
		}
	}
	return tx.Commit()
}

// GetClusterIDForFact returns the cluster factID was a member of.
func (s *Store) GetClusterIDForFact(ctx context.Context, factID string) (string, error) {
	var clusterID string
	err := s.db.QueryRowContext(ctx, `SELECT cluster_id FROM cluster_members WHERE fact_id = $1 LIMIT 1`, factID).Scan(&clusterID)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", wrapStoreIO("get_cluster_id_for_fact", err)
	}
	return clusterID, nil
}

// GetFactByParentClusterID returns the fact that consolidated clusterID.
func (s *Store) GetFactByParentClusterID(ctx context.Context, clusterID string) (*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+" WHERE parent_id = $1", clusterID)
	if err != nil {
		return nil, wrapStoreIO("get_fact_by_parent_cluster_id", err)
	}
	defer rows.Close()
	facts, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, store.ErrNotFound
	}
	return facts[0], nil
}

func (s *Store) CountByLevel(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT level, COUNT(*) FROM atomic_facts GROUP BY level`)
	if err != nil {
		return nil, wrapStoreIO("count_by_level", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, wrapStoreIO("count_by_level", err)
		}
		counts[level] = count
	}
	return counts, rows.Err()
}

func (s *Store) AvgCompressionRatio(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT AVG(compression_ratio) FROM compression_stats`).Scan(&avg)
	if err != nil {
		return 0, wrapStoreIO("avg_compression_ratio", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func (s *Store) TotalWindows(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_windows`).Scan(&n); err != nil {
		return 0, wrapStoreIO("total_windows", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	for _, table := range []string{"fact_embeddings", "atomic_facts", "cluster_members", "conversation_windows", "compression_stats"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return wrapStoreIO("clear", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanFacts(rows *sql.Rows) ([]*types.AtomicFact, error) {
	var out []*types.AtomicFact
	for rows.Next() {
		f := &types.AtomicFact{}
		var keywords, persons, entities string
		var topic, location, sourceWindowID, sourceChunkID, sourceSessionFile, parentID sql.NullString
		var ts sql.NullTime
		var entropy sql.NullFloat64
		var extractedAtMs int64

		if err := rows.Scan(&f.ID, &f.Statement, &keywords, &persons, &entities, &topic, &ts, &location,
			&sourceWindowID, &sourceChunkID, &sourceSessionFile, &f.Confidence, &entropy, &extractedAtMs,
			&f.Level, &parentID); err != nil {
			return nil, wrapStoreIO("scan_fact", err)
		}

		_ = json.Unmarshal([]byte(keywords), &f.Keywords)
		_ = json.Unmarshal([]byte(persons), &f.Persons)
		_ = json.Unmarshal([]byte(entities), &f.Entities)

		f.Topic = topic.String
		f.Location = location.String
		f.SourceWindowID = sourceWindowID.String
		f.SourceChunkID = sourceChunkID.String
		f.SourceSessionFile = sourceSessionFile.String
		f.ParentClusterID = parentID.String
		f.ExtractedAt = time.UnixMilli(extractedAtMs).UTC()

		if ts.Valid {
			t := ts.Time
			f.Timestamp = &t
		}
		if entropy.Valid {
			v := entropy.Float64
			f.Entropy = &v
		}

		out = append(out, f)
	}
	return out, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func wrapStoreIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.Error{Kind: types.KindIO, Op: op, Err: err}
}
