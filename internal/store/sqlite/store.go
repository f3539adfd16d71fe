// Package sqlite implements store.Store on top of modernc.org/sqlite, a
// pure-Go SQLite driver that needs no cgo. A single connection serialises
// writers; WAL mode lets readers proceed without blocking them.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wardenlabs/atomica/internal/store"
	"github.com/wardenlabs/atomica/pkg/types"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens a SQLite-backed Store with WAL self-healing. If the initial
// open fails because of stale -wal/-shm files left behind by a crashed
// process, it verifies no other process holds them and retries once after
// removing the stale sidecar files.
func New(dsn string) (*Store, error) {
	st, err := open(dsn)
	if err == nil {
		return st, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}
	if !isWALStale(dbPath) {
		return nil, err
	}
	removeStaleWAL(dbPath)

	st, retryErr := open(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return st, nil
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Exactly one writer to the store per process: a single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// PutWindow upserts a single conversation window.
func (s *Store) PutWindow(ctx context.Context, w *types.ConversationWindow) error {
	return s.putWindows(ctx, s.db, []*types.ConversationWindow{w})
}

// PutWindows upserts N windows in a single transaction.
func (s *Store) PutWindows(ctx context.Context, ws []*types.ConversationWindow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTx("put_windows", err)
	}
	if err := s.putWindows(ctx, tx, ws); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapTx("put_windows", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) putWindows(ctx context.Context, ex execer, ws []*types.ConversationWindow) error {
	const q = `
		INSERT INTO conversation_windows
			(id, turns, start_index, end_index, entropy, should_process, processed_at, source_session_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
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
			return fmt.Errorf("sqlite: failed to marshal turns: %w", err)
		}
		var entropy sql.NullFloat64
		if w.Entropy != nil {
			entropy = sql.NullFloat64{Float64: *w.Entropy, Valid: true}
		}
		var processedAt sql.NullInt64
		if w.ProcessedAt != nil {
			processedAt = sql.NullInt64{Int64: w.ProcessedAt.UnixMilli(), Valid: true}
		}
		if _, err := ex.ExecContext(ctx, q, w.ID, string(turnsJSON), w.StartIndex, w.EndIndex,
			entropy, boolToInt(w.ShouldProcess), processedAt, nullableString(w.SourceSessionFile)); err != nil {
			return wrapStoreIO("put_window", err)
		}
	}
	return nil
}

// PutFact upserts a single atomic fact.
func (s *Store) PutFact(ctx context.Context, f *types.AtomicFact) error {
	return s.putFacts(ctx, s.db, []*types.AtomicFact{f})
}

// PutFacts upserts N facts in a single transaction.
func (s *Store) PutFacts(ctx context.Context, fs []*types.AtomicFact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTx("put_facts", err)
	}
	if err := s.putFacts(ctx, tx, fs); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapTx("put_facts", err)
	}
	return nil
}

func (s *Store) putFacts(ctx context.Context, ex execer, fs []*types.AtomicFact) error {
	const q = `
		INSERT INTO atomic_facts
			(id, statement, keywords, persons, entities, topic, timestamp, location,
			 source_window_id, source_chunk_id, source_session_file,
			 confidence, entropy, extracted_at, level, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

		var ts sql.NullString
		if f.Timestamp != nil {
			ts = sql.NullString{String: f.Timestamp.UTC().Format(time.RFC3339), Valid: true}
		}
		var entropy sql.NullFloat64
		if f.Entropy != nil {
			entropy = sql.NullFloat64{Float64: *f.Entropy, Valid: true}
		}

		if _, err := ex.ExecContext(ctx, q, f.ID, f.Statement, string(kw), string(persons), string(entities),
			nullableString(f.Topic), ts, nullableString(f.Location),
			nullableString(f.SourceWindowID), nullableString(f.SourceChunkID), nullableString(f.SourceSessionFile),
			f.Confidence, entropy, f.ExtractedAt.UnixMilli(), f.Level, nullableString(f.ParentClusterID)); err != nil {
			return wrapStoreIO("put_fact", err)
		}
	}
	return nil
}

// PutStat appends a single compression stat row.
func (s *Store) PutStat(ctx context.Context, st *types.CompressionStat) error {
	if st == nil || st.ID == "" {
		return store.ErrInvalidInput
	}
	const q = `
		INSERT INTO compression_stats
			(id, input_tokens, output_facts, compression_ratio, entropy_score, processing_time_ms, created_at, source_session_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, q, st.ID, st.InputTokens, st.OutputFacts, st.CompressionRatio,
		st.EntropyScore, st.ProcessingTimeMs, st.CreatedAt.UnixMilli(), nullableString(st.SourceSessionFile)); err != nil {
		return wrapStoreIO("put_stat", err)
	}
	return nil
}

// GetRecentFacts returns up to limit facts ordered by extracted_at descending.
func (s *Store) GetRecentFacts(ctx context.Context, limit int) ([]*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+" ORDER BY extracted_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, wrapStoreIO("get_recent_facts", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// GetFactsByLevel returns all facts at exactly the given level.
func (s *Store) GetFactsByLevel(ctx context.Context, level int) ([]*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+" WHERE level = ?", level)
	if err != nil {
		return nil, wrapStoreIO("get_facts_by_level", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// GetAllFacts returns every stored fact.
func (s *Store) GetAllFacts(ctx context.Context) ([]*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect)
	if err != nil {
		return nil, wrapStoreIO("get_all_facts", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// GetFact returns a single fact by ID.
func (s *Store) GetFact(ctx context.Context, id string) (*types.AtomicFact, error) {
	rows, err := s.db.QueryContext(ctx, factSelect+" WHERE id = ?", id)
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
		return wrapTx("put_cluster_members", err)
	}
	const q = `INSERT INTO cluster_members (cluster_id, fact_id) VALUES (?, ?) ON CONFLICT(cluster_id, fact_id) DO NOTHING`
	for _, factID := range factIDs {
		if _, err := tx.ExecContext(ctx, q, clusterID, factID); err != nil {
			tx.Rollback()
			return wrapStoreIO("put_cluster_members", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapTx("put_cluster_members", err)
	}
	return nil
}

// GetClusterIDForFact returns the cluster factID was a member of.
func (s *Store) GetClusterIDForFact(ctx context.Context, factID string) (string, error) {
	var clusterID string
	err := s.db.QueryRowContext(ctx, `SELECT cluster_id FROM cluster_members WHERE fact_id = ? LIMIT 1`, factID).Scan(&clusterID)
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
	rows, err := s.db.QueryContext(ctx, factSelect+" WHERE parent_id = ?", clusterID)
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

// CountByLevel returns the number of facts stored at each level.
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

// AvgCompressionRatio returns the mean compression_ratio across all rows,
// or 0 if none exist.
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

// TotalWindows returns the number of stored conversation windows.
func (s *Store) TotalWindows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversation_windows`).Scan(&n)
	if err != nil {
		return 0, wrapStoreIO("total_windows", err)
	}
	return n, nil
}

// Clear removes all memory rows.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTx("clear", err)
	}
	for _, table := range []string{"atomic_facts", "cluster_members", "conversation_windows", "compression_stats"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return wrapStoreIO("clear", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapTx("clear", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const factSelect = `
	SELECT id, statement, keywords, persons, entities, topic, timestamp, location,
	       source_window_id, source_chunk_id, source_session_file,
	       confidence, entropy, extracted_at, level, parent_id
	FROM atomic_facts
`

func scanFacts(rows *sql.Rows) ([]*types.AtomicFact, error) {
	var out []*types.AtomicFact
	for rows.Next() {
		f := &types.AtomicFact{}
		var keywords, persons, entities string
		var topic, location, sourceWindowID, sourceChunkID, sourceSessionFile, parentID sql.NullString
		var ts sql.NullString
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
			if t, err := time.Parse(time.RFC3339, ts.String); err == nil {
				f.Timestamp = &t
			}
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func wrapTx(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

func wrapStoreIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.Error{Kind: types.KindIO, Op: op, Err: err}
}
