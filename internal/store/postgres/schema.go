// Package postgres implements store.Store on top of PostgreSQL via lib/pq,
// for deployments that need a shared store across multiple processes (the
// sqlite package's single-writer model does not extend across processes).
package postgres

// Schema contains the SQL statements that create the PostgreSQL schema.
// CREATE IF NOT EXISTS statements make opening an existing database
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS atomic_facts (
	id TEXT PRIMARY KEY,
	statement TEXT NOT NULL,
	keywords JSONB,
	persons JSONB,
	entities JSONB,
	topic TEXT,
	timestamp TIMESTAMPTZ,
	location TEXT,
	source_window_id TEXT,
	source_chunk_id TEXT,
	source_session_file TEXT,
	confidence REAL NOT NULL,
	entropy REAL,
	extracted_at BIGINT NOT NULL,
	level INTEGER NOT NULL DEFAULT 0,
	parent_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_atomic_facts_level ON atomic_facts(level);
CREATE INDEX IF NOT EXISTS idx_atomic_facts_topic ON atomic_facts(topic);
CREATE INDEX IF NOT EXISTS idx_atomic_facts_timestamp ON atomic_facts(timestamp);
CREATE INDEX IF NOT EXISTS idx_atomic_facts_parent_id ON atomic_facts(parent_id);

CREATE TABLE IF NOT EXISTS cluster_members (
	cluster_id TEXT NOT NULL,
	fact_id TEXT NOT NULL,
	PRIMARY KEY (cluster_id, fact_id)
);

CREATE INDEX IF NOT EXISTS idx_cluster_members_fact_id ON cluster_members(fact_id);

CREATE TABLE IF NOT EXISTS conversation_windows (
	id TEXT PRIMARY KEY,
	turns JSONB NOT NULL,
	start_index INTEGER NOT NULL,
	end_index INTEGER NOT NULL,
	entropy REAL,
	should_process BOOLEAN NOT NULL,
	processed_at BIGINT,
	source_session_file TEXT
);

CREATE INDEX IF NOT EXISTS idx_conversation_windows_processed_at ON conversation_windows(processed_at);

CREATE TABLE IF NOT EXISTS compression_stats (
	id TEXT PRIMARY KEY,
	input_tokens INTEGER,
	output_facts INTEGER,
	compression_ratio REAL,
	entropy_score REAL,
	processing_time_ms BIGINT,
	created_at BIGINT NOT NULL,
	source_session_file TEXT
);

CREATE INDEX IF NOT EXISTS idx_compression_stats_created_at ON compression_stats(created_at);

CREATE TABLE IF NOT EXISTS fact_embeddings (
	fact_id TEXT PRIMARY KEY REFERENCES atomic_facts(id) ON DELETE CASCADE,
	embedding BYTEA NOT NULL,
	dimension INTEGER NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// VectorSchema is applied only when the pgvector extension is available; it
// adds an embedding_vec column so embeddings can be compared with the
// native <=> cosine-distance operator instead of being decoded in Go.
const VectorSchema = `
ALTER TABLE fact_embeddings ADD COLUMN IF NOT EXISTS embedding_vec vector;
`
