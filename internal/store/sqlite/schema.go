package sqlite

// Schema is the embedded DDL applied on every store open. CREATE statements
// use IF NOT EXISTS so opening an existing database is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS atomic_facts (
	id TEXT PRIMARY KEY,
	statement TEXT NOT NULL,
	keywords JSON,
	persons JSON,
	entities JSON,
	topic TEXT,
	timestamp TEXT,
	location TEXT,
	source_window_id TEXT,
	source_chunk_id TEXT,
	source_session_file TEXT,
	confidence REAL NOT NULL,
	entropy REAL,
	extracted_at INTEGER NOT NULL,
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
	turns JSON NOT NULL,
	start_index INTEGER NOT NULL,
	end_index INTEGER NOT NULL,
	entropy REAL,
	should_process INTEGER NOT NULL,
	processed_at INTEGER,
	source_session_file TEXT
);

CREATE INDEX IF NOT EXISTS idx_conversation_windows_processed_at ON conversation_windows(processed_at);

CREATE TABLE IF NOT EXISTS compression_stats (
	id TEXT PRIMARY KEY,
	input_tokens INTEGER,
	output_facts INTEGER,
	compression_ratio REAL,
	entropy_score REAL,
	processing_time_ms INTEGER,
	created_at INTEGER NOT NULL,
	source_session_file TEXT
);

CREATE INDEX IF NOT EXISTS idx_compression_stats_created_at ON compression_stats(created_at);
`
