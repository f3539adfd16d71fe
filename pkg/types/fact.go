package types

import "time"

// AtomicFact is the smallest self-contained unit of memory: a single
// statement with coreferences resolved and relative time expressions
// normalised, meaningful without the conversation it was extracted from.
type AtomicFact struct {
	ID        string `json:"id"`
	Statement string `json:"statement"`

	Keywords []string `json:"keywords,omitempty"`
	Persons  []string `json:"persons,omitempty"`
	Entities []string `json:"entities,omitempty"`

	Topic     string     `json:"topic,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Location  string     `json:"location,omitempty"`

	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`

	// Level is 0 for facts extracted directly from a window, and k>0 for
	// facts consolidated from level k-1 (or lower) facts.
	Level int `json:"level"`

	// ParentClusterID identifies the cluster this fact summarises.
	// Present iff Level > 0.
	ParentClusterID string `json:"parent_cluster_id,omitempty"`

	// Provenance back-references, all nullable.
	SourceWindowID     string `json:"source_window_id,omitempty"`
	SourceSessionFile  string `json:"source_session_file,omitempty"`
	SourceChunkID      string `json:"source_chunk_id,omitempty"`

	// Entropy is the score of the window this fact was extracted from, if any.
	Entropy *float64 `json:"entropy,omitempty"`
}

// IsAtomic reports whether the fact was extracted directly from a window
// rather than consolidated from lower-level facts.
func (f *AtomicFact) IsAtomic() bool {
	return f.Level == 0
}

// Age returns how long ago the fact was extracted, relative to now.
func (f *AtomicFact) Age(now time.Time) time.Duration {
	return now.Sub(f.ExtractedAt)
}
