package types

import "time"

// CompressionStat is one append-only record written per process_transcript
// call, capturing how much a transcript was compressed into facts.
type CompressionStat struct {
	ID                string    `json:"id"`
	InputTokens       int       `json:"input_tokens"`
	OutputFacts       int       `json:"output_facts"`
	CompressionRatio  float64   `json:"compression_ratio"`
	EntropyScore      float64   `json:"entropy_score"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
	CreatedAt         time.Time `json:"created_at"`
	SourceSessionFile string    `json:"source_session_file"`
}
