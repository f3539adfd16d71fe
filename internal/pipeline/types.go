package pipeline

import (
	"github.com/wardenlabs/atomica/pkg/types"
)

// Summary is the result of a ProcessTranscript call.
type Summary struct {
	WindowsCreated   int                    `json:"windows_created"`
	WindowsProcessed int                    `json:"windows_processed"`
	FactsExtracted   int                    `json:"facts_extracted"`
	Stat             *types.CompressionStat `json:"stat"`
	Errors           []error                `json:"errors,omitempty"`
}

// ConsolidationSummary is the result of a RunConsolidation call.
type ConsolidationSummary struct {
	FactsConsolidated int     `json:"facts_consolidated"`
	NewFacts          int     `json:"new_facts"`
	CompressionRatio  float64 `json:"compression_ratio"`
	Errors            []error `json:"errors,omitempty"`
}

// PipelineStats is the result of a Stats call.
type PipelineStats struct {
	TotalFacts          int         `json:"total_facts"`
	FactsByLevel        map[int]int `json:"facts_by_level"`
	TotalWindows        int         `json:"total_windows"`
	AvgCompressionRatio float64     `json:"avg_compression_ratio"`

	ExtractorCircuit    CircuitStatus `json:"extractor_circuit"`
	ConsolidatorCircuit CircuitStatus `json:"consolidator_circuit"`
}

// CircuitStatus summarises an LLM circuit breaker's health for an operator
// watching the pipeline over atomica-watch's /stats endpoint.
type CircuitStatus struct {
	State               string `json:"state"`
	TotalRequests       uint64 `json:"total_requests"`
	TotalFailures       uint64 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}
