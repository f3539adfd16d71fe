package types

import "time"

// Turn is a single conversational turn fed into the pipeline.
type Turn struct {
	Speaker   string     `json:"speaker"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ConversationWindow is a contiguous, optionally overlapping slice of
// conversation turns that the entropy filter scores as a unit.
type ConversationWindow struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`

	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`

	// Entropy is nil until the filter has run on this window.
	Entropy *float64 `json:"entropy,omitempty"`

	ShouldProcess bool `json:"should_process"`

	SourceSessionFile string     `json:"source_session_file"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`
}

// ContentLength returns the total character length of all turn content in
// the window, used as the denominator in the entropy novelty score.
func (w *ConversationWindow) ContentLength() int {
	n := 0
	for _, t := range w.Turns {
		n += len(t.Content)
	}
	return n
}
