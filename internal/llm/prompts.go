package llm

import (
	"strings"

	"github.com/wardenlabs/atomica/pkg/types"
)

// BuildExtractionPrompt renders a conversation window into the prompt the
// extraction model sees. The model is asked to return strict JSON matching
// FactExtractionResponse; ExtractJSON/ParseFactExtractionResponse tolerate
// the fenced-block and stray-prose deviations models produce in practice.
func BuildExtractionPrompt(window *types.ConversationWindow) string {
	var b strings.Builder
	b.WriteString("Extract atomic, self-contained facts from the following conversation excerpt.\n")
	b.WriteString("Each fact must stand on its own without needing the surrounding conversation for context.\n")
	b.WriteString("Return strict JSON only, no commentary, in this shape:\n")
	b.WriteString(`{"facts":[{"statement":"...","keywords":["..."],"persons":["..."],"entities":["..."],"topic":"...","timestamp":"...","location":"...","confidence":0.9}]}`)
	b.WriteString("\n\nConversation:\n")
	for _, turn := range window.Turns {
		b.WriteString(turn.Speaker)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// BuildConsolidationPrompt renders a fact cluster into the prompt the
// consolidation model sees. Unlike extraction, the expected response is
// plain prose: a single abstracted statement summarizing the cluster.
func BuildConsolidationPrompt(cluster *types.FactCluster) string {
	var b strings.Builder
	b.WriteString("The following facts were extracted separately but describe the same underlying topic.\n")
	b.WriteString("Write a single sentence that abstracts and unifies them, preserving every distinct detail they carry.\n")
	b.WriteString("Respond with the sentence only, no preamble.\n\n")
	for _, f := range cluster.Facts {
		b.WriteString("- ")
		b.WriteString(f.Statement)
		b.WriteString("\n")
	}
	return b.String()
}
