package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// maxPassageWords caps each passage sent to the LLM.
const maxPassageWords = 400

// formatPassages numbers results from 1 for LLM prompts.
func formatPassages(results []domain.RetrievalResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] ", i+1)
		if title := r.Chunk.Book.Title; title != "" {
			b.WriteString("(" + title)
			if r.Chunk.SectionName != "" {
				b.WriteString(", " + r.Chunk.SectionName)
			}
			b.WriteString(") ")
		}
		b.WriteString(clipWords(r.Chunk.Text, maxPassageWords))
	}
	return b.String()
}

func clipWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " ..."
}
