package usecase

import (
	"fmt"
	"strings"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// DefaultPromptTemplate is what the generator sees unless the deployment
// overrides it. The engine assumes nothing about the template beyond the
// two placeholders.
const DefaultPromptTemplate = `You are a freight operations analyst. Answer the question using only the context below.
If the context is insufficient, say so directly.

Context:
{context}

Question:
{question}
`

func renderAnswerPrompt(template, question string, candidates []domain.ScoredCandidate) string {
	var contextBuilder strings.Builder
	for idx, cand := range candidates {
		fmt.Fprintf(&contextBuilder,
			"[%d] file=%s type=%s score=%.3f\n%s\n\n",
			idx+1,
			cand.Chunk.SourceFile,
			cand.Chunk.ContentType,
			cand.CombinedScore,
			cand.Chunk.Text,
		)
	}

	prompt := strings.ReplaceAll(template, "{context}", strings.TrimRight(contextBuilder.String(), "\n"))
	return strings.ReplaceAll(prompt, "{question}", question)
}

// extractiveFallback stands in for the generator when it is unavailable:
// the top candidates are surfaced verbatim so the caller still gets the
// retrieved signal.
func extractiveFallback(candidates []domain.ScoredCandidate) string {
	if len(candidates) == 0 {
		return "No relevant information was found in this knowledge base."
	}
	var b strings.Builder
	b.WriteString("The answer service is unavailable; the most relevant passages are quoted instead.\n")
	limit := len(candidates)
	if limit > 3 {
		limit = 3
	}
	for _, cand := range candidates[:limit] {
		fmt.Fprintf(&b, "\n%s: %s\n", cand.Chunk.SourceFile, previewText(cand.Chunk.Text))
	}
	return b.String()
}
