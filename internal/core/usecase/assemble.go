package usecase

import (
	"fmt"
	"strings"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// confidenceHeaderMarker is the canonical header the generator is prompted
// to emit; when the raw answer already carries it the assembler leaves the
// text alone.
const confidenceHeaderMarker = "Confidence:"

// metricNarrationWindow is how far into the raw answer the assembler looks
// for existing best/worst narration before prepending its own.
const metricNarrationWindow = 200

const previewLen = 150

// assembleAnswer builds the final response from the generated text, the
// scored candidate set, and the extracted metric extremes.
func assembleAnswer(
	rawAnswer string,
	confidence float64,
	best, worst *domain.PerformanceMetric,
	candidates []domain.ScoredCandidate,
	notes []string,
) *domain.AnswerResponse {
	answer := strings.TrimSpace(rawAnswer)
	if !strings.Contains(answer, confidenceHeaderMarker) {
		answer = synthesizeHeader(answer, confidence, best, worst) + answer
	}

	sources := make([]domain.SourceRef, 0, len(candidates))
	for _, cand := range candidates {
		sources = append(sources, domain.SourceRef{
			File:        cand.Chunk.SourceFile,
			Preview:     previewText(cand.Chunk.Text),
			ContentType: cand.Chunk.ContentType,
			ChunkIndex:  cand.Chunk.ChunkIndex,
		})
	}

	return &domain.AnswerResponse{
		Answer:      answer,
		Confidence:  confidence,
		Sources:     sources,
		BestMetric:  best,
		WorstMetric: worst,
		Notes:       notes,
	}
}

func synthesizeHeader(answer string, confidence float64, best, worst *domain.PerformanceMetric) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.0f%%\n", confidenceHeaderMarker, confidence*100)

	if !narratesMetrics(answer) {
		if best != nil {
			b.WriteString("Best performer: " + formatMetricLine(*best) + "\n")
		}
		if worst != nil {
			b.WriteString("Worst performer: " + formatMetricLine(*worst) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// narratesMetrics reports whether the answer already discusses extremes in
// its opening, to avoid duplicate narration.
func narratesMetrics(answer string) bool {
	head := answer
	if len(head) > metricNarrationWindow {
		head = head[:metricNarrationWindow]
	}
	head = strings.ToLower(head)
	for _, word := range []string{"best", "highest", "worst", "lowest"} {
		if strings.Contains(head, word) {
			return true
		}
	}
	return false
}

func formatMetricLine(m domain.PerformanceMetric) string {
	var parts []string
	if m.Carrier != "" {
		parts = append(parts, m.Carrier)
	}
	if m.Lane != "" {
		parts = append(parts, "on "+m.Lane)
	}
	parts = append(parts, fmt.Sprintf("at %.2f%%", m.Value))
	if m.Named() {
		parts = append(parts, "("+m.Type+")")
	}
	return strings.Join(parts, " ")
}

func previewText(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen]) + "..."
}
