package usecase

import (
	"strings"

	"github.com/lanewise/kbengine/internal/core/domain"
)

const (
	confidenceFloor   = 0.1
	confidenceCeiling = 1.0
	confidenceBase    = 0.4
)

// scoreConfidence combines candidate-set statistics with answer-text
// signals. The result is clamped to [0.1, 1.0]; an empty candidate set is
// exactly the floor so "nothing found" never reads as partial confidence.
func scoreConfidence(answerText string, candidates []domain.ScoredCandidate, hedges []string) float64 {
	if len(candidates) == 0 {
		return confidenceFloor
	}

	coverage := float64(len(candidates)) / 4.0
	if coverage > 1.0 {
		coverage = 1.0
	}
	score := confidenceBase + coverage*0.3

	// Three or more distinct source files is treated as a diverse result set.
	if uniqueSourceFiles(candidates) >= 3 {
		score += 0.2
	}

	switch words := len(strings.Fields(answerText)); {
	case words > 50:
		score += 0.2
	case words > 20:
		score += 0.1
	}

	// The hedge penalty is flat, applied once no matter how many phrases hit.
	lower := strings.ToLower(answerText)
	for _, phrase := range hedges {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			score -= 0.2
			break
		}
	}

	if score < confidenceFloor {
		return confidenceFloor
	}
	if score > confidenceCeiling {
		return confidenceCeiling
	}
	return score
}

func uniqueSourceFiles(candidates []domain.ScoredCandidate) int {
	seen := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		if cand.Chunk.SourceFile == "" {
			continue
		}
		seen[cand.Chunk.SourceFile] = struct{}{}
	}
	return len(seen)
}
