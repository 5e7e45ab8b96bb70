package usecase

import (
	"math"
	"strings"
	"testing"

	"github.com/lanewise/kbengine/internal/core/domain"
)

func confidenceCands(n int, files ...string) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, n)
	for i := 0; i < n; i++ {
		file := "a.csv"
		if len(files) > 0 {
			file = files[i%len(files)]
		}
		out = append(out, domain.ScoredCandidate{Chunk: domain.DocumentChunk{SourceFile: file}})
	}
	return out
}

func TestScoreConfidenceEmptyCandidatesIsFloor(t *testing.T) {
	if got := scoreConfidence("any answer at all", nil, nil); got != 0.1 {
		t.Fatalf("empty candidate set: got %v, want exactly 0.1", got)
	}
}

func TestScoreConfidenceHedgedAnswerScenario(t *testing.T) {
	hedges := domain.DefaultRetrievalTuning().HedgePhrases
	got := scoreConfidence("i don't have enough information", confidenceCands(2, "a.csv"), hedges)
	if math.Abs(got-0.35) > 1e-9 {
		t.Fatalf("hedged two-candidate scenario: got %v, want 0.35", got)
	}
}

func TestScoreConfidenceHedgePenaltyNotCumulative(t *testing.T) {
	hedges := domain.DefaultRetrievalTuning().HedgePhrases
	single := scoreConfidence("might be late", confidenceCands(4, "a.csv"), hedges)
	double := scoreConfidence("might be late, possibly early", confidenceCands(4, "a.csv"), hedges)
	if single != double {
		t.Fatalf("hedge penalty applied more than once: %v vs %v", single, double)
	}
}

func TestScoreConfidenceDiversityBonus(t *testing.T) {
	hedges := domain.DefaultRetrievalTuning().HedgePhrases
	narrow := scoreConfidence("short answer", confidenceCands(6, "a.csv"), hedges)
	diverse := scoreConfidence("short answer", confidenceCands(6, "a.csv", "b.csv", "c.csv"), hedges)
	if diff := diverse - narrow; math.Abs(diff-0.2) > 1e-9 {
		t.Fatalf("diversity bonus = %v, want 0.2", diff)
	}
}

func TestScoreConfidenceLengthFactor(t *testing.T) {
	cands := confidenceCands(4, "a.csv")
	short := scoreConfidence(strings.Repeat("word ", 10), cands, nil)
	medium := scoreConfidence(strings.Repeat("word ", 30), cands, nil)
	long := scoreConfidence(strings.Repeat("word ", 60), cands, nil)

	if math.Abs(medium-short-0.1) > 1e-9 {
		t.Fatalf("medium answer factor: %v vs %v", medium, short)
	}
	if math.Abs(long-short-0.2) > 1e-9 {
		t.Fatalf("long answer factor: %v vs %v", long, short)
	}
}

func TestScoreConfidenceAlwaysClamped(t *testing.T) {
	hedges := domain.DefaultRetrievalTuning().HedgePhrases
	inputs := []struct {
		answer string
		cands  []domain.ScoredCandidate
	}{
		{"", nil},
		{"possibly", confidenceCands(1, "a.csv")},
		{strings.Repeat("w ", 200), confidenceCands(50, "a", "b", "c", "d", "e")},
	}
	for _, in := range inputs {
		got := scoreConfidence(in.answer, in.cands, hedges)
		if got < 0.1 || got > 1.0 {
			t.Fatalf("confidence %v outside [0.1, 1.0] for %q", got, in.answer)
		}
	}
}
