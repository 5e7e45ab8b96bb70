package usecase

import (
	"strings"
	"testing"

	"github.com/lanewise/kbengine/internal/core/domain"
)

func candWithText(text string) domain.ScoredCandidate {
	return domain.ScoredCandidate{Chunk: domain.DocumentChunk{ID: text, Text: text, SourceFile: text + ".csv"}}
}

func TestFuseCandidatesCombinedScoreWeights(t *testing.T) {
	lex := candWithText("alpha")
	lex.LexicalScore = 2.0
	den := candWithText("alpha")
	den.DenseScore = 0.9

	fused := fuseCandidates(
		[]domain.ScoredCandidate{lex},
		[]domain.ScoredCandidate{den},
		nil,
		domain.FusionWeights{Dense: 0.7, Lexical: 0.3},
		8,
	)
	if len(fused) != 1 {
		t.Fatalf("expected dedup to one candidate, got %d", len(fused))
	}
	want := 0.7*0.9 + 0.3*2.0
	if diff := fused[0].CombinedScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("combined score = %v, want %v", fused[0].CombinedScore, want)
	}
}

func TestFuseCandidatesIdempotentUnderDuplicateInput(t *testing.T) {
	a := candWithText("chunk a")
	a.LexicalScore = 1.5
	b := candWithText("chunk b")
	b.LexicalScore = 0.5

	once := fuseCandidates([]domain.ScoredCandidate{a, b}, nil, nil, domain.DefaultFusionWeights(), 8)
	twice := fuseCandidates([]domain.ScoredCandidate{a, a, b}, nil, nil, domain.DefaultFusionWeights(), 8)

	if len(once) != len(twice) {
		t.Fatalf("duplicate input changed candidate count: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].CombinedScore != twice[i].CombinedScore {
			t.Fatalf("duplicate input changed score at %d: %v vs %v", i, once[i].CombinedScore, twice[i].CombinedScore)
		}
	}
}

func TestFuseCandidatesKeepsMaxScorePerSide(t *testing.T) {
	low := candWithText("same text either way")
	low.DenseScore = 0.4
	high := candWithText("same text either way")
	high.DenseScore = 0.8

	fused := fuseCandidates(nil, []domain.ScoredCandidate{low}, []domain.ScoredCandidate{high},
		domain.FusionWeights{Dense: 1.0}, 8)
	if len(fused) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(fused))
	}
	if fused[0].DenseScore != 0.8 {
		t.Fatalf("expected max dense score kept, got %v", fused[0].DenseScore)
	}
}

func TestFuseCandidatesDedupsByContentPrefix(t *testing.T) {
	shared := strings.Repeat("x", 120)
	first := candWithText(shared + " tail one")
	first.DenseScore = 0.6
	second := candWithText(shared + " tail two")
	second.DenseScore = 0.5

	fused := fuseCandidates(nil, []domain.ScoredCandidate{first, second}, nil, domain.DefaultFusionWeights(), 8)
	// Known approximation: a shared 100-char prefix merges distinct chunks.
	if len(fused) != 1 {
		t.Fatalf("expected prefix-sharing chunks to merge, got %d candidates", len(fused))
	}
}

func TestFuseCandidatesTieBreakFirstSeen(t *testing.T) {
	first := candWithText("first seen")
	first.DenseScore = 0.5
	second := candWithText("second seen")
	second.DenseScore = 0.5

	fused := fuseCandidates(nil, []domain.ScoredCandidate{first, second}, nil, domain.DefaultFusionWeights(), 8)
	if fused[0].Chunk.Text != "first seen" {
		t.Fatalf("expected first-seen candidate ranked first on tie, got %q", fused[0].Chunk.Text)
	}
}

func TestFuseCandidatesTruncatesToCap(t *testing.T) {
	var dense []domain.ScoredCandidate
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		c := candWithText(text)
		c.DenseScore = 0.5
		dense = append(dense, c)
	}

	fused := fuseCandidates(nil, dense, nil, domain.DefaultFusionWeights(), 3)
	if len(fused) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(fused))
	}
}

func TestFuseCandidatesMonotoneInEitherScore(t *testing.T) {
	weights := domain.FusionWeights{Dense: 0.7, Lexical: 0.3}
	base := candWithText("mono")
	base.LexicalScore = 1.0
	base.DenseScore = 0.5

	raised := base
	raised.DenseScore = 0.7

	baseFused := fuseCandidates(nil, []domain.ScoredCandidate{base}, nil, weights, 8)
	raisedFused := fuseCandidates(nil, []domain.ScoredCandidate{raised}, nil, weights, 8)
	if raisedFused[0].CombinedScore < baseFused[0].CombinedScore {
		t.Fatalf("combined score decreased when dense score rose: %v -> %v",
			baseFused[0].CombinedScore, raisedFused[0].CombinedScore)
	}

	raised = base
	raised.LexicalScore = 2.0
	raisedFused = fuseCandidates([]domain.ScoredCandidate{raised}, nil, nil, weights, 8)
	baseFused = fuseCandidates([]domain.ScoredCandidate{base}, nil, nil, weights, 8)
	if raisedFused[0].CombinedScore < baseFused[0].CombinedScore {
		t.Fatalf("combined score decreased when lexical score rose")
	}
}
