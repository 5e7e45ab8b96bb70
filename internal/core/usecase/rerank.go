package usecase

import (
	"sort"
	"time"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// rerankCandidates applies metadata-driven score adjustments in place of
// order: boosts mutate CombinedScore but preserve slice positions; callers
// re-sort when they want rank to follow.
//
// The boosts favor curated summary and academic content over raw tabular
// dumps when scores are close, and slightly prefer fresh data. Both are
// tunable heuristics from RetrievalTuning, not correctness guarantees.
func rerankCandidates(
	candidates []domain.ScoredCandidate,
	tuning domain.RetrievalTuning,
	now time.Time,
) []domain.ScoredCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	cutoff := time.Time{}
	if tuning.RecencyCutoff > 0 {
		cutoff = now.Add(-tuning.RecencyCutoff)
	}

	out := make([]domain.ScoredCandidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		boost := 1.0
		if b, ok := tuning.ContentTypeBoosts[out[i].Chunk.ContentType]; ok && b > 0 {
			boost *= b
		}
		if tuning.RecencyBoost > 0 && !cutoff.IsZero() && out[i].Chunk.ModifiedAt.After(cutoff) {
			boost *= tuning.RecencyBoost
		}
		out[i].CombinedScore *= boost
	}
	return out
}

// resortByCombinedScore restores rank order after rerank boosts; stable so
// equal scores keep their pre-boost relative order.
func resortByCombinedScore(candidates []domain.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CombinedScore > candidates[j].CombinedScore
	})
}
