package usecase

import (
	"hash/fnv"
	"sort"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// contentSignatureLen bounds how much text feeds the dedup key. Chunks
// produced by different variant queries with identical text collapse to one
// candidate. Known approximation: distinct chunks sharing a long common
// prefix (boilerplate headers) merge too.
const contentSignatureLen = 100

func contentSignature(text string) uint64 {
	runes := []rune(text)
	if len(runes) > contentSignatureLen {
		runes = runes[:contentSignatureLen]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(runes)))
	return h.Sum64()
}

type fusionSlot struct {
	candidate domain.ScoredCandidate
	order     int
}

// fuseCandidates merges the three strategy result lists into one
// deduplicated, weighted-score-sorted candidate list.
//
// Per dedup key the maximum observed score per side is kept, never summed,
// so feeding the same hit twice cannot inflate its rank. Ties in combined
// score preserve first-seen order.
func fuseCandidates(
	lexical, dense, variant []domain.ScoredCandidate,
	weights domain.FusionWeights,
	limit int,
) []domain.ScoredCandidate {
	acc := make(map[uint64]*fusionSlot, len(lexical)+len(dense)+len(variant))
	order := 0

	absorb := func(in []domain.ScoredCandidate) {
		for _, cand := range in {
			key := contentSignature(cand.Chunk.Text)
			slot, ok := acc[key]
			if !ok {
				slot = &fusionSlot{candidate: cand, order: order}
				order++
				acc[key] = slot
				continue
			}
			if cand.LexicalScore > slot.candidate.LexicalScore {
				slot.candidate.LexicalScore = cand.LexicalScore
			}
			if cand.DenseScore > slot.candidate.DenseScore {
				slot.candidate.DenseScore = cand.DenseScore
			}
		}
	}

	absorb(lexical)
	absorb(dense)
	absorb(variant)

	out := make([]domain.ScoredCandidate, 0, len(acc))
	slots := make([]*fusionSlot, 0, len(acc))
	for _, slot := range acc {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].order < slots[j].order })

	for _, slot := range slots {
		cand := slot.candidate
		cand.CombinedScore = weights.Dense*cand.DenseScore + weights.Lexical*cand.LexicalScore
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})

	if limit <= 0 {
		limit = domain.RetrievalTuning{}.EffectiveCap()
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
