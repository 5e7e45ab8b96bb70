package domain

import "time"

// RetrievalTuning is the externally configurable surface of the answer
// engine. All values here are heuristics, not invariants; they can be
// overridden from a YAML file without code changes.
type RetrievalTuning struct {
	Weights      FusionWeights `yaml:"weights"`
	CandidateCap int           `yaml:"candidate_cap"`

	// Content-type boosts compose multiplicatively with the recency boost.
	ContentTypeBoosts map[ContentType]float64 `yaml:"content_type_boosts"`
	RecencyBoost      float64                 `yaml:"recency_boost"`
	RecencyCutoff     time.Duration           `yaml:"recency_cutoff"`

	Carriers     []string `yaml:"carriers"`
	Indicators   []string `yaml:"indicators"`
	HedgePhrases []string `yaml:"hedge_phrases"`
}

func DefaultRetrievalTuning() RetrievalTuning {
	return RetrievalTuning{
		Weights:      DefaultFusionWeights(),
		CandidateCap: 8,
		ContentTypeBoosts: map[ContentType]float64{
			ContentSummary:  1.2,
			ContentAcademic: 1.1,
		},
		RecencyBoost:  1.05,
		RecencyCutoff: 30 * 24 * time.Hour,
		Carriers: []string{
			"ODFL", "FEDEX", "UPS", "XPO", "SAIA", "ESTES", "ABF", "YRC", "RLC", "TFORCE",
		},
		Indicators: []string{
			"on-time performance", "on time performance", "delivery performance",
			"acceptance rate", "tender acceptance", "on-time delivery", "claims ratio",
		},
		HedgePhrases: []string{
			"cannot find information", "could not find", "don't have enough information",
			"do not have enough information", "might be", "possibly", "not sure",
			"unclear", "no relevant information", "unable to determine",
		},
	}
}

// EffectiveCap bounds how many fused candidates flow downstream.
func (t RetrievalTuning) EffectiveCap() int {
	if t.CandidateCap <= 0 {
		return 8
	}
	return t.CandidateCap
}
