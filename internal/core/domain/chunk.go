package domain

import "time"

type ContentType string

const (
	ContentTabular  ContentType = "tabular"
	ContentAcademic ContentType = "academic"
	ContentSummary  ContentType = "summary"
	ContentGeneral  ContentType = "general"
)

// DocumentChunk is the immutable unit of retrievable text. Chunks are created
// once during corpus processing and consumed read-only by the query engine.
type DocumentChunk struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	SourceFile  string      `json:"source_file"`
	ContentType ContentType `json:"content_type"`
	ChunkIndex  int         `json:"chunk_index"`
	GlobalIndex int         `json:"global_index"`
	ModifiedAt  time.Time   `json:"modified_at"`
}

// ScoredCandidate pairs a chunk with its per-strategy retrieval scores.
// CombinedScore = Weights.Dense*DenseScore + Weights.Lexical*LexicalScore.
type ScoredCandidate struct {
	Chunk         DocumentChunk `json:"chunk"`
	LexicalScore  float64       `json:"lexical_score"`
	DenseScore    float64       `json:"dense_score"`
	CombinedScore float64       `json:"combined_score"`
}

// LexicalHit is a sparse-index match; the caller resolves ChunkID against the
// corpus it built the index from.
type LexicalHit struct {
	ChunkID string
	Score   float64
}

// DenseHit is a nearest-neighbor match from the vector index. Similarity is a
// normalized cosine score in [0, 1].
type DenseHit struct {
	Chunk      DocumentChunk
	Similarity float64
}

type FusionWeights struct {
	Dense   float64 `yaml:"dense" json:"dense"`
	Lexical float64 `yaml:"lexical" json:"lexical"`
}

// DefaultFusionWeights favors the semantic signal; the pair should sum to 1.0
// so combined scores stay comparable across queries.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Dense: 0.7, Lexical: 0.3}
}
