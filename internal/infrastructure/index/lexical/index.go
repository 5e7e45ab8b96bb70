package lexical

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

const (
	bm25K1        = 1.2
	bm25B         = 0.75
	filenameBoost = 1.5
)

// Builder constructs immutable in-memory indexes from a corpus snapshot.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Build tokenizes every chunk, computes smoothed IDF over the corpus, and
// returns an index that is safe for concurrent reads. An empty corpus is a
// hard failure for the knowledge base.
func (b *Builder) Build(chunks []domain.DocumentChunk) (ports.LexicalIndex, error) {
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "build lexical index", errors.New("empty corpus"))
	}

	docs := make([]indexedDoc, 0, len(chunks))
	df := make(map[string]int)
	totalLen := 0

	for _, chunk := range chunks {
		doc := buildDoc(chunk)
		docs = append(docs, doc)
		totalLen += doc.length
		for term := range doc.tf {
			df[term]++
		}
	}

	n := len(docs)
	idf := make(map[string]float64, len(df))
	for term, docFreq := range df {
		idf[term] = math.Log(float64(n+1)/float64(docFreq+1)) + 1.0
	}

	return &Index{
		docs:   docs,
		idf:    idf,
		avgLen: float64(totalLen) / float64(n),
	}, nil
}

type indexedDoc struct {
	chunkID string
	tf      map[string]float64
	length  int
}

// Index is an immutable term-frequency index over one corpus snapshot.
type Index struct {
	docs   []indexedDoc
	idf    map[string]float64
	avgLen float64
}

// Search scores every chunk against the query and returns the top k hits,
// scores normalized so the best hit is 1.0. Ties keep corpus order.
func (idx *Index) Search(query string, k int) []domain.LexicalHit {
	if k <= 0 {
		return nil
	}
	terms := tokenizeAlphaNum(query)
	if len(terms) == 0 {
		return nil
	}

	unique := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		unique[t] = struct{}{}
	}

	hits := make([]domain.LexicalHit, 0, len(idx.docs))
	var maxScore float64
	for _, doc := range idx.docs {
		score := idx.scoreDoc(unique, doc)
		if score <= 0 {
			continue
		}
		hits = append(hits, domain.LexicalHit{ChunkID: doc.chunkID, Score: score})
		if score > maxScore {
			maxScore = score
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	if maxScore > 0 {
		for i := range hits {
			hits[i].Score /= maxScore
		}
	}
	return hits
}

func (idx *Index) scoreDoc(queryTerms map[string]struct{}, doc indexedDoc) float64 {
	dl := float64(doc.length)
	var score float64
	for term := range queryTerms {
		tf, ok := doc.tf[term]
		if !ok {
			continue
		}
		termIDF, ok := idx.idf[term]
		if !ok {
			continue
		}
		lengthNorm := bm25K1
		if idx.avgLen > 0 {
			lengthNorm = bm25K1 * (1.0 - bm25B + bm25B*dl/idx.avgLen)
		}
		score += termIDF * (tf * (bm25K1 + 1)) / (tf + lengthNorm)
	}
	return score
}

func buildDoc(chunk domain.DocumentChunk) indexedDoc {
	tf := make(map[string]float64, 32)
	tokens := tokenizeAlphaNum(chunk.Text)
	for _, t := range tokens {
		tf[t]++
	}
	// Filename terms carry extra weight so "shelby" finds the Shelby lane
	// sheet even when the chunk body never repeats the name.
	for _, t := range tokenizeAlphaNum(chunk.SourceFile) {
		tf[t] += filenameBoost
	}
	return indexedDoc{
		chunkID: chunk.ID,
		tf:      tf,
		length:  len(tokens),
	}
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
