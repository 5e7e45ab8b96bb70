package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

const noCandidatesAnswer = "I could not find relevant information in this knowledge base for that question."

// QueryMetricsRecorder receives per-query engine observations. Implemented
// by observability/metrics; nil-safe via noopQueryMetrics.
type QueryMetricsRecorder interface {
	ObserveQuery(outcome string, duration time.Duration, fusedCandidates int, confidence float64)
	StrategyFailure(strategy string)
}

type noopQueryMetrics struct{}

func (noopQueryMetrics) ObserveQuery(string, time.Duration, int, float64) {}
func (noopQueryMetrics) StrategyFailure(string)                          {}

// AnswerQueryUseCase runs the full retrieval pipeline for one query:
// variant expansion, three parallel retrieval strategies, fusion, rerank,
// generation, metric extraction, confidence scoring, and assembly.
type AnswerQueryUseCase struct {
	handles   *HandleRegistry
	embedder  ports.Embedder
	dense     ports.DenseIndex
	generator ports.AnswerGenerator
	extractor *MetricExtractor

	tuning          domain.RetrievalTuning
	promptTemplate  string
	strategyTimeout time.Duration
	fetchLimit      int
	metrics         QueryMetricsRecorder
}

type AnswerQueryOption func(*AnswerQueryUseCase)

func WithPromptTemplate(template string) AnswerQueryOption {
	return func(uc *AnswerQueryUseCase) {
		if strings.TrimSpace(template) != "" {
			uc.promptTemplate = template
		}
	}
}

func WithStrategyTimeout(timeout time.Duration) AnswerQueryOption {
	return func(uc *AnswerQueryUseCase) {
		if timeout > 0 {
			uc.strategyTimeout = timeout
		}
	}
}

func WithFetchLimit(limit int) AnswerQueryOption {
	return func(uc *AnswerQueryUseCase) {
		if limit > 0 {
			uc.fetchLimit = limit
		}
	}
}

func WithQueryMetrics(recorder QueryMetricsRecorder) AnswerQueryOption {
	return func(uc *AnswerQueryUseCase) {
		if recorder != nil {
			uc.metrics = recorder
		}
	}
}

func NewAnswerQueryUseCase(
	handles *HandleRegistry,
	embedder ports.Embedder,
	dense ports.DenseIndex,
	generator ports.AnswerGenerator,
	tuning domain.RetrievalTuning,
	opts ...AnswerQueryOption,
) *AnswerQueryUseCase {
	uc := &AnswerQueryUseCase{
		handles:         handles,
		embedder:        embedder,
		dense:           dense,
		generator:       generator,
		extractor:       NewMetricExtractor(tuning),
		tuning:          tuning,
		promptTemplate:  DefaultPromptTemplate,
		strategyTimeout: 10 * time.Second,
		fetchLimit:      20,
		metrics:         noopQueryMetrics{},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// AnswerQuery always returns a response for a usable knowledge base; a
// degraded strategy shows up as a processing note, not an error. Only an
// unusable knowledge base (missing, or empty corpus) fails hard.
func (uc *AnswerQueryUseCase) AnswerQuery(ctx context.Context, kbID, query string) (*domain.AnswerResponse, error) {
	started := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", errors.New("query is empty"))
	}

	handle, err := uc.handles.Handle(ctx, kbID)
	if err != nil {
		uc.metrics.ObserveQuery("index_unavailable", time.Since(started), 0, 0)
		return nil, err
	}

	lexical, dense, variant, notes := uc.retrieve(ctx, handle, query)

	fused := fuseCandidates(lexical, dense, variant, uc.tuning.Weights, uc.tuning.EffectiveCap())
	if len(fused) == 0 {
		confidence := scoreConfidence("", nil, nil)
		uc.metrics.ObserveQuery("no_candidates", time.Since(started), 0, confidence)
		return assembleAnswer(noCandidatesAnswer, confidence, nil, nil, nil,
			append(notes, "no candidates retrieved by any strategy")), nil
	}

	reranked := rerankCandidates(fused, uc.tuning, time.Now().UTC())
	resortByCombinedScore(reranked)

	answerText, err := uc.generator.GenerateFromPrompt(ctx, renderAnswerPrompt(uc.promptTemplate, query, reranked))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		uc.metrics.StrategyFailure("generator")
		notes = append(notes, fmt.Sprintf("answer generator degraded: %v", err))
		answerText = extractiveFallback(reranked)
	}

	records := make([]domain.PerformanceMetric, 0, len(reranked))
	for _, cand := range reranked {
		records = append(records, uc.extractor.Extract(cand.Chunk.Text, cand.Chunk.SourceFile)...)
	}
	records = append(records, uc.extractor.Extract(answerText, "")...)
	best, worst := SelectBestWorst(records)

	confidence := scoreConfidence(answerText, reranked, uc.tuning.HedgePhrases)
	uc.metrics.ObserveQuery("answered", time.Since(started), len(reranked), confidence)

	return assembleAnswer(answerText, confidence, best, worst, reranked, notes), nil
}

// retrieve runs the three strategies concurrently and joins them. A failed
// or timed-out strategy degrades to an empty list plus a note; the fuser
// always sees all three results.
func (uc *AnswerQueryUseCase) retrieve(
	ctx context.Context,
	handle *KnowledgeHandle,
	query string,
) (lexical, dense, variant []domain.ScoredCandidate, notes []string) {
	variants := ExpandQueryVariants(query)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	note := func(format string, args ...any) {
		mu.Lock()
		notes = append(notes, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		for _, hit := range handle.Lexical.Search(query, uc.fetchLimit) {
			chunk, ok := handle.Chunk(hit.ChunkID)
			if !ok {
				continue
			}
			lexical = append(lexical, domain.ScoredCandidate{Chunk: chunk, LexicalScore: hit.Score})
		}
	}()

	go func() {
		defer wg.Done()
		hits, err := uc.denseSearch(ctx, handle.KB.Collection, query)
		if err != nil {
			uc.metrics.StrategyFailure("dense")
			note("dense search degraded to empty results: %v", err)
			return
		}
		dense = hits
	}()

	go func() {
		defer wg.Done()
		if len(variants) < 2 {
			return
		}
		failed := 0
		for _, v := range variants[1:] {
			hits, err := uc.denseSearch(ctx, handle.KB.Collection, v)
			if err != nil {
				failed++
				continue
			}
			variant = append(variant, hits...)
		}
		if failed > 0 {
			uc.metrics.StrategyFailure("variant")
			note("%d of %d variant searches failed", failed, len(variants)-1)
		}
	}()

	wg.Wait()
	return lexical, dense, variant, notes
}

func (uc *AnswerQueryUseCase) denseSearch(ctx context.Context, collection, text string) ([]domain.ScoredCandidate, error) {
	sctx, cancel := context.WithTimeout(ctx, uc.strategyTimeout)
	defer cancel()

	vector, err := uc.embedder.EmbedQuery(sctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := uc.dense.Nearest(sctx, collection, vector, uc.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}

	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		out = append(out, domain.ScoredCandidate{Chunk: hit.Chunk, DenseScore: clamp01(hit.Similarity)})
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
