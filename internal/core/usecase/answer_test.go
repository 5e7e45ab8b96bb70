package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

type kbRepoFake struct {
	kb  *domain.KnowledgeBase
	err error
}

func (f *kbRepoFake) Create(context.Context, *domain.KnowledgeBase) error { return nil }
func (f *kbRepoFake) GetByID(_ context.Context, id string) (*domain.KnowledgeBase, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.kb == nil || f.kb.ID != id {
		return nil, domain.WrapError(domain.ErrKnowledgeBaseNotFound, "get kb", errors.New(id))
	}
	return f.kb, nil
}
func (f *kbRepoFake) List(context.Context) ([]domain.KnowledgeBase, error) { return nil, nil }
func (f *kbRepoFake) Delete(context.Context, string) error                 { return nil }
func (f *kbRepoFake) UpdateStatus(context.Context, string, domain.KnowledgeBaseStatus, string) error {
	return nil
}

type chunkRepoFake struct {
	chunks []domain.DocumentChunk
	calls  int
}

func (f *chunkRepoFake) ReplaceForDocument(context.Context, string, string, []domain.DocumentChunk) error {
	return nil
}
func (f *chunkRepoFake) ListByKnowledgeBase(context.Context, string) ([]domain.DocumentChunk, error) {
	f.calls++
	return f.chunks, nil
}
func (f *chunkRepoFake) DeleteByKnowledgeBase(context.Context, string) error { return nil }

type lexicalIndexFake struct {
	hits []domain.LexicalHit
}

func (f *lexicalIndexFake) Search(string, int) []domain.LexicalHit { return f.hits }

type lexicalBuilderFake struct {
	index  *lexicalIndexFake
	builds int
}

func (f *lexicalBuilderFake) Build(chunks []domain.DocumentChunk) (ports.LexicalIndex, error) {
	f.builds++
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "build index", errors.New("empty corpus"))
	}
	if f.index == nil {
		return &lexicalIndexFake{}, nil
	}
	return f.index, nil
}

type embedderFake struct {
	err error
}

func (f *embedderFake) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type denseIndexFake struct {
	hits []domain.DenseHit
	err  error

	mu        sync.Mutex
	queries   int
	lastLimit int
}

func (f *denseIndexFake) IndexChunks(context.Context, string, []domain.DocumentChunk, [][]float32) error {
	return nil
}
func (f *denseIndexFake) Nearest(_ context.Context, _ string, _ []float32, limit int) ([]domain.DenseHit, error) {
	f.mu.Lock()
	f.queries++
	f.lastLimit = limit
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *denseIndexFake) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}
func (f *denseIndexFake) DropCollection(context.Context, string) error { return nil }

type generatorFake struct {
	answer string
	err    error
	prompt string
}

func (f *generatorFake) GenerateFromPrompt(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func testCorpus() []domain.DocumentChunk {
	return []domain.DocumentChunk{
		{ID: "c1", Text: "ODFL,REDLANDS,SHELBY,82.89", SourceFile: "lanes.csv", ContentType: domain.ContentTabular, ChunkIndex: 0},
		{ID: "c2", Text: "Quarterly summary: service held steady across the network.", SourceFile: "summary.txt", ContentType: domain.ContentSummary, ChunkIndex: 0},
	}
}

func newTestEngine(t *testing.T, dense *denseIndexFake, gen *generatorFake) (*AnswerQueryUseCase, *HandleRegistry) {
	t.Helper()
	corpus := testCorpus()
	registry := NewHandleRegistry(
		&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1", Collection: "kb_1"}},
		&chunkRepoFake{chunks: corpus},
		&lexicalBuilderFake{index: &lexicalIndexFake{hits: []domain.LexicalHit{{ChunkID: "c1", Score: 1.4}}}},
	)
	uc := NewAnswerQueryUseCase(registry, &embedderFake{}, dense, gen, domain.DefaultRetrievalTuning())
	return uc, registry
}

func TestAnswerQueryHonorsFetchLimit(t *testing.T) {
	dense := &denseIndexFake{}
	gen := &generatorFake{answer: "Service held steady."}
	registry := NewHandleRegistry(
		&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1", Collection: "kb_1"}},
		&chunkRepoFake{chunks: testCorpus()},
		&lexicalBuilderFake{index: &lexicalIndexFake{}},
	)
	uc := NewAnswerQueryUseCase(registry, &embedderFake{}, dense, gen,
		domain.DefaultRetrievalTuning(), WithFetchLimit(5))

	if _, err := uc.AnswerQuery(context.Background(), "kb-1", "how was service"); err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	dense.mu.Lock()
	defer dense.mu.Unlock()
	if dense.lastLimit != 5 {
		t.Fatalf("dense search limit = %d, want 5", dense.lastLimit)
	}
}

func TestAnswerQueryHappyPath(t *testing.T) {
	corpus := testCorpus()
	dense := &denseIndexFake{hits: []domain.DenseHit{{Chunk: corpus[1], Similarity: 0.9}}}
	gen := &generatorFake{answer: "Service on this lane held steady, with ODFL delivering on time."}
	uc, _ := newTestEngine(t, dense, gen)

	resp, err := uc.AnswerQuery(context.Background(), "kb-1", "how is the lane redlands to shelby doing")
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("expected both strategies' chunks as sources, got %d", len(resp.Sources))
	}
	if resp.BestMetric == nil || resp.BestMetric.Value != 82.89 {
		t.Fatalf("expected extracted metric from tabular chunk, got %+v", resp.BestMetric)
	}
	if resp.Confidence < 0.1 || resp.Confidence > 1.0 {
		t.Fatalf("confidence out of range: %v", resp.Confidence)
	}
	if !strings.Contains(gen.prompt, "Question:") || !strings.Contains(gen.prompt, "lanes.csv") {
		t.Fatalf("prompt missing rendered context/question: %q", gen.prompt)
	}
}

func TestAnswerQueryVariantSearchesRunForLaneQueries(t *testing.T) {
	dense := &denseIndexFake{}
	uc, _ := newTestEngine(t, dense, &generatorFake{answer: "ok"})

	_, err := uc.AnswerQuery(context.Background(), "kb-1", "source city CHICAGO and destination city DALLAS")
	if err != nil {
		t.Fatalf("AnswerQuery() error = %v", err)
	}
	// One search for the original query plus one per derived variant.
	if dense.queryCount() < 3 {
		t.Fatalf("expected variant-expanded dense searches, got %d calls", dense.queryCount())
	}
}

func TestAnswerQueryDegradesWhenDenseOracleFails(t *testing.T) {
	dense := &denseIndexFake{err: errors.New("oracle down")}
	gen := &generatorFake{answer: "Answer built from lexical evidence only."}
	uc, _ := newTestEngine(t, dense, gen)

	resp, err := uc.AnswerQuery(context.Background(), "kb-1", "redlands shelby performance")
	if err != nil {
		t.Fatalf("dense failure must not fail the query, got %v", err)
	}
	if len(resp.Sources) == 0 {
		t.Fatalf("expected lexical-only candidates")
	}
	found := false
	for _, note := range resp.Notes {
		if strings.Contains(note, "dense search degraded") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected degradation note, got %v", resp.Notes)
	}
}

func TestAnswerQueryGeneratorFailureFallsBackToExtractive(t *testing.T) {
	corpus := testCorpus()
	dense := &denseIndexFake{hits: []domain.DenseHit{{Chunk: corpus[0], Similarity: 0.8}}}
	gen := &generatorFake{err: errors.New("llm unavailable")}
	uc, _ := newTestEngine(t, dense, gen)

	resp, err := uc.AnswerQuery(context.Background(), "kb-1", "redlands shelby")
	if err != nil {
		t.Fatalf("generator failure must not fail the query, got %v", err)
	}
	if !strings.Contains(resp.Answer, "most relevant passages") {
		t.Fatalf("expected extractive fallback answer, got %q", resp.Answer)
	}
}

func TestAnswerQueryNoCandidates(t *testing.T) {
	registry := NewHandleRegistry(
		&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1", Collection: "kb_1"}},
		&chunkRepoFake{chunks: testCorpus()},
		&lexicalBuilderFake{index: &lexicalIndexFake{}},
	)
	uc := NewAnswerQueryUseCase(registry, &embedderFake{}, &denseIndexFake{}, &generatorFake{answer: "unused"}, domain.DefaultRetrievalTuning())

	resp, err := uc.AnswerQuery(context.Background(), "kb-1", "completely unrelated question")
	if err != nil {
		t.Fatalf("zero candidates is not an error, got %v", err)
	}
	if resp.Confidence != 0.1 {
		t.Fatalf("no-candidate confidence = %v, want exactly 0.1", resp.Confidence)
	}
	if len(resp.Sources) != 0 {
		t.Fatalf("expected empty sources, got %v", resp.Sources)
	}
}

func TestAnswerQueryEmptyCorpusIsHardFailure(t *testing.T) {
	registry := NewHandleRegistry(
		&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1"}},
		&chunkRepoFake{},
		&lexicalBuilderFake{},
	)
	uc := NewAnswerQueryUseCase(registry, &embedderFake{}, &denseIndexFake{}, &generatorFake{}, domain.DefaultRetrievalTuning())

	_, err := uc.AnswerQuery(context.Background(), "kb-1", "anything")
	if !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestAnswerQueryRejectsEmptyQuery(t *testing.T) {
	uc, _ := newTestEngine(t, &denseIndexFake{}, &generatorFake{})
	_, err := uc.AnswerQuery(context.Background(), "kb-1", "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
