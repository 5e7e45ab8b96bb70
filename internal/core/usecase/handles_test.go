package usecase

import (
	"context"
	"testing"

	"github.com/lanewise/kbengine/internal/core/domain"
)

func TestHandleRegistryCachesUntilInvalidated(t *testing.T) {
	chunks := &chunkRepoFake{chunks: testCorpus()}
	builder := &lexicalBuilderFake{index: &lexicalIndexFake{}}
	registry := NewHandleRegistry(&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1"}}, chunks, builder)

	first, err := registry.Handle(context.Background(), "kb-1")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	second, err := registry.Handle(context.Background(), "kb-1")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected cached handle on second load")
	}
	if builder.builds != 1 {
		t.Fatalf("index built %d times, want 1", builder.builds)
	}

	registry.Invalidate("kb-1")
	third, err := registry.Handle(context.Background(), "kb-1")
	if err != nil {
		t.Fatalf("Handle() after invalidate error = %v", err)
	}
	if third == first {
		t.Fatalf("invalidation must produce a fresh handle")
	}
	if builder.builds != 2 {
		t.Fatalf("expected rebuild after invalidation, builds = %d", builder.builds)
	}
}

func TestHandleRegistryUnknownKnowledgeBase(t *testing.T) {
	registry := NewHandleRegistry(&kbRepoFake{}, &chunkRepoFake{}, &lexicalBuilderFake{})
	_, err := registry.Handle(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrKnowledgeBaseNotFound) {
		t.Fatalf("expected ErrKnowledgeBaseNotFound, got %v", err)
	}
}

func TestHandleRegistryEmptyCorpus(t *testing.T) {
	registry := NewHandleRegistry(
		&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1"}},
		&chunkRepoFake{},
		&lexicalBuilderFake{},
	)
	_, err := registry.Handle(context.Background(), "kb-1")
	if !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestHandleChunkLookup(t *testing.T) {
	registry := NewHandleRegistry(
		&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1"}},
		&chunkRepoFake{chunks: testCorpus()},
		&lexicalBuilderFake{index: &lexicalIndexFake{}},
	)
	handle, err := registry.Handle(context.Background(), "kb-1")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	chunk, ok := handle.Chunk("c1")
	if !ok || chunk.SourceFile != "lanes.csv" {
		t.Fatalf("chunk lookup failed: %+v ok=%v", chunk, ok)
	}
	if _, ok := handle.Chunk("nope"); ok {
		t.Fatalf("unknown chunk id must miss")
	}
}
