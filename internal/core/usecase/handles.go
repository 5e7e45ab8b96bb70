package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

// KnowledgeHandle is the corpus-scoped view one query runs against: the
// knowledge-base metadata, an immutable lexical index, and a chunk lookup
// table. Handles are never mutated; reprocessing swaps in a new one.
type KnowledgeHandle struct {
	KB       domain.KnowledgeBase
	Lexical  ports.LexicalIndex
	LoadedAt time.Time

	chunksByID map[string]domain.DocumentChunk
}

func (h *KnowledgeHandle) Chunk(id string) (domain.DocumentChunk, bool) {
	chunk, ok := h.chunksByID[id]
	return chunk, ok
}

// HandleRegistry loads and caches knowledge handles. It replaces an ambient
// global instance map: the registry is constructed once, injected where
// needed, and invalidated explicitly when a corpus is reprocessed.
type HandleRegistry struct {
	kbs     ports.KnowledgeBaseRepository
	chunks  ports.ChunkRepository
	builder ports.LexicalIndexBuilder

	mu      sync.RWMutex
	handles map[string]*KnowledgeHandle
}

func NewHandleRegistry(
	kbs ports.KnowledgeBaseRepository,
	chunks ports.ChunkRepository,
	builder ports.LexicalIndexBuilder,
) *HandleRegistry {
	return &HandleRegistry{
		kbs:     kbs,
		chunks:  chunks,
		builder: builder,
		handles: make(map[string]*KnowledgeHandle),
	}
}

// Handle returns the cached handle for kbID, loading the corpus and
// building a fresh lexical index on first use. An empty corpus surfaces
// domain.ErrIndexUnavailable; that is a hard failure for the knowledge base.
func (r *HandleRegistry) Handle(ctx context.Context, kbID string) (*KnowledgeHandle, error) {
	r.mu.RLock()
	handle, ok := r.handles[kbID]
	r.mu.RUnlock()
	if ok {
		return handle, nil
	}

	loaded, err := r.load(ctx, kbID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent loader may have won; keep the first stored handle so all
	// in-flight queries observe one corpus snapshot.
	if existing, ok := r.handles[kbID]; ok {
		return existing, nil
	}
	r.handles[kbID] = loaded
	return loaded, nil
}

// Invalidate drops the cached handle so the next query rebuilds against the
// reprocessed corpus. In-flight queries keep the old immutable handle.
func (r *HandleRegistry) Invalidate(kbID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, kbID)
}

func (r *HandleRegistry) load(ctx context.Context, kbID string) (*KnowledgeHandle, error) {
	kb, err := r.kbs.GetByID(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}

	chunks, err := r.chunks.ListByKnowledgeBase(ctx, kbID)
	if err != nil {
		return nil, fmt.Errorf("load corpus chunks: %w", err)
	}

	index, err := r.builder.Build(chunks)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.DocumentChunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	return &KnowledgeHandle{
		KB:         *kb,
		Lexical:    index,
		LoadedAt:   time.Now().UTC(),
		chunksByID: byID,
	}, nil
}
