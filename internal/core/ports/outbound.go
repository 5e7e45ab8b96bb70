package ports

import (
	"context"
	"io"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// KnowledgeBaseRepository persists knowledge-base metadata.
type KnowledgeBaseRepository interface {
	Create(ctx context.Context, kb *domain.KnowledgeBase) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	List(ctx context.Context) ([]domain.KnowledgeBase, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.KnowledgeBaseStatus, errMessage string) error
}

// DocumentRepository persists per-file state inside a knowledge base.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, kbID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ChunkRepository persists processed chunks; the lexical index is rebuilt
// from this corpus on demand.
type ChunkRepository interface {
	ReplaceForDocument(ctx context.Context, kbID, documentID string, chunks []domain.DocumentChunk) error
	ListByKnowledgeBase(ctx context.Context, kbID string) ([]domain.DocumentChunk, error)
	DeleteByKnowledgeBase(ctx context.Context, kbID string) error
}

// ObjectStorage stores source corpus files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries ingestion and reindex events between api and worker.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishCorpusReindexed(ctx context.Context, kbID string) error
	SubscribeCorpusReindexed(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits extracted text; tabular content is split row-wise so CSV
// facts survive intact.
type Chunker interface {
	Split(text string, contentType domain.ContentType) []string
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DenseIndex is the nearest-neighbor oracle. One collection per knowledge
// base; the engine never computes similarity itself.
type DenseIndex interface {
	IndexChunks(ctx context.Context, collection string, chunks []domain.DocumentChunk, vectors [][]float32) error
	Nearest(ctx context.Context, collection string, queryVector []float32, k int) ([]domain.DenseHit, error)
	DropCollection(ctx context.Context, collection string) error
}

// LexicalIndex is a corpus-scoped sparse index. Implementations must be
// immutable after build and safe for concurrent reads.
type LexicalIndex interface {
	Search(query string, k int) []domain.LexicalHit
}

// LexicalIndexBuilder builds a fresh index from an ordered chunk list.
// Build fails with domain.ErrIndexUnavailable on an empty corpus.
type LexicalIndexBuilder interface {
	Build(chunks []domain.DocumentChunk) (LexicalIndex, error)
}

// AnswerGenerator turns a rendered prompt into free text.
type AnswerGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
}
