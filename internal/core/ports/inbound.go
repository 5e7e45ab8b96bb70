package ports

import (
	"context"
	"io"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// KnowledgeQueryService is the caller-facing answer interface. It always
// returns an AnswerResponse unless the knowledge base itself is unusable.
type KnowledgeQueryService interface {
	AnswerQuery(ctx context.Context, kbID, query string) (*domain.AnswerResponse, error)
}

// KnowledgeBaseManager drives knowledge-base lifecycle.
type KnowledgeBaseManager interface {
	CreateKnowledgeBase(ctx context.Context, name string) (*domain.KnowledgeBase, error)
	GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, id string) error
}

// DocumentIngestor accepts a corpus file into a knowledge base.
type DocumentIngestor interface {
	Upload(ctx context.Context, kbID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the worker-side contract for asynchronous corpus
// processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
