package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

type IngestDocumentUseCase struct {
	kbs     ports.KnowledgeBaseRepository
	docs    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	kbs ports.KnowledgeBaseRepository,
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		kbs:     kbs,
		docs:    docs,
		storage: storage,
		queue:   queue,
	}
}

// Upload accepts a corpus file into a knowledge base and queues it for
// asynchronous processing.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	kbID, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := uc.kbs.GetByID(ctx, kbID); err != nil {
		return nil, fmt.Errorf("resolve knowledge base: %w", err)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", kbID, id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:              id,
		KnowledgeBaseID: kbID,
		Filename:        filename,
		MimeType:        mimeType,
		StoragePath:     storageKey,
		Status:          domain.StatusUploaded,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
