package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/lanewise/kbengine/internal/core/domain"
)

type ingestRepoFake struct {
	created *domain.Document
	err     error
}

func (f *ingestRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *ingestRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *ingestRepoFake) ListByKnowledgeBase(context.Context, string) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *ingestRepoFake) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return errors.New("not implemented")
}

type ingestStorageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func newIngestUC(repo *ingestRepoFake, storage *ingestStorageFake, queue *procQueueFake) *IngestDocumentUseCase {
	kbs := &kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1", Collection: "kb_one"}}
	return NewIngestDocumentUseCase(kbs, repo, storage, queue)
}

func TestIngestUploadSuccess(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &ingestStorageFake{}
	queue := &procQueueFake{}
	uc := newIngestUC(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "kb-1", "lane report 1.txt", "text/plain", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.KnowledgeBaseID != "kb-1" {
		t.Fatalf("expected kb id kb-1, got %s", doc.KnowledgeBaseID)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if repo.created == nil {
		t.Fatalf("expected repo.Create call")
	}
	if len(queue.ingested) != 1 || queue.ingested[0] != doc.ID {
		t.Fatalf("expected queued doc id %s, got %v", doc.ID, queue.ingested)
	}
	if !strings.HasPrefix(storage.savedKey, "kb-1/") || !strings.Contains(storage.savedKey, "_lane_report_1.txt") {
		t.Fatalf("expected kb-scoped sanitized key, got %s", storage.savedKey)
	}
	if storage.savedBody != "hello" {
		t.Fatalf("expected saved body hello, got %s", storage.savedBody)
	}
}

func TestIngestUploadUnknownKnowledgeBase(t *testing.T) {
	uc := newIngestUC(&ingestRepoFake{}, &ingestStorageFake{}, &procQueueFake{})

	_, err := uc.Upload(context.Background(), "kb-missing", "report.txt", "text/plain", bytes.NewBufferString("x"))
	if !errors.Is(err, domain.ErrKnowledgeBaseNotFound) {
		t.Fatalf("expected ErrKnowledgeBaseNotFound, got %v", err)
	}
}

func TestIngestUploadEmptyFilename(t *testing.T) {
	uc := newIngestUC(&ingestRepoFake{}, &ingestStorageFake{}, &procQueueFake{})

	_, err := uc.Upload(context.Background(), "kb-1", "   ", "text/plain", bytes.NewBufferString("x"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	uc := NewIngestDocumentUseCase(
		&kbRepoFake{kb: &domain.KnowledgeBase{ID: "kb-1"}},
		&ingestRepoFake{},
		&ingestStorageFake{},
		&queuePublishFailFake{},
	)

	_, err := uc.Upload(context.Background(), "kb-1", "report.txt", "text/plain", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

type queuePublishFailFake struct{ procQueueFake }

func (f *queuePublishFailFake) PublishDocumentIngested(context.Context, string) error {
	return errors.New("queue down")
}
