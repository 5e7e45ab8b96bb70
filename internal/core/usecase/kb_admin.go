package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

// ManageKnowledgeBaseUseCase drives knowledge-base lifecycle: creation with a
// dedicated vector collection, listing, and full teardown.
type ManageKnowledgeBaseUseCase struct {
	kbs      ports.KnowledgeBaseRepository
	chunks   ports.ChunkRepository
	dense    ports.DenseIndex
	registry *HandleRegistry
	sources  SourcePurger
}

// SourcePurger removes stored source files under a key prefix.
type SourcePurger interface {
	RemoveAll(ctx context.Context, prefix string) error
}

type KBAdminOption func(*ManageKnowledgeBaseUseCase)

// WithSourceCleanup deletes uploaded source files when their knowledge
// base is torn down.
func WithSourceCleanup(p SourcePurger) KBAdminOption {
	return func(uc *ManageKnowledgeBaseUseCase) {
		uc.sources = p
	}
}

func NewManageKnowledgeBaseUseCase(
	kbs ports.KnowledgeBaseRepository,
	chunks ports.ChunkRepository,
	dense ports.DenseIndex,
	registry *HandleRegistry,
	opts ...KBAdminOption,
) *ManageKnowledgeBaseUseCase {
	uc := &ManageKnowledgeBaseUseCase{
		kbs:      kbs,
		chunks:   chunks,
		dense:    dense,
		registry: registry,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *ManageKnowledgeBaseUseCase) CreateKnowledgeBase(ctx context.Context, name string) (*domain.KnowledgeBase, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create knowledge base", fmt.Errorf("empty name"))
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	kb := &domain.KnowledgeBase{
		ID:         id,
		Name:       name,
		Collection: collectionName(id),
		Status:     domain.KBStatusEmpty,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.kbs.Create(ctx, kb); err != nil {
		return nil, fmt.Errorf("create knowledge base: %w", err)
	}
	return kb, nil
}

func (uc *ManageKnowledgeBaseUseCase) GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	return uc.kbs.GetByID(ctx, id)
}

func (uc *ManageKnowledgeBaseUseCase) ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error) {
	return uc.kbs.List(ctx)
}

// DeleteKnowledgeBase removes the metadata row, the chunk corpus, and the
// vector collection, then drops any cached handle so stale indexes cannot
// serve further queries.
func (uc *ManageKnowledgeBaseUseCase) DeleteKnowledgeBase(ctx context.Context, id string) error {
	kb, err := uc.kbs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := uc.dense.DropCollection(ctx, kb.Collection); err != nil {
		return fmt.Errorf("drop vector collection: %w", err)
	}
	if err := uc.chunks.DeleteByKnowledgeBase(ctx, id); err != nil {
		return fmt.Errorf("delete chunk corpus: %w", err)
	}
	if err := uc.kbs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete knowledge base: %w", err)
	}

	if uc.sources != nil {
		// Metadata is already gone, so a failed file cleanup only leaks
		// disk space. Log and keep going.
		if err := uc.sources.RemoveAll(ctx, id); err != nil {
			slog.Warn("source_cleanup_failed", "kb_id", id, "error", err)
		}
	}
	if uc.registry != nil {
		uc.registry.Invalidate(id)
	}
	return nil
}

func collectionName(kbID string) string {
	return "kb_" + strings.ReplaceAll(kbID, "-", "")
}
