package usecase

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"time"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	kbs       ports.KnowledgeBaseRepository
	docs      ports.DocumentRepository
	chunks    ports.ChunkRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	dense     ports.DenseIndex
	queue     ports.MessageQueue
}

func NewProcessDocumentUseCase(
	kbs ports.KnowledgeBaseRepository,
	docs ports.DocumentRepository,
	chunks ports.ChunkRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	dense ports.DenseIndex,
	queue ports.MessageQueue,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		kbs:       kbs,
		docs:      docs,
		chunks:    chunks,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		dense:     dense,
		queue:     queue,
	}
}

// ProcessByID runs the full ingestion pipeline for one uploaded document:
// extract, tag, chunk, embed, index, persist. On success the corpus reindex
// event is published so query nodes rebuild their lexical handles.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	kbID, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	if err := uc.kbs.UpdateStatus(ctx, kbID, domain.KBStatusReady, ""); err != nil {
		return fmt.Errorf("refresh knowledge base state: %w", err)
	}

	if err := uc.queue.PublishCorpusReindexed(ctx, kbID); err != nil {
		return fmt.Errorf("publish reindex event: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (string, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return "", err
	}

	kb, err := uc.kbs.GetByID(ctx, doc.KnowledgeBaseID)
	if err != nil {
		return "", fmt.Errorf("fetch knowledge base: %w", err)
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return "", err
	}

	contentType := detectContentType(doc.Filename, doc.MimeType, text)

	pieces, err := uc.chunk(ctx, text, contentType)
	if err != nil {
		return "", err
	}

	records := buildChunkRecords(doc, contentType, pieces)

	vectors, err := uc.embed(ctx, pieces)
	if err != nil {
		return "", err
	}

	if err := uc.dense.IndexChunks(ctx, kb.Collection, records, vectors); err != nil {
		return "", fmt.Errorf("index chunks in vector db: %w", err)
	}

	if err := uc.chunks.ReplaceForDocument(ctx, kb.ID, doc.ID, records); err != nil {
		return "", fmt.Errorf("persist chunks: %w", err)
	}

	return kb.ID, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) chunk(_ context.Context, text string, contentType domain.ContentType) ([]string, error) {
	pieces := uc.chunker.Split(text, contentType)
	if len(pieces) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return pieces, nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, pieces []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(pieces)),
		)
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.docs.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}

func buildChunkRecords(doc *domain.Document, contentType domain.ContentType, pieces []string) []domain.DocumentChunk {
	records := make([]domain.DocumentChunk, 0, len(pieces))
	modified := doc.UpdatedAt
	if modified.IsZero() {
		modified = time.Now().UTC()
	}
	for i, piece := range pieces {
		records = append(records, domain.DocumentChunk{
			ID:          chunkID(doc.ID, i, piece),
			Text:        piece,
			SourceFile:  doc.Filename,
			ContentType: contentType,
			ChunkIndex:  i,
			ModifiedAt:  modified,
		})
	}
	return records
}

func chunkID(documentID string, index int, text string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s", documentID, index, text)
	return fmt.Sprintf("%s-%d-%x", documentID, index, h.Sum64())
}

// detectContentType tags a document so retrieval can boost and the chunker
// can preserve row boundaries. Filename and MIME hints win over text shape.
func detectContentType(filename, mimeType, text string) domain.ContentType {
	ext := strings.ToLower(filepath.Ext(filename))
	lowerName := strings.ToLower(filename)

	switch {
	case ext == ".csv" || ext == ".xlsx" || ext == ".xls":
		return domain.ContentTabular
	case strings.Contains(mimeType, "spreadsheet") || strings.Contains(mimeType, "csv"):
		return domain.ContentTabular
	case strings.Contains(lowerName, "summary") || strings.Contains(lowerName, "report"):
		return domain.ContentSummary
	case ext == ".pdf":
		return domain.ContentAcademic
	}

	sample := text
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	lowerSample := strings.ToLower(sample)
	if strings.Contains(lowerSample, "abstract") && strings.Contains(lowerSample, "references") {
		return domain.ContentAcademic
	}
	if looksTabular(sample) {
		return domain.ContentTabular
	}
	return domain.ContentGeneral
}

// looksTabular reports whether most non-empty sample lines carry multiple
// comma separators, the shape of an exported metrics sheet.
func looksTabular(sample string) bool {
	lines := strings.Split(sample, "\n")
	var total, commaRich int
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if strings.Count(line, ",") >= 2 {
			commaRich++
		}
	}
	return total >= 3 && commaRich*2 > total
}
