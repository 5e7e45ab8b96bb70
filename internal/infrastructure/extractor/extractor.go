package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
	"github.com/lanewise/kbengine/internal/infrastructure/extractor/pdfminer"
	"github.com/lanewise/kbengine/internal/infrastructure/extractor/plaintext"
	"github.com/lanewise/kbengine/internal/infrastructure/extractor/xlsx"
)

// Dispatcher routes a document to the extractor for its file type. Unknown
// extensions fall through to the plaintext reader, which rejects binary
// content.
type Dispatcher struct {
	plain ports.TextExtractor
	book  ports.TextExtractor
	pdf   ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{
		plain: plaintext.NewExtractor(storage),
		book:  xlsx.NewExtractor(storage),
		pdf:   pdfminer.NewExtractor(storage),
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".xlsx", ".xls":
		return d.book.Extract(ctx, doc)
	case ".pdf":
		return d.pdf.Extract(ctx, doc)
	default:
		return d.plain.Extract(ctx, doc)
	}
}
