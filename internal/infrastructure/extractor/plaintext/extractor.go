package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Extractor reads text and CSV sources as-is. Carrier scorecards are
// often exported from spreadsheets with a UTF-8 BOM, which is stripped
// so it never leaks into the first chunk.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("not a text file: %s", doc.Filename)
	}

	return strings.TrimSpace(string(raw)), nil
}
