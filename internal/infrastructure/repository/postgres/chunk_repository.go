package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lanewise/kbengine/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082903)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	knowledge_base_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	chunk_index INT NOT NULL,
	text TEXT NOT NULL,
	source_file TEXT NOT NULL,
	content_type TEXT NOT NULL,
	modified_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_kb ON chunks(knowledge_base_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ReplaceForDocument swaps a document's chunk set atomically so reprocessing
// never leaves a mixed corpus.
func (r *ChunkRepository) ReplaceForDocument(ctx context.Context, kbID, documentID string, chunks []domain.DocumentChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO chunks (
	id, knowledge_base_id, document_id, chunk_index, text, source_file, content_type, modified_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
			chunk.ID, kbID, documentID, chunk.ChunkIndex, chunk.Text,
			chunk.SourceFile, string(chunk.ContentType), chunk.ModifiedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

// ListByKnowledgeBase returns the corpus in a stable order so lexical index
// builds are deterministic. GlobalIndex is the position in that order.
func (r *ChunkRepository) ListByKnowledgeBase(ctx context.Context, kbID string) ([]domain.DocumentChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, chunk_index, text, source_file, content_type, modified_at
FROM chunks
WHERE knowledge_base_id = $1
ORDER BY source_file, document_id, chunk_index
`, kbID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentChunk
	for rows.Next() {
		var chunk domain.DocumentChunk
		var contentType string
		err := rows.Scan(&chunk.ID, &chunk.ChunkIndex, &chunk.Text, &chunk.SourceFile, &contentType, &chunk.ModifiedAt)
		if err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunk.ContentType = domain.ContentType(contentType)
		chunk.GlobalIndex = len(out)
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) DeleteByKnowledgeBase(ctx context.Context, kbID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE knowledge_base_id = $1`, kbID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
