package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lanewise/kbengine/internal/core/domain"
)

type KnowledgeBaseRepository struct {
	db *sql.DB
}

func NewKnowledgeBaseRepository(db *sql.DB) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *KnowledgeBaseRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS knowledge_bases (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	collection TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_bases_created_at ON knowledge_bases(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO knowledge_bases (
	id, name, collection, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		kb.ID, kb.Name, kb.Collection, string(kb.Status), kb.Error, kb.CreatedAt, kb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert knowledge base: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT kb.id, kb.name, kb.collection, kb.status, kb.error_message, kb.created_at, kb.updated_at,
	(SELECT COUNT(*) FROM documents d WHERE d.knowledge_base_id = kb.id) AS document_count
FROM knowledge_bases kb
WHERE kb.id = $1
`, id)

	kb, err := scanKnowledgeBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrKnowledgeBaseNotFound, "get knowledge base", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan knowledge base: %w", err)
	}
	return kb, nil
}

func (r *KnowledgeBaseRepository) List(ctx context.Context) ([]domain.KnowledgeBase, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT kb.id, kb.name, kb.collection, kb.status, kb.error_message, kb.created_at, kb.updated_at,
	(SELECT COUNT(*) FROM documents d WHERE d.knowledge_base_id = kb.id) AS document_count
FROM knowledge_bases kb
ORDER BY kb.created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	defer rows.Close()

	var out []domain.KnowledgeBase
	for rows.Next() {
		kb, err := scanKnowledgeBase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge base row: %w", err)
		}
		out = append(out, *kb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge bases: %w", err)
	}
	return out, nil
}

func (r *KnowledgeBaseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete knowledge base: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrKnowledgeBaseNotFound, "delete knowledge base", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *KnowledgeBaseRepository) UpdateStatus(ctx context.Context, id string, status domain.KnowledgeBaseStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE knowledge_bases
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update knowledge base status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrKnowledgeBaseNotFound, "update knowledge base status", fmt.Errorf("id=%s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeBase(row rowScanner) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var status string
	err := row.Scan(
		&kb.ID, &kb.Name, &kb.Collection, &status, &kb.Error,
		&kb.CreatedAt, &kb.UpdatedAt, &kb.DocumentCount,
	)
	if err != nil {
		return nil, err
	}
	kb.Status = domain.KnowledgeBaseStatus(status)
	return &kb, nil
}
