package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"console-gw/internal/domain"
)

// ContextSnippetRepository guarda conocimiento del workspace con embeddings
// para enriquecer los mensajes al asistente.
type ContextSnippetRepository interface {
	Create(ctx context.Context, snippet domain.ContextSnippet) error
	Search(ctx context.Context, workspaceID string, queryEmbedding pgvector.Vector, k int) ([]domain.ContextSnippet, error)
}

type PgContextSnippetRepository struct {
	pool *pgxpool.Pool
}

func NewPgContextSnippetRepository(pool *pgxpool.Pool) *PgContextSnippetRepository {
	return &PgContextSnippetRepository{pool: pool}
}

func (r *PgContextSnippetRepository) Create(ctx context.Context, snippet domain.ContextSnippet) error {
	const query = `
		INSERT INTO context_snippets (id, workspace_id, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		snippet.ID,
		snippet.WorkspaceID,
		snippet.Content,
		snippet.Embedding,
		snippet.CreatedAt,
	)
	return err
}

func (r *PgContextSnippetRepository) Search(ctx context.Context, workspaceID string, queryEmbedding pgvector.Vector, k int) ([]domain.ContextSnippet, error) {
	if k <= 0 {
		k = 5
	}
	const query = `
		SELECT id, workspace_id, content, created_at
		FROM context_snippets
		WHERE workspace_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, workspaceID, queryEmbedding, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []domain.ContextSnippet
	for rows.Next() {
		var s domain.ContextSnippet
		if err := rows.Scan(&s.ID, &s.WorkspaceID, &s.Content, &s.CreatedAt); err != nil {
			return nil, err
		}
		snippets = append(snippets, s)
	}
	return snippets, rows.Err()
}
