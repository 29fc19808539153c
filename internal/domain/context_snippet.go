package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// ContextSnippet es conocimiento del workspace usado para enriquecer al asistente.
type ContextSnippet struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Content     string          `json:"content"`
	Embedding   pgvector.Vector `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}
