package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"console-gw/internal/domain"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session domain.ChatSession) error
	GetByID(ctx context.Context, id string) (domain.ChatSession, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ChatSession, error)
}

type PgChatSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatSessionRepository(pool *pgxpool.Pool) *PgChatSessionRepository {
	return &PgChatSessionRepository{pool: pool}
}

func (r *PgChatSessionRepository) Create(ctx context.Context, session domain.ChatSession) error {
	const query = `
		INSERT INTO chat_sessions (id, user_id, workspace_id, solution_id, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var solutionID interface{}
	if session.SolutionID != "" {
		solutionID = session.SolutionID
	}
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.WorkspaceID,
		solutionID,
		session.Title,
		session.CreatedAt,
	)
	return err
}

func (r *PgChatSessionRepository) GetByID(ctx context.Context, id string) (domain.ChatSession, error) {
	const query = `
		SELECT id, user_id, workspace_id, solution_id, title, created_at
		FROM chat_sessions
		WHERE id = $1
	`
	var session domain.ChatSession
	var solutionID *string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.WorkspaceID,
		&solutionID,
		&session.Title,
		&session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChatSession{}, err
	}
	if solutionID != nil {
		session.SolutionID = *solutionID
	}
	return session, err
}

func (r *PgChatSessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	const query = `
		SELECT id, user_id, workspace_id, solution_id, title, created_at
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.ChatSession
	for rows.Next() {
		var session domain.ChatSession
		var solutionID *string
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.WorkspaceID,
			&solutionID,
			&session.Title,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		if solutionID != nil {
			session.SolutionID = *solutionID
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
