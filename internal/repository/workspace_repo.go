package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"console-gw/internal/domain"
)

type WorkspaceRepository interface {
	Create(ctx context.Context, ws domain.Workspace) error
	GetByID(ctx context.Context, id string) (domain.Workspace, error)
	List(ctx context.Context) ([]domain.Workspace, error)
}

type PgWorkspaceRepository struct {
	pool *pgxpool.Pool
}

func NewPgWorkspaceRepository(pool *pgxpool.Pool) *PgWorkspaceRepository {
	return &PgWorkspaceRepository{pool: pool}
}

func (r *PgWorkspaceRepository) Create(ctx context.Context, ws domain.Workspace) error {
	const query = `
		INSERT INTO workspaces (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, ws.ID, ws.Name, ws.OwnerID, ws.CreatedAt)
	return err
}

func (r *PgWorkspaceRepository) GetByID(ctx context.Context, id string) (domain.Workspace, error) {
	const query = `
		SELECT id, name, owner_id, created_at
		FROM workspaces
		WHERE id = $1
	`
	var ws domain.Workspace
	err := r.pool.QueryRow(ctx, query, id).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Workspace{}, err
	}
	return ws, err
}

func (r *PgWorkspaceRepository) List(ctx context.Context) ([]domain.Workspace, error) {
	const query = `
		SELECT id, name, owner_id, created_at
		FROM workspaces
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workspaces []domain.Workspace
	for rows.Next() {
		var ws domain.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}
