package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"console-gw/internal/domain"
)

type SolutionRepository interface {
	Create(ctx context.Context, sol domain.Solution) error
	GetByID(ctx context.Context, id string) (domain.Solution, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.Solution, error)
}

type PgSolutionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSolutionRepository(pool *pgxpool.Pool) *PgSolutionRepository {
	return &PgSolutionRepository{pool: pool}
}

func (r *PgSolutionRepository) Create(ctx context.Context, sol domain.Solution) error {
	const query = `
		INSERT INTO solutions (id, workspace_id, name, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		sol.ID,
		sol.WorkspaceID,
		sol.Name,
		sol.Description,
		sol.Status,
		sol.CreatedAt,
	)
	return err
}

func (r *PgSolutionRepository) GetByID(ctx context.Context, id string) (domain.Solution, error) {
	const query = `
		SELECT id, workspace_id, name, description, status, created_at
		FROM solutions
		WHERE id = $1
	`
	var sol domain.Solution
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sol.ID,
		&sol.WorkspaceID,
		&sol.Name,
		&sol.Description,
		&sol.Status,
		&sol.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Solution{}, err
	}
	return sol, err
}

func (r *PgSolutionRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.Solution, error) {
	const query = `
		SELECT id, workspace_id, name, description, status, created_at
		FROM solutions
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solutions []domain.Solution
	for rows.Next() {
		var sol domain.Solution
		if err := rows.Scan(
			&sol.ID,
			&sol.WorkspaceID,
			&sol.Name,
			&sol.Description,
			&sol.Status,
			&sol.CreatedAt,
		); err != nil {
			return nil, err
		}
		solutions = append(solutions, sol)
	}
	return solutions, rows.Err()
}
