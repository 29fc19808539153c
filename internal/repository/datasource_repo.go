package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"console-gw/internal/domain"
)

type DatasourceRepository interface {
	Create(ctx context.Context, ds domain.Datasource) error
	GetByID(ctx context.Context, id string) (domain.Datasource, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.Datasource, error)
}

type PgDatasourceRepository struct {
	pool *pgxpool.Pool
}

func NewPgDatasourceRepository(pool *pgxpool.Pool) *PgDatasourceRepository {
	return &PgDatasourceRepository{pool: pool}
}

func (r *PgDatasourceRepository) Create(ctx context.Context, ds domain.Datasource) error {
	const query = `
		INSERT INTO datasources (id, workspace_id, name, kind, uri, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		ds.ID,
		ds.WorkspaceID,
		ds.Name,
		ds.Kind,
		ds.URI,
		ds.CreatedAt,
	)
	return err
}

func (r *PgDatasourceRepository) GetByID(ctx context.Context, id string) (domain.Datasource, error) {
	const query = `
		SELECT id, workspace_id, name, kind, uri, created_at
		FROM datasources
		WHERE id = $1
	`
	var ds domain.Datasource
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ds.ID,
		&ds.WorkspaceID,
		&ds.Name,
		&ds.Kind,
		&ds.URI,
		&ds.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Datasource{}, err
	}
	return ds, err
}

func (r *PgDatasourceRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.Datasource, error) {
	const query = `
		SELECT id, workspace_id, name, kind, uri, created_at
		FROM datasources
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var datasources []domain.Datasource
	for rows.Next() {
		var ds domain.Datasource
		if err := rows.Scan(
			&ds.ID,
			&ds.WorkspaceID,
			&ds.Name,
			&ds.Kind,
			&ds.URI,
			&ds.CreatedAt,
		); err != nil {
			return nil, err
		}
		datasources = append(datasources, ds)
	}
	return datasources, rows.Err()
}
