package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/atqamz/kogase-engine/internal/project/domain"
)

const (
	projectExists = `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`
	getProject    = `SELECT id, name, created_at FROM projects WHERE id = $1`
	createProject = `INSERT INTO projects (id, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a project repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Exists reports whether a project with the given id exists.
func (r *PostgresRepository) Exists(ctx context.Context, projectID string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, projectExists, projectID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// GetByID returns the project for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, getProject, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts the project. An existing project with the same id is left untouched.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.db.ExecContext(ctx, createProject, p.ID, p.Name, p.CreatedAt)
	return err
}
