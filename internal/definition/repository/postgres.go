package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atqamz/kogase-engine/internal/db"
	"github.com/atqamz/kogase-engine/internal/definition/domain"
	"github.com/atqamz/kogase-engine/internal/platform/apperr"
)

const definitionColumns = `id, project_id, event_name, category, description, is_enabled, schema, created_at, updated_at`

const (
	getDefinition = `SELECT ` + definitionColumns + ` FROM event_definitions WHERE id = $1`

	getDefinitionByName = `SELECT ` + definitionColumns + ` FROM event_definitions
WHERE project_id = $1 AND event_name = $2`

	listDefinitionsByProject = `SELECT ` + definitionColumns + ` FROM event_definitions
WHERE project_id = $1 ORDER BY event_name`

	listDefinitionsByCategory = `SELECT ` + definitionColumns + ` FROM event_definitions
WHERE project_id = $1 AND category = $2 ORDER BY event_name`

	createDefinition = `INSERT INTO event_definitions (` + definitionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ensureDefinition = `INSERT INTO event_definitions (` + definitionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (project_id, event_name) DO NOTHING`

	updateDefinition = `UPDATE event_definitions
SET category = $2, description = $3, is_enabled = $4, schema = $5, updated_at = $6
WHERE id = $1`

	deleteDefinition = `DELETE FROM event_definitions WHERE id = $1`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a definition repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the definition for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Definition, error) {
	return r.getOne(ctx, getDefinition, id)
}

// GetByName returns the definition for (projectID, eventName), or nil if not found.
func (r *PostgresRepository) GetByName(ctx context.Context, projectID, eventName string) (*domain.Definition, error) {
	return r.getOne(ctx, getDefinitionByName, projectID, eventName)
}

// ListByProject returns all definitions of the project ordered by event name.
func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Definition, error) {
	return r.list(ctx, listDefinitionsByProject, projectID)
}

// ListByCategory returns the project's definitions in category ordered by event name.
func (r *PostgresRepository) ListByCategory(ctx context.Context, projectID, category string) ([]*domain.Definition, error) {
	return r.list(ctx, listDefinitionsByCategory, projectID, category)
}

// Create inserts the definition. The unique constraint on (project_id, event_name) maps to apperr.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Definition) error {
	_, err := r.db.ExecContext(ctx, createDefinition, definitionArgs(d)...)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: event definition %q", apperr.ErrAlreadyExists, d.EventName)
	}
	return err
}

// EnsureExists inserts d with ON CONFLICT DO NOTHING and reads back the surviving row,
// so concurrent callers for the same key all observe a single definition.
func (r *PostgresRepository) EnsureExists(ctx context.Context, d *domain.Definition) (*domain.Definition, bool, error) {
	res, err := r.db.ExecContext(ctx, ensureDefinition, definitionArgs(d)...)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	stored, err := r.GetByName(ctx, d.ProjectID, d.EventName)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("event definition %q vanished after ensure", d.EventName)
	}
	return stored, n == 1, nil
}

// Update overwrites the mutable fields. Returns false if no row has d.ID.
func (r *PostgresRepository) Update(ctx context.Context, d *domain.Definition) (bool, error) {
	res, err := r.db.ExecContext(ctx, updateDefinition,
		d.ID, d.Category, d.Description, d.IsEnabled, d.Schema, nullTime(d.UpdatedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes the definition. Returns false if no row has id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteDefinition, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Definition, error) {
	d, err := scanDefinition(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Definition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*domain.Definition, error) {
	var (
		d         domain.Definition
		updatedAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.ProjectID, &d.EventName, &d.Category, &d.Description,
		&d.IsEnabled, &d.Schema, &d.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		d.UpdatedAt = &t
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

func definitionArgs(d *domain.Definition) []any {
	return []any{d.ID, d.ProjectID, d.EventName, d.Category, d.Description,
		d.IsEnabled, d.Schema, d.CreatedAt, nullTime(d.UpdatedAt)}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
