package repository

import (
	"context"

	"github.com/atqamz/kogase-engine/internal/definition/domain"
)

// Repository defines persistence for event definitions.
// (project_id, event_name) must be enforced unique by the store.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Definition, error)
	GetByName(ctx context.Context, projectID, eventName string) (*domain.Definition, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Definition, error)
	ListByCategory(ctx context.Context, projectID, category string) ([]*domain.Definition, error)
	// Create inserts d. Returns apperr.ErrAlreadyExists if (project_id, event_name) is taken.
	Create(ctx context.Context, d *domain.Definition) error
	// EnsureExists inserts d unless a definition with the same (project_id, event_name) exists,
	// and returns the stored row. created is true when d was inserted.
	EnsureExists(ctx context.Context, d *domain.Definition) (stored *domain.Definition, created bool, err error)
	// Update overwrites category, description, is_enabled, schema and updated_at. Returns false if id is unknown.
	Update(ctx context.Context, d *domain.Definition) (bool, error)
	// Delete removes the definition. Returns false if id is unknown.
	Delete(ctx context.Context, id string) (bool, error)
}
