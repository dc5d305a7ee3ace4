package repository

import (
	"context"

	"github.com/atqamz/kogase-engine/internal/project/domain"
)

// Repository is the project lookup the telemetry core depends on, plus Create for seeding.
type Repository interface {
	Exists(ctx context.Context, projectID string) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	Create(ctx context.Context, p *domain.Project) error
}
