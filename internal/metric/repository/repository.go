package repository

import (
	"context"
	"time"

	"github.com/atqamz/kogase-engine/internal/metric/domain"
	"github.com/atqamz/kogase-engine/internal/platform/page"
)

// Repository defines persistence for metric aggregates. The unique key is enforced by storage;
// every write is an insert-or-update on that key. Lists are ordered newest timestamp first.
type Repository interface {
	// Upsert writes a at its exact key and returns the stored row. An existing row keeps its id.
	Upsert(ctx context.Context, a *domain.Aggregate) (*domain.Aggregate, error)
	// UpsertLatest overwrites the most recent row for a's key ignoring the timestamp and moves
	// it to at, or inserts a new row at at. Calls for the same key are serialized.
	UpsertLatest(ctx context.Context, a *domain.Aggregate, at time.Time) (*domain.Aggregate, error)
	// BatchUpsert applies Upsert to every aggregate as one unit and sets each ID to the stored row id.
	BatchUpsert(ctx context.Context, as []*domain.Aggregate) error
	GetByID(ctx context.Context, id string) (*domain.Aggregate, error)
	// GetLatest returns the most recent row for (project, metric, dimension) across dimension values.
	GetLatest(ctx context.Context, projectID, metricName, dimension string) (*domain.Aggregate, error)
	ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Aggregate, error)
	ListByName(ctx context.Context, projectID, metricName string) ([]*domain.Aggregate, error)
	ListByDimension(ctx context.Context, projectID, dimension, dimensionValue string) ([]*domain.Aggregate, error)
	// ListByPeriod returns rows of the period with start <= timestamp <= end.
	ListByPeriod(ctx context.Context, projectID string, period domain.Period, start, end time.Time) ([]*domain.Aggregate, error)
}
