package repository

import (
	"context"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

// Repository defines persistence for telemetry events.
// Paged lists are ordered by timestamp, newest first; unpaged lists are chronological.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// CreateBatch stores all events or none.
	CreateBatch(ctx context.Context, events []*domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Event, error)
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Event, error)
	ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Event, error)
	ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Event, error)
	ListByName(ctx context.Context, projectID, eventName string, p page.Request) ([]*domain.Event, error)
	ListByCategory(ctx context.Context, projectID, category string, p page.Request) ([]*domain.Event, error)
	// ListByTimeRange pages events with start <= timestamp <= end.
	ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Event, error)
	// ListInRange returns every event with start <= timestamp <= end, oldest first.
	ListInRange(ctx context.Context, projectID string, start, end time.Time) ([]*domain.Event, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}
