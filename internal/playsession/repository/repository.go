package repository

import (
	"context"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/playsession/domain"
)

// Repository defines persistence for play sessions.
// Paged lists are ordered by start time, newest first.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// End moves an active session to ended at the given instant. It returns nil when no active
	// session with id exists; the check and the write are a single atomic step.
	End(ctx context.Context, id string, at time.Time) (*domain.Session, error)
	// SetStatus overwrites the status; a terminal status also records the end at the given instant
	// unless one is already recorded. Setting active on a terminal session matches nothing and returns nil.
	SetStatus(ctx context.Context, id string, status domain.Status, at time.Time) (*domain.Session, error)
	ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Session, error)
	ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Session, error)
	ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Session, error)
	// ListByTimeRange returns sessions started at or after start that are still open or ended by end.
	ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Session, error)
	ListActive(ctx context.Context, projectID string) ([]*domain.Session, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
	// AverageDuration averages durations over ended sessions; 0 when there are none.
	AverageDuration(ctx context.Context, projectID string) (float64, error)
}
