package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atqamz/kogase-engine/internal/metric/domain"
	"github.com/atqamz/kogase-engine/internal/metric/repository"
	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/page"
)

// DefaultMaxBatch bounds BatchUpsert when no limit is configured.
const DefaultMaxBatch = 1000

// ProjectChecker reports whether a project exists.
type ProjectChecker interface {
	Exists(ctx context.Context, projectID string) (bool, error)
}

// Service is the metric aggregate store.
type Service struct {
	repo     repository.Repository
	projects ProjectChecker
	pages    page.Config
	maxBatch int
	now      func() time.Time
}

// NewService returns a metric store. projects may be nil to skip project checks.
func NewService(repo repository.Repository, projects ProjectChecker, pages page.Config, maxBatch int) *Service {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Service{
		repo:     repo,
		projects: projects,
		pages:    pages,
		maxBatch: maxBatch,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Upsert writes one aggregate. With a timestamp, the exact key is overwritten or created. Without
// one, the most recent row for the rest of the key is overwritten and moved to now, or a new row
// is created at now.
func (s *Service) Upsert(ctx context.Context, a *domain.Aggregate) (*domain.Aggregate, error) {
	row, err := normalize(a)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, row.ProjectID); err != nil {
		return nil, err
	}
	row.ID = uuid.New().String()
	if row.Timestamp.IsZero() {
		return s.repo.UpsertLatest(ctx, row, s.now())
	}
	return s.repo.Upsert(ctx, row)
}

// BatchUpsert writes every aggregate at its exact key as one unit. Members without a timestamp
// share the batch instant. A storage failure is apperr.ErrTransient and writes nothing.
func (s *Service) BatchUpsert(ctx context.Context, as []*domain.Aggregate) ([]*domain.Aggregate, error) {
	if len(as) > s.maxBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds the limit of %d", apperr.ErrInvalidArgument, len(as), s.maxBatch)
	}
	return s.BatchUpsertAll(ctx, as)
}

// BatchUpsertAll is BatchUpsert without the request size limit, for server-side writers such as
// the daily rollup whose batch size follows the data.
func (s *Service) BatchUpsertAll(ctx context.Context, as []*domain.Aggregate) ([]*domain.Aggregate, error) {
	rows := make([]*domain.Aggregate, 0, len(as))
	projects := make(map[string]bool)
	for i, a := range as {
		row, err := normalize(a)
		if err != nil {
			return nil, fmt.Errorf("metric %d: %w", i, err)
		}
		rows = append(rows, row)
		projects[row.ProjectID] = true
	}
	if len(rows) == 0 {
		return rows, nil
	}
	for id := range projects {
		if err := s.requireProject(ctx, id); err != nil {
			return nil, err
		}
	}
	at := s.now()
	for _, row := range rows {
		row.ID = uuid.New().String()
		if row.Timestamp.IsZero() {
			row.Timestamp = at
		}
	}
	if err := s.repo.BatchUpsert(ctx, rows); err != nil {
		return nil, apperr.Transient("store metric batch", err)
	}
	return rows, nil
}

// Get returns the aggregate with id or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Aggregate, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: metric %s", apperr.ErrNotFound, id)
	}
	return a, nil
}

// GetLatest returns the newest aggregate for (project, metric, dimension) or apperr.ErrNotFound.
func (s *Service) GetLatest(ctx context.Context, projectID, metricName, dimension string) (*domain.Aggregate, error) {
	a, err := s.repo.GetLatest(ctx, projectID, metricName, dimension)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: no %s metric for dimension %q", apperr.ErrNotFound, metricName, dimension)
	}
	return a, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Aggregate, error) {
	return s.repo.ListByProject(ctx, projectID, s.pages.Normalize(p))
}

func (s *Service) ListByName(ctx context.Context, projectID, metricName string) ([]*domain.Aggregate, error) {
	return s.repo.ListByName(ctx, projectID, metricName)
}

func (s *Service) ListByDimension(ctx context.Context, projectID, dimension, dimensionValue string) ([]*domain.Aggregate, error) {
	return s.repo.ListByDimension(ctx, projectID, dimension, dimensionValue)
}

// ListByPeriod returns aggregates of period stamped within [start, end].
func (s *Service) ListByPeriod(ctx context.Context, projectID string, period domain.Period, start, end time.Time) ([]*domain.Aggregate, error) {
	p, err := domain.ParsePeriod(string(period))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	return s.repo.ListByPeriod(ctx, projectID, p, start.UTC(), end.UTC())
}

func (s *Service) requireProject(ctx context.Context, projectID string) error {
	if s.projects == nil {
		return nil
	}
	ok, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: project %s", apperr.ErrNotFound, projectID)
	}
	return nil
}

// normalize returns a validated copy of a with a canonical period and a UTC microsecond timestamp.
func normalize(a *domain.Aggregate) (*domain.Aggregate, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: metric is required", apperr.ErrInvalidArgument)
	}
	row := *a
	row.MetricName = strings.TrimSpace(row.MetricName)
	if p, err := domain.ParsePeriod(string(row.Period)); err == nil {
		row.Period = p
	}
	if !row.Timestamp.IsZero() {
		row.Timestamp = row.Timestamp.UTC().Truncate(time.Microsecond)
	}
	if row.AdditionalData.IsInvalid() {
		return nil, fmt.Errorf("%w: additionalData is not valid JSON", apperr.ErrInvalidPayload)
	}
	if err := row.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	return &row, nil
}
