package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	defdomain "github.com/atqamz/kogase-engine/internal/definition/domain"
	defservice "github.com/atqamz/kogase-engine/internal/definition/service"
	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/telemetry"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
	"github.com/atqamz/kogase-engine/internal/telemetry/repository"
)

const meterName = "github.com/atqamz/kogase-engine/internal/telemetry"

// DefaultMaxBatch bounds LogBatch when Limits.MaxBatch is unset.
const DefaultMaxBatch = 1000

// Registry is the event definition lookup used during ingestion.
type Registry interface {
	GetOrNull(ctx context.Context, projectID, eventName string) (*defdomain.Definition, error)
	EnsureExists(ctx context.Context, projectID, eventName, category string) (*defdomain.Definition, error)
}

// ProjectChecker reports whether a project exists.
type ProjectChecker interface {
	Exists(ctx context.Context, projectID string) (bool, error)
}

// SessionChecker reports whether a play session exists.
type SessionChecker interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Limits bounds list and batch sizes.
type Limits struct {
	Pages    page.Config
	MaxBatch int
}

// EventInput is a client-submitted event. ProjectID may be empty inside a batch, in which case
// the batch project applies.
type EventInput struct {
	ProjectID  string
	UserID     *string
	DeviceID   *string
	SessionID  *string
	EventName  string
	Category   string
	Payload    jsonblob.Blob
	Parameters jsonblob.Blob
	ClientInfo jsonblob.Blob
}

// Service is the append-only telemetry event log.
type Service struct {
	repo      repository.Repository
	registry  Registry
	projects  ProjectChecker
	sessions  SessionChecker
	publisher telemetry.Publisher
	limits    Limits
	clock     *Clock

	ingested  metric.Int64Counter
	batchSize metric.Int64Histogram
}

// NewService returns an event log. projects, sessions and publisher may be nil.
func NewService(
	repo repository.Repository,
	registry Registry,
	projects ProjectChecker,
	sessions SessionChecker,
	publisher telemetry.Publisher,
	limits Limits,
) *Service {
	if limits.MaxBatch <= 0 {
		limits.MaxBatch = DefaultMaxBatch
	}
	meter := otel.Meter(meterName)
	ingested, err := meter.Int64Counter("kogase.events.ingested",
		metric.WithDescription("Telemetry events stored, by ingestion mode."))
	if err != nil {
		log.Printf("telemetry: ingested counter: %v", err)
		ingested = noop.Int64Counter{}
	}
	batchSize, err := meter.Int64Histogram("kogase.events.batch_size",
		metric.WithDescription("Events per accepted batch."))
	if err != nil {
		log.Printf("telemetry: batch size histogram: %v", err)
		batchSize = noop.Int64Histogram{}
	}
	return &Service{
		repo:      repo,
		registry:  registry,
		projects:  projects,
		sessions:  sessions,
		publisher: publisher,
		limits:    limits,
		clock:     NewClock(nil),
		ingested:  ingested,
		batchSize: batchSize,
	}
}

// LogEvent validates and stores a single event. An event name never seen in the project gets an
// auto-generated definition; a known name with a schema must carry a conforming payload, otherwise
// apperr.ErrInvalidPayload is returned and nothing is stored.
func (s *Service) LogEvent(ctx context.Context, in EventInput) (*domain.Event, error) {
	e, err := newEvent(in)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, e.ProjectID); err != nil {
		return nil, err
	}
	def, err := s.registry.GetOrNull(ctx, e.ProjectID, e.EventName)
	if err != nil {
		return nil, err
	}
	if def == nil {
		if _, err := s.registry.EnsureExists(ctx, e.ProjectID, e.EventName, e.Category); err != nil {
			return nil, err
		}
	} else if !defservice.Accepts(def, e.Payload) {
		return nil, fmt.Errorf("%w: payload does not match the %q schema", apperr.ErrInvalidPayload, e.EventName)
	}
	e.ID = uuid.New().String()
	e.Timestamp = s.clock.Next()
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "single")))
	telemetry.PublishAsync(s.publisher, e)
	return e, nil
}

// LogBatch stores events that all belong to projectID as one unit under a single timestamp.
// Schema validation is skipped; definitions for unseen names are still created, once per
// distinct (project, name, category). A member from another project fails the whole batch with
// apperr.ErrBatchProjectMismatch before anything is written. A storage failure is reported as
// apperr.ErrTransient and leaves no events behind.
func (s *Service) LogBatch(ctx context.Context, projectID string, inputs []EventInput) ([]*domain.Event, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", apperr.ErrInvalidArgument)
	}
	if len(inputs) > s.limits.MaxBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds the limit of %d", apperr.ErrInvalidArgument, len(inputs), s.limits.MaxBatch)
	}
	for i, in := range inputs {
		if in.ProjectID != "" && in.ProjectID != projectID {
			return nil, fmt.Errorf("%w: event %d belongs to project %s, batch is for %s",
				apperr.ErrBatchProjectMismatch, i, in.ProjectID, projectID)
		}
	}
	events := make([]*domain.Event, 0, len(inputs))
	for i, in := range inputs {
		in.ProjectID = projectID
		e, err := newEvent(in)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, e)
	}
	if len(events) == 0 {
		return events, nil
	}
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	type kind struct{ name, category string }
	seen := make(map[kind]bool)
	for _, e := range events {
		k := kind{e.EventName, e.Category}
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, err := s.registry.EnsureExists(ctx, projectID, e.EventName, e.Category); err != nil {
			return nil, err
		}
	}

	ts := s.clock.Next()
	for _, e := range events {
		e.ID = uuid.New().String()
		e.Timestamp = ts
	}
	if err := s.repo.CreateBatch(ctx, events); err != nil {
		return nil, apperr.Transient("store event batch", err)
	}
	s.ingested.Add(ctx, int64(len(events)), metric.WithAttributes(attribute.String("mode", "batch")))
	s.batchSize.Record(ctx, int64(len(events)))
	telemetry.PublishAsync(s.publisher, events...)
	return events, nil
}

// Get returns the event with id or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: event %s", apperr.ErrNotFound, id)
	}
	return e, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Event, error) {
	return s.repo.ListByProject(ctx, projectID, s.limits.Pages.Normalize(p))
}

// ListBySession returns the session's events in chronological order. Unknown sessions are
// apperr.ErrNotFound when a session checker is configured.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	if s.sessions != nil {
		ok, err := s.sessions.Exists(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, sessionID)
		}
	}
	return s.repo.ListBySession(ctx, sessionID)
}

func (s *Service) ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Event, error) {
	return s.repo.ListByUser(ctx, userID, s.limits.Pages.Normalize(p))
}

func (s *Service) ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Event, error) {
	return s.repo.ListByDevice(ctx, deviceID, s.limits.Pages.Normalize(p))
}

func (s *Service) ListByName(ctx context.Context, projectID, eventName string, p page.Request) ([]*domain.Event, error) {
	return s.repo.ListByName(ctx, projectID, eventName, s.limits.Pages.Normalize(p))
}

func (s *Service) ListByCategory(ctx context.Context, projectID, category string, p page.Request) ([]*domain.Event, error) {
	return s.repo.ListByCategory(ctx, projectID, category, s.limits.Pages.Normalize(p))
}

func (s *Service) ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Event, error) {
	return s.repo.ListByTimeRange(ctx, projectID, start, end, s.limits.Pages.Normalize(p))
}

// ListInRange returns every event of the project in [start, end], oldest first.
func (s *Service) ListInRange(ctx context.Context, projectID string, start, end time.Time) ([]*domain.Event, error) {
	return s.repo.ListInRange(ctx, projectID, start, end)
}

func (s *Service) CountByProject(ctx context.Context, projectID string) (int64, error) {
	return s.repo.CountByProject(ctx, projectID)
}

func (s *Service) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	return s.repo.CountBySession(ctx, sessionID)
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

func newEvent(in EventInput) (*domain.Event, error) {
	e := &domain.Event{
		ProjectID:  in.ProjectID,
		UserID:     in.UserID,
		DeviceID:   in.DeviceID,
		SessionID:  in.SessionID,
		EventName:  strings.TrimSpace(in.EventName),
		Category:   strings.TrimSpace(in.Category),
		Payload:    in.Payload,
		Parameters: in.Parameters,
		ClientInfo: in.ClientInfo,
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if err := e.CheckBlobs(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidPayload, err)
	}
	return e, nil
}
