package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/playsession/domain"
	"github.com/atqamz/kogase-engine/internal/playsession/repository"
)

const meterName = "github.com/atqamz/kogase-engine/internal/playsession"

// ProjectChecker is the project lookup needed before a session is started.
type ProjectChecker interface {
	Exists(ctx context.Context, projectID string) (bool, error)
}

// StartInput holds the client-reported attributes of a new session.
type StartInput struct {
	ProjectID   string
	UserID      *string
	DeviceID    *string
	GameVersion string
	Platform    string
	Country     string
	DeviceModel string
	OSVersion   string
	Properties  jsonblob.Blob
}

// Service tracks play session lifecycles: Active to one of Ended, TimedOut or Crashed.
type Service struct {
	repo        repository.Repository
	projects    ProjectChecker
	pages       page.Config
	now         func() time.Time
	transitions metric.Int64Counter
}

// NewService returns a tracker backed by repo. projects may be nil to skip project checks.
func NewService(repo repository.Repository, projects ProjectChecker, pages page.Config) *Service {
	transitions, err := otel.Meter(meterName).Int64Counter("kogase.play_sessions.transitions",
		metric.WithDescription("Play session state transitions by resulting status."))
	if err != nil {
		log.Printf("playsession: transitions counter: %v", err)
		transitions = noop.Int64Counter{}
	}
	return &Service{
		repo:        repo,
		projects:    projects,
		pages:       pages,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		transitions: transitions,
	}
}

// Start opens an active session stamped with the current time.
func (s *Service) Start(ctx context.Context, in StartInput) (*domain.Session, error) {
	sess := &domain.Session{
		ID:          uuid.New().String(),
		ProjectID:   in.ProjectID,
		UserID:      in.UserID,
		DeviceID:    in.DeviceID,
		GameVersion: in.GameVersion,
		StartTime:   s.now(),
		Platform:    in.Platform,
		Country:     in.Country,
		DeviceModel: in.DeviceModel,
		OSVersion:   in.OSVersion,
		Properties:  in.Properties,
		Status:      domain.StatusActive,
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if s.projects != nil {
		ok, err := s.projects.Exists(ctx, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: project %s", apperr.ErrNotFound, in.ProjectID)
		}
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.record(ctx, domain.StatusActive)
	return sess, nil
}

// Get returns the session with id or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, id)
	}
	return sess, nil
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	sess, err := s.repo.GetByID(ctx, id)
	return sess != nil, err
}

// End closes an active session. A second End on the same session fails with apperr.ErrInvalidState
// and leaves the stored session untouched.
func (s *Service) End(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.repo.End(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, s.whyNot(ctx, id)
	}
	s.record(ctx, domain.StatusEnded)
	return sess, nil
}

// UpdateStatus overwrites the session status. A terminal status records the end time and duration
// the first time it is applied; later terminal statuses only replace the status.
// Reactivating a terminal session fails with apperr.ErrInvalidState.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Session, error) {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	sess, err := s.repo.SetStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, s.whyNot(ctx, id)
	}
	s.record(ctx, status)
	return sess, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Session, error) {
	return s.repo.ListByProject(ctx, projectID, s.pages.Normalize(p))
}

func (s *Service) ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Session, error) {
	return s.repo.ListByUser(ctx, userID, s.pages.Normalize(p))
}

func (s *Service) ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Session, error) {
	return s.repo.ListByDevice(ctx, deviceID, s.pages.Normalize(p))
}

func (s *Service) ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Session, error) {
	return s.repo.ListByTimeRange(ctx, projectID, start, end, s.pages.Normalize(p))
}

func (s *Service) ListActive(ctx context.Context, projectID string) ([]*domain.Session, error) {
	return s.repo.ListActive(ctx, projectID)
}

func (s *Service) CountByProject(ctx context.Context, projectID string) (int64, error) {
	return s.repo.CountByProject(ctx, projectID)
}

// AverageDuration returns the mean duration in seconds of the project's finished sessions, or 0 when none finished.
func (s *Service) AverageDuration(ctx context.Context, projectID string) (float64, error) {
	return s.repo.AverageDuration(ctx, projectID)
}

// whyNot explains a transition that matched no row.
func (s *Service) whyNot(ctx context.Context, id string) error {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("%w: session %s", apperr.ErrNotFound, id)
	}
	return fmt.Errorf("%w: session %s is %s", apperr.ErrInvalidState, id, cur.Status)
}

func (s *Service) record(ctx context.Context, status domain.Status) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
