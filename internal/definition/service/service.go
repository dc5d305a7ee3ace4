package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atqamz/kogase-engine/internal/definition/domain"
	"github.com/atqamz/kogase-engine/internal/definition/repository"
	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
)

// ProjectChecker is the project lookup the registry needs before explicit creates.
type ProjectChecker interface {
	Exists(ctx context.Context, projectID string) (bool, error)
}

// CreateInput holds the caller-supplied fields of an explicitly created definition.
type CreateInput struct {
	ProjectID   string
	EventName   string
	Category    string
	Description string
	IsEnabled   bool
	Schema      jsonblob.Blob
}

// UpdateInput replaces the mutable fields of a definition.
type UpdateInput struct {
	Category    string
	Description string
	IsEnabled   bool
	Schema      jsonblob.Blob
}

// Service is the event definition registry.
type Service struct {
	repo     repository.Repository
	projects ProjectChecker
	now      func() time.Time
}

// NewService returns a registry backed by repo. projects may be nil to skip project checks.
func NewService(repo repository.Repository, projects ProjectChecker) *Service {
	return &Service{repo: repo, projects: projects, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the definition with id or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Definition, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: event definition %s", apperr.ErrNotFound, id)
	}
	return d, nil
}

// GetOrNull returns the definition for (projectID, eventName), or nil when none exists.
func (s *Service) GetOrNull(ctx context.Context, projectID, eventName string) (*domain.Definition, error) {
	return s.repo.GetByName(ctx, projectID, eventName)
}

// GetByName is GetOrNull with a missing definition reported as apperr.ErrNotFound.
func (s *Service) GetByName(ctx context.Context, projectID, eventName string) (*domain.Definition, error) {
	d, err := s.GetOrNull(ctx, projectID, eventName)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: event definition %q", apperr.ErrNotFound, eventName)
	}
	return d, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID string) ([]*domain.Definition, error) {
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Service) ListByCategory(ctx context.Context, projectID, category string) ([]*domain.Definition, error) {
	return s.repo.ListByCategory(ctx, projectID, category)
}

// Create registers a new definition. Fails with apperr.ErrAlreadyExists when the event name is taken
// in the project and apperr.ErrNotFound when the project is unknown.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Definition, error) {
	d := &domain.Definition{
		ID:          uuid.New().String(),
		ProjectID:   in.ProjectID,
		EventName:   strings.TrimSpace(in.EventName),
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		IsEnabled:   in.IsEnabled,
		Schema:      in.Schema,
		CreatedAt:   s.now(),
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if err := s.requireProject(ctx, d.ProjectID); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// EnsureExists returns the definition for (projectID, eventName), creating an enabled,
// schema-less one with an auto-generated description when none exists.
// Concurrent calls for the same key yield a single stored definition.
func (s *Service) EnsureExists(ctx context.Context, projectID, eventName, category string) (*domain.Definition, error) {
	if existing, err := s.repo.GetByName(ctx, projectID, eventName); err != nil || existing != nil {
		return existing, err
	}
	d := &domain.Definition{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		EventName:   eventName,
		Category:    category,
		Description: domain.AutoDescription(eventName),
		IsEnabled:   true,
		CreatedAt:   s.now(),
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	stored, _, err := s.repo.EnsureExists(ctx, d)
	return stored, err
}

// Update replaces category, description, enabled flag and schema and stamps UpdatedAt.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*domain.Definition, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	d.Category = strings.TrimSpace(in.Category)
	d.Description = in.Description
	d.IsEnabled = in.IsEnabled
	d.Schema = in.Schema
	d.UpdatedAt = &now
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	ok, err := s.repo.Update(ctx, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: event definition %s", apperr.ErrNotFound, id)
	}
	return d, nil
}

// Delete removes a definition. Events already logged under its name are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: event definition %s", apperr.ErrNotFound, id)
	}
	return nil
}

// ValidatePayload reports whether payload is acceptable for eventName in the project.
// Events without a definition, or whose definition has no schema, accept any payload.
// A malformed schema or payload yields false, not an error; the error is reserved for storage failures.
func (s *Service) ValidatePayload(ctx context.Context, projectID, eventName string, payload jsonblob.Blob) (bool, error) {
	d, err := s.repo.GetByName(ctx, projectID, eventName)
	if err != nil {
		return false, err
	}
	return Accepts(d, payload), nil
}

// Accepts applies d's schema to payload; a nil definition accepts everything.
func Accepts(d *domain.Definition, payload jsonblob.Blob) bool {
	if !d.HasSchema() {
		return true
	}
	return conforms(d.Schema, payload)
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
