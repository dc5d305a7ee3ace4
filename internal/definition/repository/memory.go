package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atqamz/kogase-engine/internal/definition/domain"
	"github.com/atqamz/kogase-engine/internal/platform/apperr"
)

type nameKey struct {
	projectID string
	eventName string
}

// MemoryRepository is an in-memory Repository. The name index plays the role of the unique constraint.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Definition
	byName map[nameKey]string
}

// NewMemoryRepository returns an empty in-memory definition repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*domain.Definition),
		byName: make(map[nameKey]string),
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetByName(ctx context.Context, projectID, eventName string) (*domain.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[nameKey{projectID, eventName}]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Definition, error) {
	return r.filter(func(d *domain.Definition) bool { return d.ProjectID == projectID }), nil
}

func (r *MemoryRepository) ListByCategory(ctx context.Context, projectID, category string) ([]*domain.Definition, error) {
	return r.filter(func(d *domain.Definition) bool {
		return d.ProjectID == projectID && d.Category == category
	}), nil
}

func (r *MemoryRepository) Create(ctx context.Context, d *domain.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := nameKey{d.ProjectID, d.EventName}
	if _, ok := r.byName[k]; ok {
		return fmt.Errorf("%w: event definition %q", apperr.ErrAlreadyExists, d.EventName)
	}
	r.byID[d.ID] = clone(d)
	r.byName[k] = d.ID
	return nil
}

func (r *MemoryRepository) EnsureExists(ctx context.Context, d *domain.Definition) (*domain.Definition, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := nameKey{d.ProjectID, d.EventName}
	if id, ok := r.byName[k]; ok {
		return clone(r.byID[id]), false, nil
	}
	r.byID[d.ID] = clone(d)
	r.byName[k] = d.ID
	return clone(d), true, nil
}

func (r *MemoryRepository) Update(ctx context.Context, d *domain.Definition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[d.ID]
	if !ok {
		return false, nil
	}
	next := clone(cur)
	next.Category = d.Category
	next.Description = d.Description
	next.IsEnabled = d.IsEnabled
	next.Schema = d.Schema
	next.UpdatedAt = d.UpdatedAt
	r.byID[d.ID] = next
	return true, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byID, id)
	delete(r.byName, nameKey{d.ProjectID, d.EventName})
	return true, nil
}

// Len returns the number of stored definitions.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryRepository) filter(keep func(*domain.Definition) bool) []*domain.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Definition
	for _, d := range r.byID {
		if keep(d) {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventName < out[j].EventName })
	return out
}

func clone(d *domain.Definition) *domain.Definition {
	if d == nil {
		return nil
	}
	cp := *d
	if d.UpdatedAt != nil {
		t := *d.UpdatedAt
		cp.UpdatedAt = &t
	}
	return &cp
}
