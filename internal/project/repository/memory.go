package repository

import (
	"context"
	"sync"

	"github.com/atqamz/kogase-engine/internal/project/domain"
)

// MemoryRepository is an in-memory Repository, used when no database is configured and in tests.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]*domain.Project
}

// NewMemoryRepository returns an empty in-memory project repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Project)}
}

func (r *MemoryRepository) Exists(ctx context.Context, projectID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[projectID]
	return ok, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) Create(ctx context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[p.ID]; ok {
		return nil
	}
	cp := *p
	r.m[p.ID] = &cp
	return nil
}
