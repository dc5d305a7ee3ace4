package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/playsession/domain"
)

// MemoryRepository is an in-memory Repository. Transitions are serialized by its mutex.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Session
}

// NewMemoryRepository returns an empty in-memory play session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = clone(s)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) End(ctx context.Context, id string, at time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.Status != domain.StatusActive {
		return nil, nil
	}
	s.Close(at)
	s.Status = domain.StatusEnded
	return clone(s), nil
}

func (r *MemoryRepository) SetStatus(ctx context.Context, id string, status domain.Status, at time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	if status == domain.StatusActive && s.Status != domain.StatusActive {
		return nil, nil
	}
	if status.IsTerminal() {
		s.Close(at)
	}
	s.Status = status
	return clone(s), nil
}

func (r *MemoryRepository) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Session, error) {
	return page.Slice(r.filter(func(s *domain.Session) bool { return s.ProjectID == projectID }), p), nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Session, error) {
	return page.Slice(r.filter(func(s *domain.Session) bool { return s.UserID != nil && *s.UserID == userID }), p), nil
}

func (r *MemoryRepository) ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Session, error) {
	return page.Slice(r.filter(func(s *domain.Session) bool { return s.DeviceID != nil && *s.DeviceID == deviceID }), p), nil
}

func (r *MemoryRepository) ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Session, error) {
	return page.Slice(r.filter(func(s *domain.Session) bool {
		return s.ProjectID == projectID && !s.StartTime.Before(start) && (s.EndTime == nil || !s.EndTime.After(end))
	}), p), nil
}

func (r *MemoryRepository) ListActive(ctx context.Context, projectID string) ([]*domain.Session, error) {
	return r.filter(func(s *domain.Session) bool {
		return s.ProjectID == projectID && s.Status == domain.StatusActive
	}), nil
}

func (r *MemoryRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	return int64(len(r.filter(func(s *domain.Session) bool { return s.ProjectID == projectID }))), nil
}

func (r *MemoryRepository) AverageDuration(ctx context.Context, projectID string) (float64, error) {
	var sum, n int
	for _, s := range r.filter(func(s *domain.Session) bool { return s.ProjectID == projectID && s.DurationSeconds != nil }) {
		sum += *s.DurationSeconds
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

func (r *MemoryRepository) filter(keep func(*domain.Session) bool) []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.byID {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func clone(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.UserID != nil {
		v := *s.UserID
		cp.UserID = &v
	}
	if s.DeviceID != nil {
		v := *s.DeviceID
		cp.DeviceID = &v
	}
	if s.EndTime != nil {
		v := *s.EndTime
		cp.EndTime = &v
	}
	if s.DurationSeconds != nil {
		v := *s.DurationSeconds
		cp.DurationSeconds = &v
	}
	return &cp
}
