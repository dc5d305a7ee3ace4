package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

// MemoryRepository is an in-memory Repository. A batch is appended under one lock, so readers
// never see part of it.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []*domain.Event
	byID   map[string]*domain.Event
}

// NewMemoryRepository returns an empty in-memory event store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Event)}
}

func (r *MemoryRepository) Create(ctx context.Context, e *domain.Event) error {
	return r.CreateBatch(ctx, []*domain.Event{e})
}

func (r *MemoryRepository) CreateBatch(ctx context.Context, events []*domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		cp := clone(e)
		r.events = append(r.events, cp)
		r.byID[cp.ID] = cp
	}
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Event, error) {
	return page.Slice(r.newest(func(e *domain.Event) bool { return e.ProjectID == projectID }), p), nil
}

func (r *MemoryRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	return reverse(r.newest(func(e *domain.Event) bool { return eq(e.SessionID, sessionID) })), nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Event, error) {
	return page.Slice(r.newest(func(e *domain.Event) bool { return eq(e.UserID, userID) }), p), nil
}

func (r *MemoryRepository) ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Event, error) {
	return page.Slice(r.newest(func(e *domain.Event) bool { return eq(e.DeviceID, deviceID) }), p), nil
}

func (r *MemoryRepository) ListByName(ctx context.Context, projectID, eventName string, p page.Request) ([]*domain.Event, error) {
	return page.Slice(r.newest(func(e *domain.Event) bool {
		return e.ProjectID == projectID && e.EventName == eventName
	}), p), nil
}

func (r *MemoryRepository) ListByCategory(ctx context.Context, projectID, category string, p page.Request) ([]*domain.Event, error) {
	return page.Slice(r.newest(func(e *domain.Event) bool {
		return e.ProjectID == projectID && e.Category == category
	}), p), nil
}

func (r *MemoryRepository) ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Event, error) {
	return page.Slice(r.newest(inRange(projectID, start, end)), p), nil
}

func (r *MemoryRepository) ListInRange(ctx context.Context, projectID string, start, end time.Time) ([]*domain.Event, error) {
	return reverse(r.newest(inRange(projectID, start, end))), nil
}

func (r *MemoryRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	return int64(len(r.newest(func(e *domain.Event) bool { return e.ProjectID == projectID }))), nil
}

func (r *MemoryRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	return int64(len(r.newest(func(e *domain.Event) bool { return eq(e.SessionID, sessionID) }))), nil
}

// Len returns the number of stored events.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func (r *MemoryRepository) newest(keep func(*domain.Event) bool) []*domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Event
	for _, e := range r.events {
		if keep(e) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func inRange(projectID string, start, end time.Time) func(*domain.Event) bool {
	return func(e *domain.Event) bool {
		return e.ProjectID == projectID && !e.Timestamp.Before(start) && !e.Timestamp.After(end)
	}
}

func eq(p *string, v string) bool {
	return p != nil && *p == v
}

func reverse(events []*domain.Event) []*domain.Event {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events
}

func clone(e *domain.Event) *domain.Event {
	if e == nil {
		return nil
	}
	cp := *e
	for _, p := range []**string{&cp.UserID, &cp.DeviceID, &cp.SessionID} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return &cp
}
