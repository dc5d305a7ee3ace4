package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atqamz/kogase-engine/internal/metric/domain"
	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/page"
)

// MemoryRepository is an in-memory Repository. One mutex serializes all writes.
type MemoryRepository struct {
	mu    sync.RWMutex
	byKey map[string]*domain.Aggregate
	byID  map[string]*domain.Aggregate
}

// NewMemoryRepository returns an empty in-memory metric store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byKey: make(map[string]*domain.Aggregate),
		byID:  make(map[string]*domain.Aggregate),
	}
}

func (r *MemoryRepository) Upsert(ctx context.Context, a *domain.Aggregate) (*domain.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.put(a)), nil
}

func (r *MemoryRepository) UpsertLatest(ctx context.Context, a *domain.Aggregate, at time.Time) (*domain.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Aggregate
	for _, row := range r.byID {
		if row.ProjectID == a.ProjectID && row.MetricName == a.MetricName && row.Dimension == a.Dimension &&
			row.DimensionValue == a.DimensionValue && row.Period == a.Period &&
			(latest == nil || row.Timestamp.After(latest.Timestamp)) {
			latest = row
		}
	}
	if latest == nil {
		row := *a
		row.Timestamp = at
		return clone(r.put(&row)), nil
	}
	moved := latest.Key()
	moved.Timestamp = at
	if other, ok := r.byKey[keyString(moved)]; ok && other.ID != latest.ID {
		return nil, fmt.Errorf("%w: metric %s already has a row at %s", apperr.ErrAlreadyExists,
			a.MetricName, at.Format(time.RFC3339Nano))
	}
	delete(r.byKey, keyString(latest.Key()))
	latest.SetValues(a)
	latest.Timestamp = at
	r.byKey[keyString(latest.Key())] = latest
	return clone(latest), nil
}

func (r *MemoryRepository) BatchUpsert(ctx context.Context, as []*domain.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range as {
		a.ID = r.put(a).ID
	}
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Aggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetLatest(ctx context.Context, projectID, metricName, dimension string) (*domain.Aggregate, error) {
	rows := r.newest(func(a *domain.Aggregate) bool {
		return a.ProjectID == projectID && a.MetricName == metricName && a.Dimension == dimension
	})
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *MemoryRepository) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Aggregate, error) {
	return page.Slice(r.newest(func(a *domain.Aggregate) bool { return a.ProjectID == projectID }), p), nil
}

func (r *MemoryRepository) ListByName(ctx context.Context, projectID, metricName string) ([]*domain.Aggregate, error) {
	return r.newest(func(a *domain.Aggregate) bool {
		return a.ProjectID == projectID && a.MetricName == metricName
	}), nil
}

func (r *MemoryRepository) ListByDimension(ctx context.Context, projectID, dimension, dimensionValue string) ([]*domain.Aggregate, error) {
	return r.newest(func(a *domain.Aggregate) bool {
		return a.ProjectID == projectID && a.Dimension == dimension && a.DimensionValue == dimensionValue
	}), nil
}

func (r *MemoryRepository) ListByPeriod(ctx context.Context, projectID string, period domain.Period, start, end time.Time) ([]*domain.Aggregate, error) {
	return r.newest(func(a *domain.Aggregate) bool {
		return a.ProjectID == projectID && a.Period == period && !a.Timestamp.Before(start) && !a.Timestamp.After(end)
	}), nil
}

// Len returns the number of stored rows.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// put stores a at its exact key. Callers hold the write lock.
func (r *MemoryRepository) put(a *domain.Aggregate) *domain.Aggregate {
	k := keyString(a.Key())
	if row, ok := r.byKey[k]; ok {
		row.SetValues(a)
		return row
	}
	row := clone(a)
	r.byKey[k] = row
	r.byID[row.ID] = row
	return row
}

func (r *MemoryRepository) newest(keep func(*domain.Aggregate) bool) []*domain.Aggregate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Aggregate
	for _, a := range r.byID {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		if out[i].MetricName != out[j].MetricName {
			return out[i].MetricName < out[j].MetricName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func keyString(k domain.Key) string {
	return fmt.Sprintf("%q|%q|%q|%q|%d|%s", k.ProjectID, k.MetricName, k.Dimension, k.DimensionValue,
		k.Timestamp.UnixMicro(), k.Period)
}

func clone(a *domain.Aggregate) *domain.Aggregate {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
