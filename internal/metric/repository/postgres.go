package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/atqamz/kogase-engine/internal/db"
	"github.com/atqamz/kogase-engine/internal/metric/domain"
	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/page"
)

const aggregateColumns = `id, project_id, metric_name, dimension, dimension_value, ts, period,
sum, average, min, max, count, unique_count, additional_data`

const (
	upsertAggregate = `INSERT INTO metric_aggregates (` + aggregateColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (project_id, metric_name, dimension, dimension_value, ts, period) DO UPDATE
SET sum = EXCLUDED.sum,
    average = EXCLUDED.average,
    min = EXCLUDED.min,
    max = EXCLUDED.max,
    count = EXCLUDED.count,
    unique_count = EXCLUDED.unique_count,
    additional_data = EXCLUDED.additional_data
RETURNING ` + aggregateColumns

	lockAggregateKey = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	latestForKey = `SELECT ` + aggregateColumns + ` FROM metric_aggregates
WHERE project_id = $1 AND metric_name = $2 AND dimension = $3 AND dimension_value = $4 AND period = $5
ORDER BY ts DESC LIMIT 1 FOR UPDATE`

	moveAggregate = `UPDATE metric_aggregates
SET ts = $2, sum = $3, average = $4, min = $5, max = $6, count = $7, unique_count = $8, additional_data = $9
WHERE id = $1
RETURNING ` + aggregateColumns

	getAggregate = `SELECT ` + aggregateColumns + ` FROM metric_aggregates WHERE id = $1`

	latestAggregate = `SELECT ` + aggregateColumns + ` FROM metric_aggregates
WHERE project_id = $1 AND metric_name = $2 AND dimension = $3
ORDER BY ts DESC, id DESC LIMIT 1`

	listAggregatesByProject = `SELECT ` + aggregateColumns + ` FROM metric_aggregates
WHERE project_id = $1 ORDER BY ts DESC, metric_name, id LIMIT $2 OFFSET $3`

	listAggregatesByName = `SELECT ` + aggregateColumns + ` FROM metric_aggregates
WHERE project_id = $1 AND metric_name = $2 ORDER BY ts DESC, id`

	listAggregatesByDimension = `SELECT ` + aggregateColumns + ` FROM metric_aggregates
WHERE project_id = $1 AND dimension = $2 AND dimension_value = $3 ORDER BY ts DESC, metric_name, id`

	listAggregatesByPeriod = `SELECT ` + aggregateColumns + ` FROM metric_aggregates
WHERE project_id = $1 AND period = $2 AND ts >= $3 AND ts <= $4 ORDER BY ts DESC, metric_name, id`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a metric repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, a *domain.Aggregate) (*domain.Aggregate, error) {
	return scanAggregate(r.db.QueryRowContext(ctx, upsertAggregate, aggregateArgs(a)...))
}

func (r *PostgresRepository) UpsertLatest(ctx context.Context, a *domain.Aggregate, at time.Time) (out *domain.Aggregate, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, lockAggregateKey, lockKey(a)); err != nil {
		return nil, err
	}
	existing, err := scanAggregate(tx.QueryRowContext(ctx, latestForKey,
		a.ProjectID, a.MetricName, a.Dimension, a.DimensionValue, string(a.Period)))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		row := *a
		row.Timestamp = at
		out, err = scanAggregate(tx.QueryRowContext(ctx, upsertAggregate, aggregateArgs(&row)...))
	case err != nil:
		return nil, err
	default:
		out, err = scanAggregate(tx.QueryRowContext(ctx, moveAggregate, existing.ID, at,
			a.Sum, a.Average, a.Min, a.Max, a.Count, a.UniqueCount, a.AdditionalData))
		if db.IsUniqueViolation(err) {
			err = fmt.Errorf("%w: metric %s already has a row at %s", apperr.ErrAlreadyExists,
				a.MetricName, at.Format(time.RFC3339Nano))
		}
	}
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchUpsert writes rows in key order so concurrent batches over the same keys do not deadlock.
func (r *PostgresRepository) BatchUpsert(ctx context.Context, as []*domain.Aggregate) (err error) {
	if len(as) == 0 {
		return nil
	}
	sorted := append([]*domain.Aggregate(nil), as...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key().Less(sorted[j].Key()) })

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, upsertAggregate)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range sorted {
		var stored *domain.Aggregate
		if stored, err = scanAggregate(stmt.QueryRowContext(ctx, aggregateArgs(a)...)); err != nil {
			return fmt.Errorf("upsert %s: %w", a.MetricName, err)
		}
		a.ID = stored.ID
	}
	return tx.Commit()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Aggregate, error) {
	return r.one(ctx, getAggregate, id)
}

func (r *PostgresRepository) GetLatest(ctx context.Context, projectID, metricName, dimension string) (*domain.Aggregate, error) {
	return r.one(ctx, latestAggregate, projectID, metricName, dimension)
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Aggregate, error) {
	return r.list(ctx, listAggregatesByProject, projectID, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByName(ctx context.Context, projectID, metricName string) ([]*domain.Aggregate, error) {
	return r.list(ctx, listAggregatesByName, projectID, metricName)
}

func (r *PostgresRepository) ListByDimension(ctx context.Context, projectID, dimension, dimensionValue string) ([]*domain.Aggregate, error) {
	return r.list(ctx, listAggregatesByDimension, projectID, dimension, dimensionValue)
}

func (r *PostgresRepository) ListByPeriod(ctx context.Context, projectID string, period domain.Period, start, end time.Time) ([]*domain.Aggregate, error) {
	return r.list(ctx, listAggregatesByPeriod, projectID, string(period), start, end)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*domain.Aggregate, error) {
	a, err := scanAggregate(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Aggregate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Aggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAggregate(row rowScanner) (*domain.Aggregate, error) {
	var a domain.Aggregate
	var period string
	err := row.Scan(&a.ID, &a.ProjectID, &a.MetricName, &a.Dimension, &a.DimensionValue, &a.Timestamp, &period,
		&a.Sum, &a.Average, &a.Min, &a.Max, &a.Count, &a.UniqueCount, &a.AdditionalData)
	if err != nil {
		return nil, err
	}
	a.Period = domain.Period(period)
	a.Timestamp = a.Timestamp.UTC()
	return &a, nil
}

func aggregateArgs(a *domain.Aggregate) []any {
	return []any{a.ID, a.ProjectID, a.MetricName, a.Dimension, a.DimensionValue, a.Timestamp, string(a.Period),
		a.Sum, a.Average, a.Min, a.Max, a.Count, a.UniqueCount, a.AdditionalData}
}

func lockKey(a *domain.Aggregate) string {
	return fmt.Sprintf("metric:%q:%q:%q:%q:%s", a.ProjectID, a.MetricName, a.Dimension, a.DimensionValue, a.Period)
}
