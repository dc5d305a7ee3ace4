package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

const eventColumns = `id, project_id, user_id, device_id, session_id, event_name, category, ts, payload, parameters, client_info`

const (
	newestFirst = ` ORDER BY ts DESC, id DESC`
	oldestFirst = ` ORDER BY ts ASC, id ASC`
)

const (
	createEvent = `INSERT INTO telemetry_events (` + eventColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getEvent = `SELECT ` + eventColumns + ` FROM telemetry_events WHERE id = $1`

	listEventsByProject = `SELECT ` + eventColumns + ` FROM telemetry_events WHERE project_id = $1` +
		newestFirst + ` LIMIT $2 OFFSET $3`

	listEventsBySession = `SELECT ` + eventColumns + ` FROM telemetry_events WHERE session_id = $1` + oldestFirst

	listEventsByUser = `SELECT ` + eventColumns + ` FROM telemetry_events WHERE user_id = $1` +
		newestFirst + ` LIMIT $2 OFFSET $3`

	listEventsByDevice = `SELECT ` + eventColumns + ` FROM telemetry_events WHERE device_id = $1` +
		newestFirst + ` LIMIT $2 OFFSET $3`

	listEventsByName = `SELECT ` + eventColumns + ` FROM telemetry_events WHERE project_id = $1 AND event_name = $2` +
		newestFirst + ` LIMIT $3 OFFSET $4`

	listEventsByCategory = `SELECT ` + eventColumns + ` FROM telemetry_events WHERE project_id = $1 AND category = $2` +
		newestFirst + ` LIMIT $3 OFFSET $4`

	listEventsByTimeRange = `SELECT ` + eventColumns + ` FROM telemetry_events
WHERE project_id = $1 AND ts >= $2 AND ts <= $3` + newestFirst + ` LIMIT $4 OFFSET $5`

	listEventsInRange = `SELECT ` + eventColumns + ` FROM telemetry_events
WHERE project_id = $1 AND ts >= $2 AND ts <= $3` + oldestFirst

	countEventsByProject = `SELECT COUNT(*) FROM telemetry_events WHERE project_id = $1`

	countEventsBySession = `SELECT COUNT(*) FROM telemetry_events WHERE session_id = $1`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a telemetry repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.db.ExecContext(ctx, createEvent, eventArgs(e)...)
	return err
}

// CreateBatch inserts events in a single transaction; on any failure nothing is committed.
func (r *PostgresRepository) CreateBatch(ctx context.Context, events []*domain.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, createEvent)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range events {
		if _, err = stmt.ExecContext(ctx, eventArgs(e)...); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetByID returns the event for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, getEvent, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Event, error) {
	return r.list(ctx, listEventsByProject, projectID, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	return r.list(ctx, listEventsBySession, sessionID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Event, error) {
	return r.list(ctx, listEventsByUser, userID, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Event, error) {
	return r.list(ctx, listEventsByDevice, deviceID, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByName(ctx context.Context, projectID, eventName string, p page.Request) ([]*domain.Event, error) {
	return r.list(ctx, listEventsByName, projectID, eventName, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByCategory(ctx context.Context, projectID, category string, p page.Request) ([]*domain.Event, error) {
	return r.list(ctx, listEventsByCategory, projectID, category, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Event, error) {
	return r.list(ctx, listEventsByTimeRange, projectID, start, end, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListInRange(ctx context.Context, projectID string, start, end time.Time) ([]*domain.Event, error) {
	return r.list(ctx, listEventsInRange, projectID, start, end)
}

func (r *PostgresRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countEventsByProject, projectID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countEventsBySession, sessionID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one row. Structured columns that fail to parse come back as invalid blobs
// rather than failing the read.
func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		e                           domain.Event
		userID, deviceID, sessionID sql.NullString
	)
	err := row.Scan(&e.ID, &e.ProjectID, &userID, &deviceID, &sessionID, &e.EventName, &e.Category,
		&e.Timestamp, &e.Payload, &e.Parameters, &e.ClientInfo)
	if err != nil {
		return nil, err
	}
	e.Timestamp = e.Timestamp.UTC()
	e.UserID = ptrFromNullString(userID)
	e.DeviceID = ptrFromNullString(deviceID)
	e.SessionID = ptrFromNullString(sessionID)
	return &e, nil
}

func eventArgs(e *domain.Event) []any {
	return []any{e.ID, e.ProjectID, nullStringFromPtr(e.UserID), nullStringFromPtr(e.DeviceID),
		nullStringFromPtr(e.SessionID), e.EventName, e.Category, e.Timestamp, e.Payload, e.Parameters, e.ClientInfo}
}

func nullStringFromPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrFromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
