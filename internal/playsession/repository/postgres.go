package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/playsession/domain"
)

const sessionColumns = `id, project_id, user_id, device_id, game_version, start_time, end_time, duration_seconds,
platform, country, device_model, os_version, session_properties, status`

const newestFirst = ` ORDER BY start_time DESC, id DESC`

const (
	createSession = `INSERT INTO play_sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	getSession = `SELECT ` + sessionColumns + ` FROM play_sessions WHERE id = $1`

	endSession = `UPDATE play_sessions
SET status = 'ended',
    end_time = $2::timestamptz,
    duration_seconds = ROUND(EXTRACT(EPOCH FROM ($2::timestamptz - start_time)))::int
WHERE id = $1 AND status = 'active'
RETURNING ` + sessionColumns

	setSessionStatus = `UPDATE play_sessions
SET status = $2::text,
    end_time = CASE WHEN $2::text <> 'active' THEN COALESCE(end_time, $3::timestamptz) ELSE end_time END,
    duration_seconds = CASE WHEN $2::text <> 'active'
        THEN COALESCE(duration_seconds, ROUND(EXTRACT(EPOCH FROM ($3::timestamptz - start_time)))::int)
        ELSE duration_seconds END
WHERE id = $1 AND ($2::text <> 'active' OR status = 'active')
RETURNING ` + sessionColumns

	listSessionsByProject = `SELECT ` + sessionColumns + ` FROM play_sessions WHERE project_id = $1` +
		newestFirst + ` LIMIT $2 OFFSET $3`

	listSessionsByUser = `SELECT ` + sessionColumns + ` FROM play_sessions WHERE user_id = $1` +
		newestFirst + ` LIMIT $2 OFFSET $3`

	listSessionsByDevice = `SELECT ` + sessionColumns + ` FROM play_sessions WHERE device_id = $1` +
		newestFirst + ` LIMIT $2 OFFSET $3`

	listSessionsByTimeRange = `SELECT ` + sessionColumns + ` FROM play_sessions
WHERE project_id = $1 AND start_time >= $2 AND (end_time IS NULL OR end_time <= $3)` +
		newestFirst + ` LIMIT $4 OFFSET $5`

	listActiveSessions = `SELECT ` + sessionColumns + ` FROM play_sessions
WHERE project_id = $1 AND status = 'active'` + newestFirst

	countSessions = `SELECT COUNT(*) FROM play_sessions WHERE project_id = $1`

	averageSessionDuration = `SELECT COALESCE(AVG(duration_seconds), 0)::float8 FROM play_sessions
WHERE project_id = $1 AND duration_seconds IS NOT NULL`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a play session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	var duration sql.NullInt32
	if s.DurationSeconds != nil {
		duration = sql.NullInt32{Int32: int32(*s.DurationSeconds), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, createSession,
		s.ID, s.ProjectID, nullString(s.UserID), nullString(s.DeviceID), s.GameVersion, s.StartTime,
		nullTime(s.EndTime), duration, s.Platform, s.Country, s.DeviceModel, s.OSVersion,
		s.Properties, string(s.Status))
	return err
}

// GetByID returns the session for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.one(ctx, getSession, id)
}

func (r *PostgresRepository) End(ctx context.Context, id string, at time.Time) (*domain.Session, error) {
	return r.one(ctx, endSession, id, at)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.Status, at time.Time) (*domain.Session, error) {
	return r.one(ctx, setSessionStatus, id, string(status), at)
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string, p page.Request) ([]*domain.Session, error) {
	return r.list(ctx, listSessionsByProject, projectID, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, p page.Request) ([]*domain.Session, error) {
	return r.list(ctx, listSessionsByUser, userID, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, p page.Request) ([]*domain.Session, error) {
	return r.list(ctx, listSessionsByDevice, deviceID, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListByTimeRange(ctx context.Context, projectID string, start, end time.Time, p page.Request) ([]*domain.Session, error) {
	return r.list(ctx, listSessionsByTimeRange, projectID, start, end, p.Limit(), p.Offset())
}

func (r *PostgresRepository) ListActive(ctx context.Context, projectID string) ([]*domain.Session, error) {
	return r.list(ctx, listActiveSessions, projectID)
}

func (r *PostgresRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countSessions, projectID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) AverageDuration(ctx context.Context, projectID string) (float64, error) {
	var avg float64
	err := r.db.QueryRowContext(ctx, averageSessionDuration, projectID).Scan(&avg)
	return avg, err
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s                domain.Session
		userID, deviceID sql.NullString
		endTime          sql.NullTime
		duration         sql.NullInt32
		status           string
	)
	err := row.Scan(&s.ID, &s.ProjectID, &userID, &deviceID, &s.GameVersion, &s.StartTime, &endTime,
		&duration, &s.Platform, &s.Country, &s.DeviceModel, &s.OSVersion, &s.Properties, &status)
	if err != nil {
		return nil, err
	}
	s.StartTime = s.StartTime.UTC()
	s.Status = domain.Status(status)
	if userID.Valid {
		s.UserID = &userID.String
	}
	if deviceID.Valid {
		s.DeviceID = &deviceID.String
	}
	if endTime.Valid {
		t := endTime.Time.UTC()
		s.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int32)
		s.DurationSeconds = &d
	}
	return &s, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
