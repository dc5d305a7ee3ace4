package db_test

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atqamz/kogase-engine/internal/db"
	"github.com/atqamz/kogase-engine/internal/db/migrate"
	defdomain "github.com/atqamz/kogase-engine/internal/definition/domain"
	defrepo "github.com/atqamz/kogase-engine/internal/definition/repository"
	mdomain "github.com/atqamz/kogase-engine/internal/metric/domain"
	mrepo "github.com/atqamz/kogase-engine/internal/metric/repository"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	psdomain "github.com/atqamz/kogase-engine/internal/playsession/domain"
	psrepo "github.com/atqamz/kogase-engine/internal/playsession/repository"
	projdomain "github.com/atqamz/kogase-engine/internal/project/domain"
	projrepo "github.com/atqamz/kogase-engine/internal/project/repository"
	tdomain "github.com/atqamz/kogase-engine/internal/telemetry/domain"
	trepo "github.com/atqamz/kogase-engine/internal/telemetry/repository"
)

// openTestDB migrates DATABASE_URL and creates a fresh project. Skips when no database is configured.
func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	projectID := uuid.New().String()
	p := &projdomain.Project{ID: projectID, Name: "integration", CreatedAt: time.Now().UTC()}
	if err := projrepo.NewPostgresRepository(conn).Create(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	t.Cleanup(func() { _, _ = conn.Exec(`DELETE FROM projects WHERE id = $1`, projectID) })
	return conn, projectID
}

func TestPostgres_EnsureDefinitionConcurrent(t *testing.T) {
	conn, projectID := openTestDB(t)
	repo := defrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	ids := make(map[string]bool)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, ok, err := repo.EnsureExists(ctx, &defdomain.Definition{
				ID:          uuid.New().String(),
				ProjectID:   projectID,
				EventName:   "new_event",
				Description: defdomain.AutoDescription("new_event"),
				IsEnabled:   true,
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				t.Errorf("EnsureExists: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[d.ID] = true
			if ok {
				created++
			}
		}()
	}
	wg.Wait()
	if created != 1 || len(ids) != 1 {
		t.Fatalf("created=%d distinct ids=%d, want 1 and 1", created, len(ids))
	}
	defs, err := repo.ListByProject(ctx, projectID)
	if err != nil || len(defs) != 1 {
		t.Fatalf("ListByProject = %d, %v", len(defs), err)
	}
}

func TestPostgres_SessionEndOnce(t *testing.T) {
	conn, projectID := openTestDB(t)
	repo := psrepo.NewPostgresRepository(conn)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Microsecond)
	s := &psdomain.Session{ID: uuid.New().String(), ProjectID: projectID, StartTime: start, Status: psdomain.StatusActive}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ended, err := repo.End(ctx, s.ID, start.Add(90*time.Second+600*time.Millisecond))
	if err != nil || ended == nil {
		t.Fatalf("End = %v, %v", ended, err)
	}
	if ended.DurationSeconds == nil || *ended.DurationSeconds != 91 || ended.Status != psdomain.StatusEnded {
		t.Fatalf("ended session = %+v", ended)
	}
	again, err := repo.End(ctx, s.ID, start.Add(time.Hour))
	if err != nil || again != nil {
		t.Fatalf("second End = %v, %v; want nil, nil", again, err)
	}
	crashed, err := repo.SetStatus(ctx, s.ID, psdomain.StatusCrashed, start.Add(time.Hour))
	if err != nil || crashed == nil || *crashed.DurationSeconds != 91 || crashed.Status != psdomain.StatusCrashed {
		t.Fatalf("SetStatus = %+v, %v", crashed, err)
	}
}

func TestPostgres_EventBatchAndBlobs(t *testing.T) {
	conn, projectID := openTestDB(t)
	repo := trepo.NewPostgresRepository(conn)
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	batch := []*tdomain.Event{
		{ID: uuid.New().String(), ProjectID: projectID, EventName: "a", Timestamp: ts, Payload: jsonblob.FromString(`{"x":1}`)},
		{ID: uuid.New().String(), ProjectID: projectID, EventName: "b", Timestamp: ts},
	}
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	dup := []*tdomain.Event{
		{ID: uuid.New().String(), ProjectID: projectID, EventName: "c", Timestamp: ts},
		{ID: batch[0].ID, ProjectID: projectID, EventName: "d", Timestamp: ts},
	}
	if err := repo.CreateBatch(ctx, dup); err == nil {
		t.Fatal("batch with a duplicate id should fail")
	}
	n, err := repo.CountByProject(ctx, projectID)
	if err != nil || n != 2 {
		t.Fatalf("count after failed batch = %d, %v; want 2", n, err)
	}
	got, err := repo.GetByID(ctx, batch[0].ID)
	if err != nil || !got.Payload.Equal(batch[0].Payload) || !got.Parameters.IsAbsent() {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
	in, err := repo.ListInRange(ctx, projectID, ts, ts)
	if err != nil || len(in) != 2 {
		t.Fatalf("ListInRange = %d, %v", len(in), err)
	}
}

func TestPostgres_MetricUpserts(t *testing.T) {
	conn, projectID := openTestDB(t)
	repo := mrepo.NewPostgresRepository(conn)
	ctx := context.Background()
	stamp := time.Date(2024, 1, 1, 23, 59, 59, 999000000, time.UTC)
	row := func(sum float64) *mdomain.Aggregate {
		return &mdomain.Aggregate{ID: uuid.New().String(), ProjectID: projectID, MetricName: "daily_event_count",
			Dimension: "date", DimensionValue: "2024-01-01", Timestamp: stamp, Period: mdomain.PeriodDaily, Sum: sum, Count: 1}
	}
	for _, sum := range []float64{3, 4} {
		if err := repo.BatchUpsert(ctx, []*mdomain.Aggregate{row(sum)}); err != nil {
			t.Fatalf("BatchUpsert: %v", err)
		}
	}
	rows, err := repo.ListByName(ctx, projectID, "daily_event_count")
	if err != nil || len(rows) != 1 || rows[0].Sum != 4 {
		t.Fatalf("rows = %+v, %v", rows, err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	moved, err := repo.UpsertLatest(ctx, row(9), now)
	if err != nil || moved.ID != rows[0].ID || !moved.Timestamp.Equal(now) || moved.Sum != 9 {
		t.Fatalf("UpsertLatest = %+v, %v", moved, err)
	}
	latest, err := repo.GetLatest(ctx, projectID, "daily_event_count", "date")
	if err != nil || latest.ID != moved.ID {
		t.Fatalf("GetLatest = %+v, %v", latest, err)
	}
}
