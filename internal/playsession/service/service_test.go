package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/platform/page"
	"github.com/atqamz/kogase-engine/internal/playsession/domain"
	"github.com/atqamz/kogase-engine/internal/playsession/repository"
)

type stubProjects map[string]bool

func (p stubProjects) Exists(ctx context.Context, projectID string) (bool, error) {
	return p[projectID], nil
}

// fakeClock hands out times one step apart.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func newTestService(step time.Duration) *Service {
	svc := NewService(repository.NewMemoryRepository(), stubProjects{"p1": true}, page.DefaultConfig())
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), step: step}
	svc.now = clock.now
	return svc
}

func strPtr(s string) *string { return &s }

func TestService_StartAndEnd(t *testing.T) {
	svc := newTestService(90*time.Second + 600*time.Millisecond)
	ctx := context.Background()
	sess, err := svc.Start(ctx, StartInput{ProjectID: "p1", UserID: strPtr("u1"), Platform: "android",
		Properties: jsonblob.FromString(`{"build":"rc1"}`)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.Status != domain.StatusActive || sess.EndTime != nil || sess.DurationSeconds != nil {
		t.Fatalf("unexpected started session: %+v", sess)
	}
	ended, err := svc.End(ctx, sess.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.Status != domain.StatusEnded || ended.EndTime == nil || *ended.DurationSeconds != 91 {
		t.Fatalf("unexpected ended session: status=%s duration=%v", ended.Status, ended.DurationSeconds)
	}
}

func TestService_StartValidation(t *testing.T) {
	svc := newTestService(time.Second)
	ctx := context.Background()
	if _, err := svc.Start(ctx, StartInput{}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("missing project: %v", err)
	}
	if _, err := svc.Start(ctx, StartInput{ProjectID: "p2"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown project: %v", err)
	}
	if _, err := svc.Start(ctx, StartInput{ProjectID: "p1", Properties: jsonblob.FromString("{oops")}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("bad properties: %v", err)
	}
}

func TestService_EndTwice(t *testing.T) {
	svc := newTestService(time.Second)
	ctx := context.Background()
	sess, _ := svc.Start(ctx, StartInput{ProjectID: "p1"})
	first, err := svc.End(ctx, sess.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := svc.End(ctx, sess.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("second End: got %v, want ErrInvalidState", err)
	}
	after, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !after.EndTime.Equal(*first.EndTime) || *after.DurationSeconds != *first.DurationSeconds || after.Status != domain.StatusEnded {
		t.Fatalf("session changed after rejected End: %+v", after)
	}
	if _, err := svc.End(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("End missing: got %v, want ErrNotFound", err)
	}
}

func TestService_ConcurrentEnd(t *testing.T) {
	svc := newTestService(time.Second)
	ctx := context.Background()
	sess, _ := svc.Start(ctx, StartInput{ProjectID: "p1"})
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.End(ctx, sess.ID); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("End succeeded %d times, want 1", success)
	}
}

func TestService_UpdateStatusCrashedBeforeEnd(t *testing.T) {
	svc := newTestService(10 * time.Second)
	ctx := context.Background()
	sess, _ := svc.Start(ctx, StartInput{ProjectID: "p1"})
	crashed, err := svc.UpdateStatus(ctx, sess.ID, domain.StatusCrashed)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if crashed.Status != domain.StatusCrashed || crashed.EndTime == nil || *crashed.DurationSeconds != 10 {
		t.Fatalf("unexpected crashed session: %+v", crashed)
	}
	retagged, err := svc.UpdateStatus(ctx, sess.ID, domain.StatusTimedOut)
	if err != nil {
		t.Fatalf("terminal overwrite: %v", err)
	}
	if retagged.Status != domain.StatusTimedOut || !retagged.EndTime.Equal(*crashed.EndTime) || *retagged.DurationSeconds != 10 {
		t.Fatalf("end and duration must be recorded once: %+v", retagged)
	}
	if _, err := svc.End(ctx, sess.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("End after crash: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, sess.ID, domain.StatusActive); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, sess.ID, domain.Status("paused")); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("unknown status: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing", domain.StatusEnded); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing session: %v", err)
	}
}

func TestService_AverageDuration(t *testing.T) {
	svc := newTestService(20 * time.Second)
	ctx := context.Background()
	avg, err := svc.AverageDuration(ctx, "p1")
	if err != nil || avg != 0 {
		t.Fatalf("empty average = %v, %v; want 0", avg, err)
	}
	a, _ := svc.Start(ctx, StartInput{ProjectID: "p1"}) // t0
	b, _ := svc.Start(ctx, StartInput{ProjectID: "p1"}) // t0+20
	svc.Start(ctx, StartInput{ProjectID: "p1"})         // t0+40, stays active
	svc.End(ctx, a.ID)                                  // t0+60: 60s
	svc.End(ctx, b.ID)                                  // t0+80: 60s
	avg, err = svc.AverageDuration(ctx, "p1")
	if err != nil || avg != 60 {
		t.Fatalf("average = %v, %v; want 60", avg, err)
	}
	n, _ := svc.CountByProject(ctx, "p1")
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	active, _ := svc.ListActive(ctx, "p1")
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
}

func TestService_ListsNewestFirst(t *testing.T) {
	svc := newTestService(time.Minute)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		s, err := svc.Start(ctx, StartInput{ProjectID: "p1", DeviceID: strPtr("d1")})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		ids = append(ids, s.ID)
	}
	got, err := svc.ListByProject(ctx, "p1", page.Request{Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[4] || got[1].ID != ids[3] {
		t.Fatalf("page 1 = %v", got)
	}
	got, _ = svc.ListByDevice(ctx, "d1", page.Request{Page: 3, Size: 2})
	if len(got) != 1 || got[0].ID != ids[0] {
		t.Fatalf("page 3 = %v", got)
	}
	start := time.Date(2024, 1, 1, 12, 2, 0, 0, time.UTC)
	got, _ = svc.ListByTimeRange(ctx, "p1", start, start.Add(time.Hour), page.Request{})
	if len(got) != 3 {
		t.Fatalf("time range = %d sessions, want 3", len(got))
	}
}
