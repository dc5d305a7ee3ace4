package rollup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingCalc struct {
	mu    sync.Mutex
	calls []Day
	fail  map[string]bool
}

func (c *recordingCalc) CalculateDaily(ctx context.Context, projectID string, date time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Day{ProjectID: projectID, Date: date})
	if c.fail[projectID] {
		return 0, errors.New("db down")
	}
	return 1, nil
}

func TestScheduler_CoalescesDays(t *testing.T) {
	calc := &recordingCalc{}
	s := NewScheduler(calc)
	s.Mark("P", newYear.Add(time.Hour))
	s.Mark("P", newYear.Add(20*time.Hour))
	s.Mark("P", newYear.AddDate(0, 0, 1))
	s.Mark("Q", newYear.Add(time.Hour))
	if s.Pending() != 3 {
		t.Fatalf("pending = %d, want 3", s.Pending())
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(calc.calls) != 3 || s.Pending() != 0 {
		t.Fatalf("calls = %d pending = %d", len(calc.calls), s.Pending())
	}
}

func TestScheduler_FailedDaysStayMarked(t *testing.T) {
	calc := &recordingCalc{fail: map[string]bool{"Q": true}}
	s := NewScheduler(calc)
	s.Mark("P", newYear)
	s.Mark("Q", newYear)
	if err := s.Flush(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", s.Pending())
	}
}

func TestScheduler_RunFlushesOnStop(t *testing.T) {
	calc := &recordingCalc{}
	s := NewScheduler(calc)
	s.Mark("P", newYear)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if s.Pending() != 0 || len(calc.calls) != 1 {
		t.Fatalf("pending = %d calls = %d", s.Pending(), len(calc.calls))
	}
}
