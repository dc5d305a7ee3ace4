package rollup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// finalFlushTimeout bounds the flush Run performs after its context is cancelled.
const finalFlushTimeout = 30 * time.Second

// DailyCalculator is implemented by Calculator.
type DailyCalculator interface {
	CalculateDaily(ctx context.Context, projectID string, date time.Time) (int, error)
}

// Day is a project's UTC calendar day.
type Day struct {
	ProjectID string
	Date      time.Time
}

// Scheduler collects days touched by new events and recomputes them periodically, so a burst of
// events for one day costs a single rollup per interval.
type Scheduler struct {
	calc DailyCalculator

	mu    sync.Mutex
	dirty map[Day]struct{}
}

func NewScheduler(calc DailyCalculator) *Scheduler {
	return &Scheduler{calc: calc, dirty: make(map[Day]struct{})}
}

// Mark records that projectID received an event at ts.
func (s *Scheduler) Mark(projectID string, ts time.Time) {
	start, _ := DayBounds(ts.UTC())
	s.mu.Lock()
	s.dirty[Day{ProjectID: projectID, Date: start}] = struct{}{}
	s.mu.Unlock()
}

// Pending returns the number of days waiting for a rollup.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

// Flush recomputes every marked day. Days that fail stay marked for the next flush.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	days := s.dirty
	s.dirty = make(map[Day]struct{})
	s.mu.Unlock()

	var errs []error
	for d := range days {
		if ctx.Err() != nil {
			s.remark(d)
			continue
		}
		if _, err := s.calc.CalculateDaily(ctx, d.ProjectID, d.Date); err != nil {
			s.remark(d)
			errs = append(errs, fmt.Errorf("%s %s: %w", d.ProjectID, d.Date.Format(time.DateOnly), err))
		}
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run flushes every interval until ctx is done, then flushes once more.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				log.Printf("rollup: flush: %v", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			if err := s.Flush(final); err != nil {
				log.Printf("rollup: final flush: %v", err)
			}
			cancel()
			return
		}
	}
}

func (s *Scheduler) remark(d Day) {
	s.mu.Lock()
	s.dirty[d] = struct{}{}
	s.mu.Unlock()
}
