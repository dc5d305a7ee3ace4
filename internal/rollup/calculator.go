// Package rollup derives daily metric aggregates from stored telemetry events.
package rollup

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	mdomain "github.com/atqamz/kogase-engine/internal/metric/domain"
	tdomain "github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

const meterName = "github.com/atqamz/kogase-engine/internal/rollup"

// Metric names and the dimension written by the daily rollup.
const (
	MetricDailyActiveUsers    = "daily_active_users"
	MetricDailyActiveSessions = "daily_active_sessions"
	MetricDailyEventCount     = "daily_event_count"
	DimensionDate             = "date"
)

// EventCountMetric is the per-event-name metric, e.g. event_level_up_count.
func EventCountMetric(eventName string) string {
	return "event_" + eventName + "_count"
}

// EventSource lists a project's events in an inclusive time window.
type EventSource interface {
	ListInRange(ctx context.Context, projectID string, start, end time.Time) ([]*tdomain.Event, error)
}

// MetricWriter stores aggregates at their exact keys as one unit, however many there are.
type MetricWriter interface {
	BatchUpsertAll(ctx context.Context, as []*mdomain.Aggregate) ([]*mdomain.Aggregate, error)
}

// DayBounds returns midnight UTC of date's calendar day and the metric timestamp for that day,
// one millisecond before the next midnight.
func DayBounds(date time.Time) (start, stamp time.Time) {
	start = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// Compute builds the daily aggregates for events, which must all fall on date's UTC day.
// It returns nil for an empty day.
func Compute(projectID string, date time.Time, events []*tdomain.Event) []*mdomain.Aggregate {
	if len(events) == 0 {
		return nil
	}
	start, stamp := DayBounds(date)
	users := make(map[string]struct{})
	sessions := make(map[string]struct{})
	byName := make(map[string]int)
	for _, e := range events {
		if e.UserID != nil {
			users[*e.UserID] = struct{}{}
		}
		if e.SessionID != nil {
			sessions[*e.SessionID] = struct{}{}
		}
		byName[e.EventName]++
	}

	day := start.Format(time.DateOnly)
	point := func(name string, value, unique int) *mdomain.Aggregate {
		v := float64(value)
		return &mdomain.Aggregate{
			ProjectID:      projectID,
			MetricName:     name,
			Dimension:      DimensionDate,
			DimensionValue: day,
			Timestamp:      stamp,
			Period:         mdomain.PeriodDaily,
			Sum:            v,
			Average:        v,
			Min:            v,
			Max:            v,
			Count:          1,
			UniqueCount:    int64(unique),
		}
	}

	out := []*mdomain.Aggregate{
		point(MetricDailyActiveUsers, len(users), len(users)),
		point(MetricDailyActiveSessions, len(sessions), len(sessions)),
		point(MetricDailyEventCount, len(events), 1),
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, point(EventCountMetric(name), byName[name], 1))
	}
	return out
}

// Calculator runs the daily rollup against stored events.
type Calculator struct {
	events  EventSource
	metrics MetricWriter
	runs    metric.Int64Counter
}

func NewCalculator(events EventSource, metrics MetricWriter) *Calculator {
	runs, err := otel.Meter(meterName).Int64Counter("kogase.rollup.runs",
		metric.WithDescription("Daily rollup runs, by outcome."))
	if err != nil {
		log.Printf("rollup: runs counter: %v", err)
		runs = noop.Int64Counter{}
	}
	return &Calculator{events: events, metrics: metrics, runs: runs}
}

// CalculateDaily recomputes projectID's metrics for date's UTC day and returns how many were
// written. A day without events writes nothing. Rerunning a day overwrites the same rows.
func (c *Calculator) CalculateDaily(ctx context.Context, projectID string, date time.Time) (int, error) {
	start, _ := DayBounds(date)
	events, err := c.events.ListInRange(ctx, projectID, start, start.AddDate(0, 0, 1).Add(-time.Microsecond))
	if err != nil {
		c.record(ctx, "error")
		return 0, fmt.Errorf("rollup: list events for %s on %s: %w", projectID, start.Format(time.DateOnly), err)
	}
	aggs := Compute(projectID, start, events)
	if len(aggs) == 0 {
		c.record(ctx, "empty")
		return 0, nil
	}
	if _, err := c.metrics.BatchUpsertAll(ctx, aggs); err != nil {
		c.record(ctx, "error")
		return 0, err
	}
	c.record(ctx, "ok")
	return len(aggs), nil
}

func (c *Calculator) record(ctx context.Context, outcome string) {
	c.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
