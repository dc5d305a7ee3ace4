package rollup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mdomain "github.com/atqamz/kogase-engine/internal/metric/domain"
	mrepo "github.com/atqamz/kogase-engine/internal/metric/repository"
	mservice "github.com/atqamz/kogase-engine/internal/metric/service"
	"github.com/atqamz/kogase-engine/internal/platform/page"
	tdomain "github.com/atqamz/kogase-engine/internal/telemetry/domain"
	trepo "github.com/atqamz/kogase-engine/internal/telemetry/repository"
)

var newYear = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type harness struct {
	events  *trepo.MemoryRepository
	metrics *mrepo.MemoryRepository
	svc     *mservice.Service
	calc    *Calculator
}

func newHarness() *harness {
	events := trepo.NewMemoryRepository()
	metrics := mrepo.NewMemoryRepository()
	svc := mservice.NewService(metrics, nil, page.DefaultConfig(), 0)
	return &harness{events: events, metrics: metrics, svc: svc, calc: NewCalculator(events, svc)}
}

func (h *harness) log(t *testing.T, id, name string, user *string, ts time.Time) {
	t.Helper()
	e := &tdomain.Event{ID: id, ProjectID: "P", EventName: name, UserID: user, Timestamp: ts}
	if err := h.events.Create(context.Background(), e); err != nil {
		t.Fatal(err)
	}
}

func TestDayBounds(t *testing.T) {
	local := time.Date(2024, 3, 10, 23, 30, 0, 0, time.FixedZone("x", -5*3600))
	start, stamp := DayBounds(local)
	if !start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !stamp.Equal(time.Date(2024, 3, 10, 23, 59, 59, 999000000, time.UTC)) {
		t.Fatalf("stamp = %v", stamp)
	}
}

func TestCalculateDaily_Scenario(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.log(t, "e1", "level_up", strPtr("U1"), newYear.Add(1*time.Hour))
	h.log(t, "e2", "level_up", strPtr("U2"), newYear.Add(2*time.Hour))
	h.log(t, "e3", "purchase", strPtr("U1"), newYear.Add(23*time.Hour+59*time.Minute+59*time.Second+999999*time.Microsecond))
	h.log(t, "e4", "purchase", strPtr("U3"), newYear.AddDate(0, 0, 1))

	n, err := h.calc.CalculateDaily(ctx, "P", newYear.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("CalculateDaily: %v", err)
	}
	if n != 5 {
		t.Fatalf("metrics written = %d, want 5", n)
	}
	want := map[string]float64{
		MetricDailyActiveUsers:       2,
		MetricDailyActiveSessions:    0,
		MetricDailyEventCount:        3,
		EventCountMetric("level_up"): 2,
		EventCountMetric("purchase"): 1,
	}
	rows, err := h.svc.ListByDimension(ctx, "P", DimensionDate, "2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	_, stamp := DayBounds(newYear)
	for _, r := range rows {
		if r.Sum != want[r.MetricName] || r.Period != mdomain.PeriodDaily || !r.Timestamp.Equal(stamp) {
			t.Errorf("%s = %+v, want sum %v", r.MetricName, r, want[r.MetricName])
		}
	}
	dau, err := h.svc.GetLatest(ctx, "P", MetricDailyActiveUsers, DimensionDate)
	if err != nil || dau.UniqueCount != 2 || dau.Count != 1 {
		t.Fatalf("dau = %+v, %v", dau, err)
	}
}

func TestCalculateDaily_ManyEventNamesIgnoreBatchLimit(t *testing.T) {
	events := trepo.NewMemoryRepository()
	metrics := mrepo.NewMemoryRepository()
	svc := mservice.NewService(metrics, nil, page.DefaultConfig(), 2)
	h := &harness{events: events, metrics: metrics, svc: svc, calc: NewCalculator(events, svc)}
	const names = 25
	for i := 0; i < names; i++ {
		h.log(t, fmt.Sprintf("e%d", i), fmt.Sprintf("quest_%02d", i), strPtr("U1"), newYear.Add(time.Duration(i)*time.Minute))
	}
	n, err := h.calc.CalculateDaily(context.Background(), "P", newYear)
	if err != nil {
		t.Fatalf("CalculateDaily: %v", err)
	}
	if n != names+3 || metrics.Len() != names+3 {
		t.Fatalf("written = %d, stored = %d, want %d", n, metrics.Len(), names+3)
	}
}

func TestCalculateDaily_Idempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.log(t, "e1", "level_up", strPtr("U1"), newYear.Add(time.Hour))
	for i := 0; i < 2; i++ {
		if _, err := h.calc.CalculateDaily(ctx, "P", newYear); err != nil {
			t.Fatal(err)
		}
	}
	first := h.metrics.Len()
	h.log(t, "e2", "level_up", strPtr("U2"), newYear.Add(2*time.Hour))
	if _, err := h.calc.CalculateDaily(ctx, "P", newYear); err != nil {
		t.Fatal(err)
	}
	if h.metrics.Len() != first || first != 4 {
		t.Fatalf("rows after reruns = %d then %d, want 4", first, h.metrics.Len())
	}
	count, err := h.svc.GetLatest(ctx, "P", EventCountMetric("level_up"), DimensionDate)
	if err != nil || count.Sum != 2 {
		t.Fatalf("recomputed count = %+v, %v", count, err)
	}
}

func TestCalculateDaily_EmptyDayWritesNothing(t *testing.T) {
	h := newHarness()
	h.log(t, "e1", "level_up", strPtr("U1"), newYear.AddDate(0, 0, 1))
	n, err := h.calc.CalculateDaily(context.Background(), "P", newYear)
	if err != nil || n != 0 {
		t.Fatalf("CalculateDaily = %d, %v", n, err)
	}
	if h.metrics.Len() != 0 {
		t.Fatalf("empty day wrote %d rows", h.metrics.Len())
	}
}

type failingSource struct{}

func (failingSource) ListInRange(ctx context.Context, projectID string, start, end time.Time) ([]*tdomain.Event, error) {
	return nil, errors.New("timeout")
}

func TestCalculateDaily_SourceError(t *testing.T) {
	h := newHarness()
	calc := NewCalculator(failingSource{}, h.svc)
	if _, err := calc.CalculateDaily(context.Background(), "P", newYear); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompute_Sessions(t *testing.T) {
	events := []*tdomain.Event{
		{EventName: "a", SessionID: strPtr("s1")},
		{EventName: "a", SessionID: strPtr("s1")},
		{EventName: "b", SessionID: strPtr("s2")},
		{EventName: "b"},
	}
	aggs := Compute("P", newYear, events)
	if aggs[1].MetricName != MetricDailyActiveSessions || aggs[1].Sum != 2 || aggs[1].UniqueCount != 2 {
		t.Fatalf("sessions = %+v", aggs[1])
	}
	if aggs[2].UniqueCount != 1 || aggs[3].MetricName != "event_a_count" || aggs[4].MetricName != "event_b_count" {
		t.Fatalf("unexpected aggregates: %+v %+v %+v", aggs[2], aggs[3], aggs[4])
	}
	if Compute("P", newYear, nil) != nil {
		t.Fatal("empty input should compute nothing")
	}
}
