package domain

import (
	"errors"
	"sort"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
		err  bool
	}{
		{"daily", PeriodDaily, false},
		{"Daily", PeriodDaily, false},
		{" HOURLY ", PeriodHourly, false},
		{"Total", PeriodTotal, false},
		{"fortnightly", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if tt.err {
			if !errors.Is(err, ErrUnknownPeriod) {
				t.Errorf("ParsePeriod(%q) err = %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestKey_Less(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	keys := []Key{
		{ProjectID: "p2", MetricName: "a"},
		{ProjectID: "p1", MetricName: "b"},
		{ProjectID: "p1", MetricName: "a", Timestamp: t0.Add(time.Hour)},
		{ProjectID: "p1", MetricName: "a", Timestamp: t0},
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	if keys[0].Timestamp != t0 || keys[1].Timestamp != t0.Add(time.Hour) || keys[2].MetricName != "b" || keys[3].ProjectID != "p2" {
		t.Fatalf("unexpected order: %+v", keys)
	}
	if keys[0].Less(keys[0]) {
		t.Fatal("a key must not be less than itself")
	}
}

func TestAggregate_Validate(t *testing.T) {
	ok := &Aggregate{ProjectID: "p1", MetricName: "dau", Period: PeriodDaily}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for name, a := range map[string]*Aggregate{
		"no project": {MetricName: "dau", Period: PeriodDaily},
		"no name":    {ProjectID: "p1", Period: PeriodDaily},
		"bad period": {ProjectID: "p1", MetricName: "dau", Period: "sometimes"},
	} {
		if a.Validate() == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
