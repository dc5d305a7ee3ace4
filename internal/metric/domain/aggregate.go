package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
)

// Period is the time bucket an aggregate covers.
type Period string

const (
	PeriodHourly  Period = "hourly"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodTotal   Period = "total"
)

// ErrUnknownPeriod is returned by ParsePeriod for unrecognized input.
var ErrUnknownPeriod = errors.New("unknown aggregation period")

// ParsePeriod is case-insensitive ("Daily" and "daily" are the same period).
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodTotal:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// Key identifies at most one stored aggregate. An empty Dimension or DimensionValue is a
// regular value, not a wildcard.
type Key struct {
	ProjectID      string
	MetricName     string
	Dimension      string
	DimensionValue string
	Timestamp      time.Time
	Period         Period
}

// Less orders keys so batches lock rows in a stable order.
func (k Key) Less(o Key) bool {
	switch {
	case k.ProjectID != o.ProjectID:
		return k.ProjectID < o.ProjectID
	case k.MetricName != o.MetricName:
		return k.MetricName < o.MetricName
	case k.Dimension != o.Dimension:
		return k.Dimension < o.Dimension
	case k.DimensionValue != o.DimensionValue:
		return k.DimensionValue < o.DimensionValue
	case !k.Timestamp.Equal(o.Timestamp):
		return k.Timestamp.Before(o.Timestamp)
	}
	return k.Period < o.Period
}

// Aggregate is a numeric rollup row. Upserts overwrite the value fields and AdditionalData only.
type Aggregate struct {
	ID             string
	ProjectID      string
	MetricName     string
	Dimension      string
	DimensionValue string
	Timestamp      time.Time
	Period         Period
	Sum            float64
	Average        float64
	Min            float64
	Max            float64
	Count          int64
	UniqueCount    int64
	AdditionalData jsonblob.Blob
}

func (a *Aggregate) Key() Key {
	return Key{
		ProjectID:      a.ProjectID,
		MetricName:     a.MetricName,
		Dimension:      a.Dimension,
		DimensionValue: a.DimensionValue,
		Timestamp:      a.Timestamp,
		Period:         a.Period,
	}
}

// SetValues copies the value fields of src onto a.
func (a *Aggregate) SetValues(src *Aggregate) {
	a.Sum = src.Sum
	a.Average = src.Average
	a.Min = src.Min
	a.Max = src.Max
	a.Count = src.Count
	a.UniqueCount = src.UniqueCount
	a.AdditionalData = src.AdditionalData
}

// Validate checks the key fields. A zero Timestamp is allowed; point upserts fill it in.
func (a *Aggregate) Validate() error {
	if a.ProjectID == "" {
		return errors.New("project id is required")
	}
	if a.MetricName == "" {
		return errors.New("metric name is required")
	}
	if _, err := ParsePeriod(string(a.Period)); err != nil {
		return err
	}
	if a.AdditionalData.IsInvalid() {
		return errors.New("additionalData is not valid JSON")
	}
	return nil
}
