// Package telemetry holds the fan-out side of event ingestion: stored events are handed to
// publishers (Kafka, OTel logs) on a best-effort basis after they are durably written.
package telemetry

import (
	"context"
	"errors"

	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

// Publisher forwards stored events downstream. Best-effort; callers log and ignore errors.
type Publisher interface {
	Publish(ctx context.Context, events ...*domain.Event) error
}

// Fanout publishes to every non-nil member and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, events ...*domain.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
