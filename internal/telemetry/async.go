package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

// publishTimeout is the max time allowed for a single async publish. Used by PublishAsync and by ShutdownDrainDuration.
const publishTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before closing publishers,
// so in-flight async publishes have time to complete. Must be >= publishTimeout.
const ShutdownDrainDuration = publishTimeout

// PublishAsync runs Publish in a goroutine with a short timeout so the caller is not blocked.
// Use from request paths for fire-and-forget fan-out; errors are logged.
//
// publisher may be nil and events may be empty; PublishAsync then returns without starting a goroutine.
// The goroutine uses context.Background() with publishTimeout so request cancellation does not abort it.
func PublishAsync(publisher Publisher, events ...*domain.Event) {
	if publisher == nil || len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := publisher.Publish(ctx, events...); err != nil {
			log.Printf("telemetry: async publish of %d event(s) failed: %v", len(events), err)
		}
	}()
}
