package otel

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/atqamz/kogase-engine/internal/telemetry"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

const loggerName = "kogase.telemetry"

// Emitter is the subset of otellog.Logger the publisher needs.
type Emitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventPublisher returns a Publisher that writes each event as an OTel log record via provider.
// If provider is nil, returns a no-op publisher.
func NewEventPublisher(provider *sdklog.LoggerProvider) telemetry.Publisher {
	if provider == nil {
		return noopPublisher{}
	}
	return NewEventPublisherWithEmitter(provider.Logger(loggerName))
}

// NewEventPublisherWithEmitter returns a Publisher over an arbitrary emitter.
func NewEventPublisherWithEmitter(em Emitter) telemetry.Publisher {
	return &logPublisher{emitter: em}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ...*domain.Event) error { return nil }

type logPublisher struct {
	emitter Emitter
}

func (p *logPublisher) Publish(ctx context.Context, events ...*domain.Event) error {
	for _, e := range events {
		if e == nil {
			continue
		}
		p.emitter.Emit(ctx, toRecord(e))
	}
	return nil
}

// toRecord maps an event to a log record: the payload is the body, identifiers are attributes.
func toRecord(e *domain.Event) otellog.Record {
	var rec otellog.Record
	rec.SetTimestamp(e.Timestamp)
	rec.SetEventName(e.EventName)
	if b := e.Payload.Bytes(); len(b) > 0 {
		rec.SetBody(otellog.BytesValue(b))
	}
	rec.AddAttributes(
		otellog.String("event_id", e.ID),
		otellog.String("project_id", e.ProjectID),
		otellog.String("event_name", e.EventName),
	)
	if e.Category != "" {
		rec.AddAttributes(otellog.String("category", e.Category))
	}
	for _, kv := range []struct {
		key string
		val *string
	}{{"user_id", e.UserID}, {"device_id", e.DeviceID}, {"session_id", e.SessionID}} {
		if kv.val != nil && *kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, *kv.val))
		}
	}
	return rec
}
