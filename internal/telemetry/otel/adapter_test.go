package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

// recordCapture stores every Record passed to Emit.
type recordCapture struct {
	recs []otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.recs = append(r.recs, rec)
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestNewEventPublisher_NilProvider(t *testing.T) {
	p := NewEventPublisher(nil)
	if err := p.Publish(context.Background(), &domain.Event{ID: "e1"}); err != nil {
		t.Fatalf("noop Publish: %v", err)
	}
}

func TestNewEventPublisher_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewEventPublisher(provider).Publish(context.Background(), nil, &domain.Event{ID: "e1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestPublish_RecordMapping(t *testing.T) {
	capture := &recordCapture{}
	session := "s1"
	ts := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	e := &domain.Event{
		ID: "e1", ProjectID: "p1", SessionID: &session, EventName: "purchase", Category: "economy",
		Timestamp: ts, Payload: jsonblob.FromString(`{"sku":"gem"}`),
	}
	if err := NewEventPublisherWithEmitter(capture).Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(capture.recs) != 1 {
		t.Fatalf("records = %d, want 1", len(capture.recs))
	}
	rec := capture.recs[0]
	if !rec.Timestamp().Equal(ts) || rec.EventName() != "purchase" {
		t.Errorf("timestamp=%v eventName=%q", rec.Timestamp(), rec.EventName())
	}
	if string(rec.Body().AsBytes()) != `{"sku":"gem"}` {
		t.Errorf("body = %q", rec.Body().AsBytes())
	}
	attrs := attributes(rec)
	want := map[string]string{"event_id": "e1", "project_id": "p1", "event_name": "purchase", "category": "economy", "session_id": "s1"}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["user_id"]; ok {
		t.Error("user_id should be omitted when unset")
	}
}

func TestPublish_AbsentPayloadHasNoBody(t *testing.T) {
	capture := &recordCapture{}
	_ = NewEventPublisherWithEmitter(capture).Publish(context.Background(), &domain.Event{ID: "e1", EventName: "ping"})
	if !capture.recs[0].Body().Empty() {
		t.Error("body should be empty without payload")
	}
}
