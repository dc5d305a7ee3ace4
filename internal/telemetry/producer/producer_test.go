package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

func TestMessageRoundTrip(t *testing.T) {
	user := "u1"
	ts := time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC)
	e := &domain.Event{
		ID: "e1", ProjectID: "p1", UserID: &user, EventName: "level_up", Category: "progress",
		Timestamp: ts, Payload: jsonblob.FromString(`{"level":4}`),
	}
	value, err := json.Marshal(NewMessage(e))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	m, err := DecodeMessage(value)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if m.ProjectID != "p1" || !m.Timestamp.Equal(ts) || m.UserID == nil || *m.UserID != "u1" || m.SessionID != nil {
		t.Fatalf("unexpected message: %+v", m)
	}
	if !m.Payload.Equal(e.Payload) {
		t.Fatalf("payload = %s", m.Payload.Raw())
	}
}

func TestDecodeMessage_Rejects(t *testing.T) {
	if _, err := DecodeMessage([]byte(`not json`)); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := DecodeMessage([]byte(`{"eventName":"x"}`)); !errors.Is(err, ErrIncompleteMessage) {
		t.Errorf("incomplete message err = %v", err)
	}
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Fatal("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Fatal("expected nil producer without topic")
	}
	var p *KafkaProducer
	if err := p.Publish(context.Background(), &domain.Event{}); err != nil {
		t.Fatalf("nil producer Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("nil producer Close: %v", err)
	}
}
