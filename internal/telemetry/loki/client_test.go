package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
	"github.com/atqamz/kogase-engine/internal/telemetry/producer"
)

func TestNewClient_EmptyURL(t *testing.T) {
	c := NewClient("  ", "", nil)
	if c != nil {
		t.Fatalf("expected nil client")
	}
	if err := c.Publish(context.Background(), &domain.Event{ID: "e1"}); err != nil {
		t.Fatalf("nil client publish: %v", err)
	}
}

func TestClient_Publish(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []*domain.Event{
		{ID: "e1", ProjectID: "p1", EventName: "level_up", Category: "progress", Timestamp: ts, Payload: jsonblob.FromString(`{"level":2}`)},
		{ID: "e2", ProjectID: "p1", EventName: "level_up", Category: "progress", Timestamp: ts},
		{ID: "e3", ProjectID: "p1", EventName: "buy", Category: "shop item", Timestamp: ts},
	}
	c := NewClient(srv.URL+"/", "test", nil)
	if err := c.Publish(context.Background(), events...); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got.Streams) != 2 {
		t.Fatalf("streams = %d, want 2", len(got.Streams))
	}
	first := got.Streams[0]
	if first.Stream["job"] != "test" || first.Stream["project_id"] != "p1" || len(first.Values) != 2 {
		t.Fatalf("first stream = %+v", first)
	}
	if got.Streams[1].Stream["category"] != "shop_item" {
		t.Fatalf("category label = %q", got.Streams[1].Stream["category"])
	}
	if first.Values[0][0] != "1704110400000000000" {
		t.Fatalf("timestamp = %s", first.Values[0][0])
	}
	m, err := producer.DecodeMessage([]byte(first.Values[0][1]))
	if err != nil || m.EventID != "e1" || !m.Payload.Equal(jsonblob.FromString(`{"level": 2}`)) {
		t.Fatalf("line = %s (%v)", first.Values[0][1], err)
	}
}

func TestClient_PublishNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", srv.Client())
	if err := c.Publish(context.Background(), &domain.Event{ID: "e1", ProjectID: "p1", Timestamp: time.Now()}); err == nil {
		t.Fatal("expected error for 400")
	}
}
