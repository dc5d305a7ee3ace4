package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/atqamz/kogase-engine/internal/rollup"
	"github.com/atqamz/kogase-engine/internal/telemetry/producer"
)

// scriptedReader returns its messages in order, then fails every read.
type scriptedReader struct {
	mu    sync.Mutex
	msgs  []kafka.Message
	reads int
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		return m, nil
	}
	return kafka.Message{}, errors.New("broker unavailable")
}

func (r *scriptedReader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func TestConsume_MarksDaysAndBacksOffOnErrors(t *testing.T) {
	old := readBackoff
	readBackoff = 50 * time.Millisecond
	defer func() { readBackoff = old }()

	value, err := json.Marshal(producer.Message{ProjectID: "p1", EventName: "level_up",
		Timestamp: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatal(err)
	}
	reader := &scriptedReader{msgs: []kafka.Message{{Value: value}, {Value: []byte("not json")}}}
	scheduler := rollup.NewScheduler(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		consume(ctx, reader, scheduler)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not stop after cancellation")
	}

	if scheduler.Pending() != 1 {
		t.Errorf("pending days = %d, want 1", scheduler.Pending())
	}
	// Two messages, then failed reads spaced by the backoff within the 200ms window.
	if n := reader.Reads(); n > 2+6 {
		t.Errorf("reads = %d, want the failing reads to be throttled", n)
	}
}
