// Package producer publishes stored telemetry events to Kafka and defines the wire message
// the rollup worker consumes.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	"github.com/atqamz/kogase-engine/internal/telemetry/domain"
)

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Publish sends the events. Implementations may block briefly; call from a goroutine if needed.
	Publish(ctx context.Context, events ...*domain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

// Message is the JSON document written per event.
type Message struct {
	EventID   string        `json:"eventId"`
	ProjectID string        `json:"projectId"`
	UserID    *string       `json:"userId,omitempty"`
	DeviceID  *string       `json:"deviceId,omitempty"`
	SessionID *string       `json:"sessionId,omitempty"`
	EventName string        `json:"eventName"`
	Category  string        `json:"category,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   jsonblob.Blob `json:"payload"`
}

// ErrIncompleteMessage is returned by DecodeMessage when identifying fields are missing.
var ErrIncompleteMessage = errors.New("producer: message lacks project id or timestamp")

// NewMessage builds the wire form of e.
func NewMessage(e *domain.Event) Message {
	return Message{
		EventID:   e.ID,
		ProjectID: e.ProjectID,
		UserID:    e.UserID,
		DeviceID:  e.DeviceID,
		SessionID: e.SessionID,
		EventName: e.EventName,
		Category:  e.Category,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	}
}

// DecodeMessage parses a message value.
func DecodeMessage(value []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(value, &m); err != nil {
		return Message{}, err
	}
	if m.ProjectID == "" || m.Timestamp.IsZero() {
		return Message{}, ErrIncompleteMessage
	}
	return m, nil
}
