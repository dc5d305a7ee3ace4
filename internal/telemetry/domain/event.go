package domain

import (
	"errors"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
)

// Event is an append-only telemetry record. Timestamp is assigned by the server at ingestion.
type Event struct {
	ID         string
	ProjectID  string
	UserID     *string // nil if not set
	DeviceID   *string
	SessionID  *string
	EventName  string
	Category   string
	Timestamp  time.Time
	Payload    jsonblob.Blob
	Parameters jsonblob.Blob
	ClientInfo jsonblob.Blob
}

// ErrMalformedBlob is returned by CheckBlobs when a structured field does not parse.
var ErrMalformedBlob = errors.New("structured field is not valid JSON")

// Validate returns an error describing the first missing required field.
func (e *Event) Validate() error {
	if e.ProjectID == "" {
		return errors.New("project id is required")
	}
	if e.EventName == "" {
		return errors.New("event name is required")
	}
	return nil
}

// CheckBlobs reports the first of payload, parameters and client info that is present but unparseable.
func (e *Event) CheckBlobs() error {
	for _, f := range []struct {
		name string
		b    jsonblob.Blob
	}{{"payload", e.Payload}, {"parameters", e.Parameters}, {"clientInfo", e.ClientInfo}} {
		if f.b.IsInvalid() {
			return errors.Join(ErrMalformedBlob, errors.New(f.name))
		}
	}
	return nil
}
