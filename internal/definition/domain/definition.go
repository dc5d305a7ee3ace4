package domain

import (
	"errors"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
)

// Definition is a catalogue entry for an event name within a project. (ProjectID, EventName) is unique.
type Definition struct {
	ID          string
	ProjectID   string
	EventName   string
	Category    string
	Description string
	IsEnabled   bool
	Schema      jsonblob.Blob // JSON Schema for payload validation; absent means any payload is accepted
	CreatedAt   time.Time
	UpdatedAt   *time.Time // nil until the first explicit edit
}

// AutoDescription is the description given to definitions created on first sighting of an event name.
func AutoDescription(eventName string) string {
	return "Auto-generated definition for " + eventName
}

// Validate returns an error describing the first validation failure.
func (d *Definition) Validate() error {
	if d.ProjectID == "" {
		return errors.New("project id is required")
	}
	if d.EventName == "" {
		return errors.New("event name is required")
	}
	if d.Schema.IsInvalid() {
		return errors.New("schema is not valid JSON")
	}
	return nil
}

// HasSchema reports whether payloads for this definition are validated.
func (d *Definition) HasSchema() bool {
	return d != nil && !d.Schema.IsAbsent()
}
