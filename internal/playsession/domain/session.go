package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
)

// Status is the lifecycle state of a play session.
type Status string

const (
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
	StatusTimedOut Status = "timed_out"
	StatusCrashed  Status = "crashed"
)

// ErrUnknownStatus is returned by ParseStatus for unrecognized input.
var ErrUnknownStatus = errors.New("unknown session status")

// ParseStatus accepts the canonical snake_case names and their PascalCase forms ("TimedOut").
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "active":
		return StatusActive, nil
	case "ended":
		return StatusEnded, nil
	case "timedout":
		return StatusTimedOut, nil
	case "crashed":
		return StatusCrashed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusTimedOut || s == StatusCrashed
}

// Session is a single play session. EndTime and DurationSeconds are both set or both nil.
type Session struct {
	ID              string
	ProjectID       string
	UserID          *string // nil if anonymous
	DeviceID        *string
	GameVersion     string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds *int
	Platform        string
	Country         string
	DeviceModel     string
	OSVersion       string
	Properties      jsonblob.Blob
	Status          Status
}

// DurationSeconds is end-start rounded to the nearest whole second.
func DurationSeconds(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Seconds()))
}

// Close records the end of the session at the given instant unless an end is already recorded.
// It does not touch Status.
func (s *Session) Close(at time.Time) {
	if s.EndTime != nil {
		return
	}
	end := at
	d := DurationSeconds(s.StartTime, end)
	s.EndTime = &end
	s.DurationSeconds = &d
}

// Validate returns an error describing the first validation failure.
func (s *Session) Validate() error {
	if s.ProjectID == "" {
		return errors.New("project id is required")
	}
	if s.Properties.IsInvalid() {
		return errors.New("session properties are not valid JSON")
	}
	if (s.EndTime == nil) != (s.DurationSeconds == nil) {
		return errors.New("end time and duration must be set together")
	}
	return nil
}
