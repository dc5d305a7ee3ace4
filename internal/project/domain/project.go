package domain

import (
	"errors"
	"time"
)

// Project owns every definition, session, event and metric. Its lifecycle is managed outside the telemetry core.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Validate returns an error describing the first validation failure.
func (p *Project) Validate() error {
	if p.ID == "" {
		return errors.New("project id is required")
	}
	if p.Name == "" {
		return errors.New("project name is required")
	}
	return nil
}
