// Package apperr defines the error kinds shared by the telemetry services.
// Services wrap a kind with context (fmt.Errorf("%w: ...", apperr.ErrNotFound)); transports map kinds with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced project, session, definition, event or metric is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a record whose unique key is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidState is returned when a state transition is not allowed (e.g. ending a non-active session).
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidPayload is returned when a payload fails schema validation or is not valid JSON.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrBatchProjectMismatch is returned when a batch member belongs to a different project than the batch.
	ErrBatchProjectMismatch = errors.New("batch project mismatch")
	// ErrInvalidArgument is returned for missing or malformed request fields.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated is returned when a request carries no valid bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when a project-scoped token addresses another project.
	ErrForbidden = errors.New("forbidden")
	// ErrTransient marks storage failures that left no partial state and may be retried by the caller.
	ErrTransient = errors.New("transient storage failure")
)

// Transient wraps a storage error as retryable. Returns nil when err is nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

// Code returns a stable, machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrBatchProjectMismatch):
		return "batch_project_mismatch"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "":
		return http.StatusOK
	case "not_found":
		return http.StatusNotFound
	case "already_exists", "invalid_state":
		return http.StatusConflict
	case "invalid_payload":
		return http.StatusUnprocessableEntity
	case "batch_project_mismatch", "invalid_argument":
		return http.StatusBadRequest
	case "unauthenticated":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "transient":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
