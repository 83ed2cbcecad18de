package application

import (
	"errors"
	"fmt"
	"time"
)

// Request validation failures. The messages are shown to end users as-is.
var (
	ErrMissingFields   = errors.New("missing fields")
	ErrInvalidDateTime = errors.New("invalid date or time")
	ErrPastDate        = errors.New("start date is in the past")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidMode     = errors.New("invalid mode")
	// ErrInvalidDescriptor is returned when an encoded meeting descriptor cannot be read.
	ErrInvalidDescriptor = errors.New("invalid meeting descriptor")
)

// Join window outcomes. They reach callers wrapped in a *WindowError.
var (
	ErrMeetingNotStarted = errors.New("meeting has not started")
	ErrMeetingEnded      = errors.New("meeting has ended")
)

var (
	// ErrCreationFailed hides backend create failures from callers; the cause is logged.
	ErrCreationFailed = errors.New("could not create meeting")
	// ErrStatusUnavailable is returned when the backend could not be reached for a status poll.
	ErrStatusUnavailable = errors.New("meeting status unavailable")
	// ErrDisabled is returned by every meeting operation while conferencing is switched off.
	ErrDisabled = errors.New("conferencing is disabled")
)

var (
	// ErrUnauthorized is returned when the acting user lacks a valid session.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique record is created twice.
	ErrAlreadyExists      = errors.New("application: already exists")
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	ErrSessionExpired     = errors.New("application: session expired")
	ErrSessionRevoked     = errors.New("application: session revoked")
)

// ValidationError captures request problems detected before any backend call.
// Reason carries the sentinel describing the failure class.
type ValidationError struct {
	Reason      error
	FieldErrors map[string]string
}

func newValidationError(reason error, field, message string) *ValidationError {
	v := &ValidationError{Reason: reason}
	if field != "" {
		v.add(field, message)
	}
	return v
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Reason != nil {
		return v.Reason.Error()
	}
	return "validation failed"
}

// Unwrap exposes Reason to errors.Is.
func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.Reason
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// WindowError reports a join attempt outside the meeting's schedule window.
// Boundary is the start instant for ErrMeetingNotStarted and the end instant
// for ErrMeetingEnded.
type WindowError struct {
	Err      error
	Boundary time.Time
}

// Error implements the error interface.
func (e *WindowError) Error() string {
	if e == nil {
		return ""
	}
	verb := "starts"
	if errors.Is(e.Err, ErrMeetingEnded) {
		verb = "ended"
	}
	return fmt.Sprintf("%v: %s at %s", e.Err, verb, e.Boundary.UTC().Format(time.RFC3339))
}

// Unwrap exposes the window sentinel to errors.Is.
func (e *WindowError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
