package bbb

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnreachable is returned when the request never produced an HTTP
	// response: connection failures, timeouts, cancelled contexts.
	ErrBackendUnreachable = errors.New("bbb: backend unreachable")
	// ErrBackendRejected is returned when the backend answered with a non-2xx status.
	ErrBackendRejected = errors.New("bbb: backend rejected request")
)

// BackendError reports a logical failure signalled inside a well-formed HTTP
// response, or a response body that could not be decoded.
type BackendError struct {
	Action     string
	ReturnCode string
	MessageKey string
	Message    string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	if e.MessageKey == "" && e.Message == "" {
		return fmt.Sprintf("bbb: %s returned %s", e.Action, e.ReturnCode)
	}
	return fmt.Sprintf("bbb: %s returned %s (%s): %s", e.Action, e.ReturnCode, e.MessageKey, e.Message)
}

// NotFound reports whether the backend does not know the meeting.
func (e *BackendError) NotFound() bool {
	return e != nil && e.MessageKey == "notFound"
}
