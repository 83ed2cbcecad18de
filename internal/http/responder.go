package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/meeting-gateway/internal/application"
)

var (
	errBadRequestBody      = errors.New("invalid request body")
	errMissingSessionToken = errors.New("a session token is required")
	errSessionCheckFailed  = errors.New("could not verify session")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := strings.ToLower(http.StatusText(status))
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto status codes. Backend
// failures are reported generically; their detail was logged by the service.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		wErr *application.WindowError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   vErr.Error(),
			Errors:    vErr.FieldErrors,
		})
	case errors.As(err, &wErr):
		code := "MEETING_NOT_STARTED"
		if errors.Is(wErr, application.ErrMeetingEnded) {
			code = "MEETING_ENDED"
		}
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: code,
			Message:   wErr.Err.Error(),
			Boundary:  wErr.Boundary.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, application.ErrDisabled):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, application.ErrCreationFailed):
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{Message: application.ErrCreationFailed.Error()})
	case errors.Is(err, application.ErrStatusUnavailable):
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{Message: application.ErrStatusUnavailable.Error()})
	case errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrUnauthorized),
		errors.Is(err, application.ErrSessionExpired),
		errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_UNAUTHORIZED", Message: "authentication required"})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "resource not found"})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"error"`
	Errors    map[string]string `json:"fields,omitempty"`
	Boundary  string            `json:"boundary,omitempty"`
}
