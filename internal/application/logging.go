package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/meeting-gateway/internal/bbb"
	"github.com/example/meeting-gateway/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	switch {
	case errors.Is(err, ErrMeetingNotStarted):
		return "not_started"
	case errors.Is(err, ErrMeetingEnded):
		return "ended"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	case errors.Is(err, ErrCreationFailed):
		return "creation_failed"
	case errors.Is(err, ErrStatusUnavailable):
		return "status_unavailable"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, bbb.ErrBackendUnreachable):
		return "backend_unreachable"
	case errors.Is(err, bbb.ErrBackendRejected):
		return "backend_rejected"
	}

	var backendErr *bbb.BackendError
	if errors.As(err, &backendErr) {
		return "backend_error"
	}

	return "unexpected"
}
