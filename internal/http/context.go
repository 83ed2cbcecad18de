package http

import (
	"context"
	"log/slog"

	"github.com/example/meeting-gateway/internal/application"
	"github.com/example/meeting-gateway/internal/logging"
)

type contextKey string

const actingUserContextKey contextKey = "acting_user"

// ContextWithActingUser returns a derived context containing the authenticated user.
func ContextWithActingUser(ctx context.Context, user application.ActingUser) context.Context {
	return context.WithValue(ctx, actingUserContextKey, user)
}

// ActingUserFromContext extracts the authenticated user from context if available.
func ActingUserFromContext(ctx context.Context) (application.ActingUser, bool) {
	user, ok := ctx.Value(actingUserContextKey).(application.ActingUser)
	return user, ok
}

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
