package http

import (
	"context"
	"log/slog"
)

// defaultLogger lets handlers be built without a logger in tests.
func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger scopes a log line to one gateway endpoint. It prefers the
// request logger installed by RequestLogger so the request_id travels with
// auth and meeting handler output, and falls back to the handler's own logger
// for calls made outside the router.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
