package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger writes audit entries through the structured logger.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new audit logger
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// LogAction records one audited action
func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.Time("timestamp", time.Now()),
	)
}

// LogDecision records a librarian decision on a borrow request
func (al *Logger) LogDecision(ctx context.Context, userID, requestID, outcome string) {
	al.LogAction(ctx, userID, "decide", "borrow_request", requestID, outcome, "")
}

// LogDenied records a refused capability check
func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
