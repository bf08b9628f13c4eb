// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// CompanyIDKey is the context key for the tenant company ID
	CompanyIDKey contextKey = "company_id"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewNop returns a logger that discards all output. Intended for tests.
func NewNop() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(12)})),
	}
}

// WithContext returns a logger with request_id, company_id and user_id
// extracted from the context when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	out := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		out = &Logger{Logger: out.With(slog.String("request_id", requestID))}
	}

	if companyID, ok := ctx.Value(CompanyIDKey).(uuid.UUID); ok && companyID != uuid.Nil {
		out = &Logger{Logger: out.With(slog.String("company_id", companyID.String()))}
	}

	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		out = &Logger{Logger: out.With(slog.String("user_id", userID))}
	}

	return out
}

// WithCompany returns a logger scoped to a tenant company.
func (l *Logger) WithCompany(companyID uuid.UUID) *Logger {
	return &Logger{Logger: l.With(slog.String("company_id", companyID.String()))}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// AutomationEvent logs an engine automation decision (score change, stage
// transition, assignment, conversion). Kept at info level so the trail of
// derived-state changes is reconstructable from logs.
func (l *Logger) AutomationEvent(event string, entityID uuid.UUID, attrs ...any) {
	args := append([]any{slog.String("event", event), slog.String("entity_id", entityID.String())}, attrs...)
	l.Info("automation_event", args...)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// BatchProgress logs periodic progress of a batch recompute job.
func (l *Logger) BatchProgress(job string, processed, updated, unchanged, failed int) {
	l.Info("batch_progress",
		slog.String("job", job),
		slog.Int("processed", processed),
		slog.Int("updated", updated),
		slog.Int("unchanged", unchanged),
		slog.Int("failed", failed),
	)
}
