package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditLogger mirrors security events into the structured application log
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogFailedLogin records a reported authentication failure and the pair's current count
func (al *AuditLogger) LogFailedLogin(identity, origin string, count int, at time.Time) {
	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit",
		slog.String("audit_type", "auth"),
		slog.String("event_type", "login_failed"),
		slog.String("identity", identity),
		slog.String("ip_address", origin),
		slog.Int("failure_count", count),
		slog.String("timestamp", at.UTC().Format(time.RFC3339)),
	)
}

// LogBurstDetected records that a pair reached the alert threshold
func (al *AuditLogger) LogBurstDetected(identity, origin string, count, threshold int) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "auth"),
		slog.String("event_type", "failure_burst"),
		slog.String("identity", identity),
		slog.String("ip_address", origin),
		slog.Int("failure_count", count),
		slog.Int("threshold", threshold),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
