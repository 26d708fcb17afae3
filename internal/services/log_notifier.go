package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/authwatch/internal/models"
)

// LogAlertNotifier writes alerts to the application log. Used when no email transport is configured.
type LogAlertNotifier struct {
	logger *slog.Logger
}

func NewLogAlertNotifier(logger *slog.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{logger: logger}
}

func (n *LogAlertNotifier) SendAlert(ctx context.Context, alert *models.AlertNotification) error {
	n.logger.WarnContext(ctx, models.AlertSubject,
		slog.String("identity", alert.Identity),
		slog.String("ip_address", alert.Origin),
		slog.Int("failure_count", alert.Count),
		slog.String("message", alert.Message()))
	return nil
}
