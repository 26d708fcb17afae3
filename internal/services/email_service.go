package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/authwatch/internal/models"
	pkglogger "github.com/BradenHooton/authwatch/pkg/logger"
)

// SESClient is the subset of the SES API used to send alerts
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlertNotifier emails burst alerts using AWS SES
type SESAlertNotifier struct {
	sesClient   SESClient
	fromAddress string
	toAddresses []string
	logger      *slog.Logger
}

// NewSESAlertNotifier creates a notifier using the default AWS credential chain
func NewSESAlertNotifier(ctx context.Context, region, fromAddress string, toAddresses []string, logger *slog.Logger) (*SESAlertNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESAlertNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, toAddresses, logger), nil
}

// NewSESAlertNotifierWithClient creates a notifier around an existing SES client
func NewSESAlertNotifierWithClient(client SESClient, fromAddress string, toAddresses []string, logger *slog.Logger) *SESAlertNotifier {
	return &SESAlertNotifier{
		sesClient:   client,
		fromAddress: fromAddress,
		toAddresses: toAddresses,
		logger:      logger,
	}
}

// SendAlert emails the alert to every configured recipient in one message
func (s *SESAlertNotifier) SendAlert(ctx context.Context, alert *models.AlertNotification) error {
	if len(s.toAddresses) == 0 {
		return models.ErrNotifierConfig
	}

	textBody := alert.Message()

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h2>%s</h2>
    <p style="background-color: #fff3cd; padding: 10px; border-left: 4px solid #ffc107;">%s</p>
    <table>
        <tr><td><strong>User</strong></td><td>%s</td></tr>
        <tr><td><strong>IP address</strong></td><td>%s</td></tr>
        <tr><td><strong>Failed attempts</strong></td><td>%d</td></tr>
        <tr><td><strong>Detected at</strong></td><td>%s</td></tr>
    </table>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`,
		html.EscapeString(models.AlertSubject),
		html.EscapeString(textBody),
		html.EscapeString(alert.Identity),
		html.EscapeString(alert.Origin),
		alert.Count,
		alert.DetectedAt.UTC().Format("2006-01-02 15:04:05 MST"),
	)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: s.toAddresses,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(models.AlertSubject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send alert email via SES",
			slog.Any("recipients", pkglogger.SanitizedEmails(s.toAddresses)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("alert email sent",
		slog.Any("recipients", pkglogger.SanitizedEmails(s.toAddresses)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
