package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/BradenHooton/authwatch/internal/models"
	pkglogger "github.com/BradenHooton/authwatch/pkg/logger"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPAlertNotifier emails burst alerts through an SMTP relay
type SMTPAlertNotifier struct {
	host        string
	port        string
	username    string
	password    string
	fromAddress string
	toAddresses []string
	logger      *slog.Logger
	sendMail    sendMailFunc
}

// NewSMTPAlertNotifier creates a notifier. PLAIN auth is used when a username is set.
func NewSMTPAlertNotifier(host, port, username, password, fromAddress string, toAddresses []string, logger *slog.Logger) *SMTPAlertNotifier {
	return &SMTPAlertNotifier{
		host:        strings.TrimSpace(host),
		port:        strings.TrimSpace(port),
		username:    strings.TrimSpace(username),
		password:    password,
		fromAddress: strings.TrimSpace(fromAddress),
		toAddresses: toAddresses,
		logger:      logger,
		sendMail:    smtp.SendMail,
	}
}

// SendAlert sends a plain-text alert to every configured recipient
func (n *SMTPAlertNotifier) SendAlert(ctx context.Context, alert *models.AlertNotification) error {
	if n.host == "" || len(n.toAddresses) == 0 {
		return models.ErrNotifierConfig
	}

	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	msg := buildPlainMessage(n.fromAddress, n.toAddresses, models.AlertSubject, alert.Message(), time.Now())
	addr := net.JoinHostPort(n.host, n.port)

	// net/smtp has no context support; run the send so ctx can bound the wait
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.sendMail(addr, auth, n.fromAddress, n.toAddresses, msg)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		n.logger.Error("failed to send alert email via SMTP",
			slog.String("smtp_host", n.host),
			slog.Any("recipients", pkglogger.SanitizedEmails(n.toAddresses)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("alert email sent",
		slog.String("smtp_host", n.host),
		slog.Any("recipients", pkglogger.SanitizedEmails(n.toAddresses)))
	return nil
}

func buildPlainMessage(from string, to []string, subject, body string, date time.Time) []byte {
	return []byte(strings.Join([]string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(to, ", ")),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", date.Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n"))
}
