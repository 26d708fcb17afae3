package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/authwatch/internal/config"
	"github.com/BradenHooton/authwatch/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0"},
		Audit:  config.AuditConfig{LogPath: "logs/auth.log", MirrorQueueSize: 10},
		Alert:  config.AlertConfig{Transport: config.AlertTransportLog},
		// Enabled with nothing listening: reaching the connect step would fail differently
		Database: config.DatabaseConfig{Enabled: true, Host: "127.0.0.1", Port: 1},
	}
}

func TestRun_FailsBeforeOpeningResources(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		mutate   func(cfg *config.Config)
		expected string
	}{
		{"invalid trusted proxy", func(cfg *config.Config) { cfg.Server.TrustedProxies = []string{"not-a-cidr"} }, "invalid trusted proxies"},
		{"unknown transport", func(cfg *config.Config) { cfg.Alert.Transport = "pigeon" }, "failed to initialize alert notifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := run(cfg, logger)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
			assert.NotContains(t, err.Error(), "database")
		})
	}
}

func TestNewAlertNotifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	notifier, err := newAlertNotifier(config.AlertConfig{Transport: config.AlertTransportLog}, logger)
	require.NoError(t, err)
	assert.IsType(t, &services.LogAlertNotifier{}, notifier)

	notifier, err = newAlertNotifier(config.AlertConfig{
		Transport:   config.AlertTransportSMTP,
		SMTPHost:    "smtp.example.com",
		SMTPPort:    "587",
		FromAddress: "security@example.com",
		ToAddresses: []string{"admin@example.com"},
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &services.SMTPAlertNotifier{}, notifier)

	_, err = newAlertNotifier(config.AlertConfig{Transport: "pigeon"}, logger)
	assert.Error(t, err)
}
