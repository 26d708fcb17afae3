package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Alert transports
const (
	AlertTransportLog  = "log"
	AlertTransportSES  = "ses"
	AlertTransportSMTP = "smtp"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Tracker  TrackerConfig
	Audit    AuditConfig
	Alert    AlertConfig
	Reporter ReporterConfig
}

type DatabaseConfig struct {
	Enabled           bool
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port               string
	Env                string
	LogLevel           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	TrustedProxies     []string
	RateLimitPerMinute int
}

// TrackerConfig holds the burst detection policy. The defaults are the fixed policy
// of 3 failures inside a one hour window, swept every 10 minutes.
type TrackerConfig struct {
	AlertThreshold   int
	RetentionWindow  time.Duration
	SweepInterval    time.Duration
	AlertQueueSize   int
	AlertSendTimeout time.Duration
}

type AuditConfig struct {
	LogPath string
	// Database mirror queue, written off the request path
	MirrorQueueSize    int
	MirrorWriteTimeout time.Duration
}

type AlertConfig struct {
	Transport    string
	FromAddress  string
	ToAddresses  []string
	AWSRegion    string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
}

type ReporterConfig struct {
	JWTSecret     string
	APIKeyHashes  []string
	TokenLifetime time.Duration
}

// Defaults for the tracker policy
const (
	DefaultAlertThreshold   = 3
	DefaultRetentionWindow  = 1 * time.Hour
	DefaultSweepInterval    = 10 * time.Minute
	DefaultAlertQueueSize   = 100
	DefaultAlertSendTimeout = 10 * time.Second
	DefaultAuditLogPath     = "logs/auth.log"

	DefaultAuditMirrorQueueSize    = 1000
	DefaultAuditMirrorWriteTimeout = 5 * time.Second
)

// Minimum reporter JWT secret lengths
const (
	MinJWTSecretLength           = 16
	MinProductionJWTSecretLength = 32
)

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:              "localhost",
			Port:              5432,
			User:              "postgres",
			Name:              "authwatch",
			SSLMode:           "disable",
			MaxConns:          10,
			MinConns:          2,
			MaxConnLifetime:   5 * time.Minute,
			MaxConnIdleTime:   1 * time.Minute,
			HealthCheckPeriod: 1 * time.Minute,
		},
		Server: ServerConfig{
			Port:               "8080",
			Env:                "development",
			LogLevel:           "info",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			IdleTimeout:        60 * time.Second,
			RateLimitPerMinute: 600,
		},
		Tracker: TrackerConfig{
			AlertThreshold:   DefaultAlertThreshold,
			RetentionWindow:  DefaultRetentionWindow,
			SweepInterval:    DefaultSweepInterval,
			AlertQueueSize:   DefaultAlertQueueSize,
			AlertSendTimeout: DefaultAlertSendTimeout,
		},
		Audit: AuditConfig{
			LogPath:            DefaultAuditLogPath,
			MirrorQueueSize:    DefaultAuditMirrorQueueSize,
			MirrorWriteTimeout: DefaultAuditMirrorWriteTimeout,
		},
		Alert: AlertConfig{
			Transport: AlertTransportLog,
			AWSRegion: "us-east-1",
			SMTPPort:  "587",
		},
		Reporter: ReporterConfig{
			TokenLifetime: 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// AUTHWATCH_CONFIG, and the environment (including a .env file), in that order.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("AUTHWATCH_CONFIG"); path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		file.apply(cfg)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Enabled = getEnvAsBool("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(cfg.Database.MaxConns)))
	cfg.Database.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", int(cfg.Database.MinConns)))
	cfg.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", cfg.Database.MaxConnLifetime)
	cfg.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", cfg.Database.MaxConnIdleTime)
	cfg.Database.HealthCheckPeriod = getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", cfg.Database.HealthCheckPeriod)

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Env = getEnv("ENV", cfg.Server.Env)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.TrustedProxies = getEnvAsList("TRUSTED_PROXIES", cfg.Server.TrustedProxies)
	cfg.Server.RateLimitPerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", cfg.Server.RateLimitPerMinute)

	cfg.Tracker.AlertThreshold = getEnvAsInt("ALERT_THRESHOLD", cfg.Tracker.AlertThreshold)
	cfg.Tracker.RetentionWindow = getEnvAsDuration("RETENTION_WINDOW", cfg.Tracker.RetentionWindow)
	cfg.Tracker.SweepInterval = getEnvAsDuration("SWEEP_INTERVAL", cfg.Tracker.SweepInterval)
	cfg.Tracker.AlertQueueSize = getEnvAsInt("ALERT_QUEUE_SIZE", cfg.Tracker.AlertQueueSize)
	cfg.Tracker.AlertSendTimeout = getEnvAsDuration("ALERT_SEND_TIMEOUT", cfg.Tracker.AlertSendTimeout)

	cfg.Audit.LogPath = getEnv("AUDIT_LOG_PATH", cfg.Audit.LogPath)
	cfg.Audit.MirrorQueueSize = getEnvAsInt("AUDIT_MIRROR_QUEUE_SIZE", cfg.Audit.MirrorQueueSize)
	cfg.Audit.MirrorWriteTimeout = getEnvAsDuration("AUDIT_MIRROR_WRITE_TIMEOUT", cfg.Audit.MirrorWriteTimeout)

	cfg.Alert.Transport = strings.ToLower(getEnv("ALERT_TRANSPORT", cfg.Alert.Transport))
	cfg.Alert.FromAddress = getEnv("ALERT_FROM", cfg.Alert.FromAddress)
	cfg.Alert.ToAddresses = getEnvAsList("ALERT_TO", cfg.Alert.ToAddresses)
	cfg.Alert.AWSRegion = getEnv("AWS_REGION", cfg.Alert.AWSRegion)
	cfg.Alert.SMTPHost = getEnv("SMTP_HOST", cfg.Alert.SMTPHost)
	cfg.Alert.SMTPPort = getEnv("SMTP_PORT", cfg.Alert.SMTPPort)
	cfg.Alert.SMTPUsername = getEnv("SMTP_USERNAME", cfg.Alert.SMTPUsername)
	cfg.Alert.SMTPPassword = getEnv("SMTP_PASSWORD", cfg.Alert.SMTPPassword)

	cfg.Reporter.JWTSecret = getEnv("REPORTER_JWT_SECRET", cfg.Reporter.JWTSecret)
	cfg.Reporter.APIKeyHashes = getEnvAsList("REPORTER_API_KEY_HASHES", cfg.Reporter.APIKeyHashes)
	cfg.Reporter.TokenLifetime = getEnvAsDuration("REPORTER_TOKEN_LIFETIME", cfg.Reporter.TokenLifetime)
}

// Validate checks the loaded configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Tracker.AlertThreshold < 1 {
		return fmt.Errorf("ALERT_THRESHOLD must be at least 1 (got %d)", c.Tracker.AlertThreshold)
	}
	if c.Tracker.RetentionWindow <= 0 {
		return fmt.Errorf("RETENTION_WINDOW must be positive")
	}
	if c.Tracker.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.Tracker.AlertQueueSize < 1 {
		return fmt.Errorf("ALERT_QUEUE_SIZE must be at least 1")
	}
	if c.Audit.MirrorQueueSize < 1 {
		return fmt.Errorf("AUDIT_MIRROR_QUEUE_SIZE must be positive")
	}
	if c.Audit.LogPath == "" {
		return fmt.Errorf("AUDIT_LOG_PATH is required")
	}

	switch c.Alert.Transport {
	case AlertTransportLog:
	case AlertTransportSES, AlertTransportSMTP:
		if c.Alert.FromAddress == "" {
			return fmt.Errorf("ALERT_FROM is required for %s transport", c.Alert.Transport)
		}
		if len(c.Alert.ToAddresses) == 0 {
			return fmt.Errorf("ALERT_TO is required for %s transport", c.Alert.Transport)
		}
		if c.Alert.Transport == AlertTransportSMTP && c.Alert.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required for smtp transport")
		}
	default:
		return fmt.Errorf("unknown ALERT_TRANSPORT %q", c.Alert.Transport)
	}

	if c.Database.Enabled && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when DB_ENABLED is set")
	}

	if c.Reporter.JWTSecret != "" {
		if err := validateJWTSecret(c.Reporter.JWTSecret, c.Server.Env); err != nil {
			return err
		}
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for the reporter JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := MinJWTSecretLength
	if env == "production" {
		minLength = MinProductionJWTSecretLength
	}

	if len(secret) < minLength {
		return fmt.Errorf("REPORTER_JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	return nil
}

// ReporterAuthEnabled reports whether the ingestion route requires credentials
func (c *ReporterConfig) ReporterAuthEnabled() bool {
	return c.JWTSecret != "" || len(c.APIKeyHashes) > 0
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
