package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type fileDuration time.Duration

// UnmarshalYAML accepts either a Go duration string ("10m") or an integer number of seconds
func (d *fileDuration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration type")
	}
	if value.Tag == "!!int" {
		var seconds int64
		if err := value.Decode(&seconds); err != nil {
			return err
		}
		*d = fileDuration(time.Duration(seconds) * time.Second)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = fileDuration(parsed)
	return nil
}

// ConfigFile is the YAML representation of Config. Unset keys leave defaults untouched.
type ConfigFile struct {
	Server   *ServerConfigFile   `yaml:"server"`
	Database *DatabaseConfigFile `yaml:"database"`
	Tracker  *TrackerConfigFile  `yaml:"tracker"`
	Audit    *AuditConfigFile    `yaml:"audit"`
	Alert    *AlertConfigFile    `yaml:"alert"`
}

type ServerConfigFile struct {
	Port               *string       `yaml:"port"`
	Env                *string       `yaml:"env"`
	LogLevel           *string       `yaml:"log_level"`
	ReadTimeout        *fileDuration `yaml:"read_timeout"`
	WriteTimeout       *fileDuration `yaml:"write_timeout"`
	IdleTimeout        *fileDuration `yaml:"idle_timeout"`
	TrustedProxies     []string      `yaml:"trusted_proxies"`
	RateLimitPerMinute *int          `yaml:"rate_limit_per_minute"`
}

type DatabaseConfigFile struct {
	Enabled *bool   `yaml:"enabled"`
	Host    *string `yaml:"host"`
	Port    *int    `yaml:"port"`
	User    *string `yaml:"user"`
	Name    *string `yaml:"name"`
	SSLMode *string `yaml:"sslmode"`
}

type TrackerConfigFile struct {
	AlertThreshold   *int          `yaml:"alert_threshold"`
	RetentionWindow  *fileDuration `yaml:"retention_window"`
	SweepInterval    *fileDuration `yaml:"sweep_interval"`
	AlertQueueSize   *int          `yaml:"alert_queue_size"`
	AlertSendTimeout *fileDuration `yaml:"alert_send_timeout"`
}

type AuditConfigFile struct {
	LogPath            *string       `yaml:"log_path"`
	MirrorQueueSize    *int          `yaml:"mirror_queue_size"`
	MirrorWriteTimeout *fileDuration `yaml:"mirror_write_timeout"`
}

type AlertConfigFile struct {
	Transport   *string  `yaml:"transport"`
	FromAddress *string  `yaml:"from"`
	ToAddresses []string `yaml:"to"`
	AWSRegion   *string  `yaml:"aws_region"`
	SMTPHost    *string  `yaml:"smtp_host"`
	SMTPPort    *string  `yaml:"smtp_port"`
}

// LoadFile reads and parses a YAML config file. Secrets (passwords, JWT secret) are
// only read from the environment.
func LoadFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &file, nil
}

func (f *ConfigFile) apply(cfg *Config) {
	if s := f.Server; s != nil {
		setString(&cfg.Server.Port, s.Port)
		setString(&cfg.Server.Env, s.Env)
		setString(&cfg.Server.LogLevel, s.LogLevel)
		setDuration(&cfg.Server.ReadTimeout, s.ReadTimeout)
		setDuration(&cfg.Server.WriteTimeout, s.WriteTimeout)
		setDuration(&cfg.Server.IdleTimeout, s.IdleTimeout)
		if len(s.TrustedProxies) > 0 {
			cfg.Server.TrustedProxies = s.TrustedProxies
		}
		setInt(&cfg.Server.RateLimitPerMinute, s.RateLimitPerMinute)
	}

	if d := f.Database; d != nil {
		if d.Enabled != nil {
			cfg.Database.Enabled = *d.Enabled
		}
		setString(&cfg.Database.Host, d.Host)
		setInt(&cfg.Database.Port, d.Port)
		setString(&cfg.Database.User, d.User)
		setString(&cfg.Database.Name, d.Name)
		setString(&cfg.Database.SSLMode, d.SSLMode)
	}

	if t := f.Tracker; t != nil {
		setInt(&cfg.Tracker.AlertThreshold, t.AlertThreshold)
		setDuration(&cfg.Tracker.RetentionWindow, t.RetentionWindow)
		setDuration(&cfg.Tracker.SweepInterval, t.SweepInterval)
		setInt(&cfg.Tracker.AlertQueueSize, t.AlertQueueSize)
		setDuration(&cfg.Tracker.AlertSendTimeout, t.AlertSendTimeout)
	}

	if a := f.Audit; a != nil {
		setString(&cfg.Audit.LogPath, a.LogPath)
		setInt(&cfg.Audit.MirrorQueueSize, a.MirrorQueueSize)
		setDuration(&cfg.Audit.MirrorWriteTimeout, a.MirrorWriteTimeout)
	}

	if a := f.Alert; a != nil {
		setString(&cfg.Alert.Transport, a.Transport)
		setString(&cfg.Alert.FromAddress, a.FromAddress)
		if len(a.ToAddresses) > 0 {
			cfg.Alert.ToAddresses = a.ToAddresses
		}
		setString(&cfg.Alert.AWSRegion, a.AWSRegion)
		setString(&cfg.Alert.SMTPHost, a.SMTPHost)
		setString(&cfg.Alert.SMTPPort, a.SMTPPort)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *fileDuration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}
