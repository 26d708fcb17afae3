package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/authwatch/internal/audit"
	"github.com/BradenHooton/authwatch/internal/background"
	"github.com/BradenHooton/authwatch/internal/models"
	pkglogger "github.com/BradenHooton/authwatch/pkg/logger"
)

const auditWriteTimeout = 5 * time.Second

// AlertQueue accepts alerts without waiting for their delivery
type AlertQueue interface {
	Enqueue(alert *models.AlertNotification) error
	Close()
}

// FailureTrackerConfig holds the burst detection policy
type FailureTrackerConfig struct {
	AlertThreshold  int
	RetentionWindow time.Duration
	SweepInterval   time.Duration
	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// DefaultFailureTrackerConfig returns the fixed policy: 3 failures, 1 hour retention, 10 minute sweep
func DefaultFailureTrackerConfig() FailureTrackerConfig {
	return FailureTrackerConfig{
		AlertThreshold:  3,
		RetentionWindow: time.Hour,
		SweepInterval:   10 * time.Minute,
	}
}

// FailureTracker counts authentication failures per identity/origin pair and raises an
// alert for every failure once a pair reaches the threshold within the retention window.
//
// Alerts are not deduplicated: the 3rd, 4th, 5th... failure of a burst each produce one.
type FailureTracker struct {
	mu      sync.Mutex
	records map[models.FailureKey]*models.FailureRecord

	sink        audit.Sink
	alerts      AlertQueue
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	config      FailureTrackerConfig
	now         func() time.Time

	sweeper   *background.SweepManager
	closeOnce sync.Once
}

// NewFailureTracker creates a tracker and starts its background sweep. Call Close to stop it.
func NewFailureTracker(sink audit.Sink, alerts AlertQueue, config FailureTrackerConfig, logger *slog.Logger) *FailureTracker {
	defaults := DefaultFailureTrackerConfig()
	if config.AlertThreshold < 1 {
		config.AlertThreshold = defaults.AlertThreshold
	}
	if config.RetentionWindow <= 0 {
		config.RetentionWindow = defaults.RetentionWindow
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	t := &FailureTracker{
		records:     make(map[models.FailureKey]*models.FailureRecord),
		sink:        sink,
		alerts:      alerts,
		auditLogger: pkglogger.NewAuditLogger(logger),
		logger:      logger,
		config:      config,
		now:         now,
	}

	t.sweeper = background.NewSweepManager(t, logger, config.SweepInterval, now)
	go t.sweeper.Start(context.Background())

	logger.Info("failure tracker started",
		slog.Int("alert_threshold", config.AlertThreshold),
		slog.Duration("retention_window", config.RetentionWindow),
		slog.Duration("sweep_interval", config.SweepInterval))

	return t
}

// RecordFailure registers one failed login for identity from origin. It always returns
// normally: audit and alert failures are logged and never reach the caller.
func (t *FailureTracker) RecordFailure(identity, origin string) {
	now := t.now()

	t.appendAudit(models.NewFailureEvent(identity, origin, now))

	count := t.increment(identity, origin, now)
	t.auditLogger.LogFailedLogin(identity, origin, count, now)

	if count < t.config.AlertThreshold {
		return
	}

	t.auditLogger.LogBurstDetected(identity, origin, count, t.config.AlertThreshold)

	alert := &models.AlertNotification{
		Identity:   identity,
		Origin:     origin,
		Count:      count,
		DetectedAt: now,
	}
	if err := t.alerts.Enqueue(alert); err != nil {
		t.logger.Warn("alert dropped",
			slog.String("identity", identity),
			slog.String("ip_address", origin),
			slog.Int("failure_count", count),
			slog.Any("error", err))
	}
}

// increment bumps the pair's counter and returns the new count. A record past the
// retention window counts as absent even if the sweep has not removed it yet.
func (t *FailureTracker) increment(identity, origin string, now time.Time) int {
	key := models.FailureKey{Identity: identity, Origin: origin}

	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[key]
	if !ok || t.isStale(record, now) {
		record = &models.FailureRecord{
			Identity: identity,
			Origin:   origin,
			LastSeen: now,
		}
		t.records[key] = record
	}

	record.Count++
	if now.After(record.LastSeen) {
		record.LastSeen = now
	}

	return record.Count
}

// Sweep removes every record whose last failure is older than the retention window
func (t *FailureTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for _, record := range t.records {
		if t.isStale(record, now) {
			delete(t.records, record.Key())
			removed++
		}
	}
	return removed
}

// Close stops the sweep, then drains buffered audit events and pending alerts.
// Safe to call more than once.
func (t *FailureTracker) Close() {
	t.closeOnce.Do(func() {
		t.sweeper.Stop()
		<-t.sweeper.Done()
		if c, ok := t.sink.(audit.Closer); ok {
			c.Close()
		}
		t.alerts.Close()
		t.logger.Info("failure tracker stopped")
	})
}

func (t *FailureTracker) isStale(record *models.FailureRecord, now time.Time) bool {
	return now.Sub(record.LastSeen) > t.config.RetentionWindow
}

func (t *FailureTracker) appendAudit(event *models.FailureEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("audit sink panicked", slog.Any("error", fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := t.sink.Append(ctx, event); err != nil {
		t.logger.Error("failed to write audit log",
			slog.String("identity", event.Identity),
			slog.String("ip_address", event.Origin),
			slog.Any("error", err))
	}
}
