package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/authwatch/internal/models"
)

// AlertNotifier delivers a burst alert through some external channel
type AlertNotifier interface {
	SendAlert(ctx context.Context, alert *models.AlertNotification) error
}

// AlertDispatcher hands alerts to a notifier on a single background worker.
// Enqueue never blocks; delivery outcomes are only logged.
type AlertDispatcher struct {
	notifier    AlertNotifier
	logger      *slog.Logger
	sendTimeout time.Duration

	ch        chan *models.AlertNotification
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewAlertDispatcher creates a dispatcher and starts its worker
func NewAlertDispatcher(notifier AlertNotifier, logger *slog.Logger, queueSize int, sendTimeout time.Duration) *AlertDispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	d := &AlertDispatcher{
		notifier:    notifier,
		logger:      logger,
		sendTimeout: sendTimeout,
		ch:          make(chan *models.AlertNotification, queueSize),
	}

	d.wg.Add(1)
	go d.worker()

	return d
}

// Enqueue schedules an alert for delivery
func (d *AlertDispatcher) Enqueue(alert *models.AlertNotification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return models.ErrDispatcherClosed
	}

	select {
	case d.ch <- alert:
		return nil
	default:
		return models.ErrQueueFull
	}
}

// Close stops accepting alerts and waits until every queued alert has been attempted
func (d *AlertDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()

		d.wg.Wait()
		d.logger.Info("alert dispatcher stopped")
	})
}

func (d *AlertDispatcher) worker() {
	defer d.wg.Done()

	for alert := range d.ch {
		d.deliver(alert)
	}
}

func (d *AlertDispatcher) deliver(alert *models.AlertNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("alert notifier panicked",
				slog.String("identity", alert.Identity),
				slog.String("ip_address", alert.Origin),
				slog.Any("error", fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := d.notifier.SendAlert(ctx, alert); err != nil {
		d.logger.Error("failed to send alert",
			slog.String("identity", alert.Identity),
			slog.String("ip_address", alert.Origin),
			slog.Int("failure_count", alert.Count),
			slog.Any("error", err))
	}
}
