package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/authwatch/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockSink records appended events
type MockSink struct {
	mu         sync.Mutex
	Events     []*models.FailureEvent
	AppendFunc func(ctx context.Context, event *models.FailureEvent) error
}

func (m *MockSink) Append(ctx context.Context, event *models.FailureEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()

	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}
	return nil
}

func (m *MockSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// MockNotifier records every alert it is asked to send
type MockNotifier struct {
	mu            sync.Mutex
	Alerts        []*models.AlertNotification
	SendAlertFunc func(ctx context.Context, alert *models.AlertNotification) error
}

func (m *MockNotifier) SendAlert(ctx context.Context, alert *models.AlertNotification) error {
	m.mu.Lock()
	m.Alerts = append(m.Alerts, alert)
	m.mu.Unlock()

	if m.SendAlertFunc != nil {
		return m.SendAlertFunc(ctx, alert)
	}
	return nil
}

func (m *MockNotifier) Counts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make([]int, 0, len(m.Alerts))
	for _, a := range m.Alerts {
		counts = append(counts, a.Count)
	}
	return counts
}

// lookup returns a copy of the record for a pair
func (t *FailureTracker) lookup(identity, origin string) (models.FailureRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[models.FailureKey{Identity: identity, Origin: origin}]
	if !ok {
		return models.FailureRecord{}, false
	}
	return *record, true
}

func (t *FailureTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
