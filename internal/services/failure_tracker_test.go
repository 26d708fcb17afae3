package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/authwatch/internal/audit"
	"github.com/BradenHooton/authwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackerFixture struct {
	tracker  *FailureTracker
	sink     *MockSink
	notifier *MockNotifier
	clock    *fakeClock
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		sink:     &MockSink{},
		notifier: &MockNotifier{},
		clock:    newFakeClock(),
	}
	f.tracker = newTestTracker(t, f.sink, f.notifier, f.clock)
	return f
}

func newTestTracker(t *testing.T, sink audit.Sink, notifier AlertNotifier, clock *fakeClock) *FailureTracker {
	t.Helper()
	logger := discardLogger()
	dispatcher := NewAlertDispatcher(notifier, logger, 1000, time.Second)

	// A long interval keeps the real ticker out of the way; tests sweep explicitly.
	tracker := NewFailureTracker(sink, dispatcher, FailureTrackerConfig{
		AlertThreshold:  3,
		RetentionWindow: time.Hour,
		SweepInterval:   24 * time.Hour,
		Now:             clock.Now,
	}, logger)
	t.Cleanup(tracker.Close)
	return tracker
}

func TestFailureTracker_FirstFailureCreatesRecord(t *testing.T) {
	f := newTrackerFixture(t)

	f.tracker.RecordFailure("bob", "10.0.0.5")
	f.tracker.Close()

	record, ok := f.tracker.lookup("bob", "10.0.0.5")
	require.True(t, ok)
	assert.Equal(t, 1, record.Count)
	assert.Equal(t, f.clock.Now(), record.LastSeen)
	assert.Empty(t, f.notifier.Alerts)
	assert.Equal(t, 1, f.sink.Count())
}

func TestFailureTracker_CountIsMonotonic(t *testing.T) {
	f := newTrackerFixture(t)

	for i := 1; i <= 10; i++ {
		f.clock.Advance(time.Minute)
		f.tracker.RecordFailure("alice", "10.0.0.1")

		record, ok := f.tracker.lookup("alice", "10.0.0.1")
		require.True(t, ok)
		assert.Equal(t, i, record.Count)
		assert.Equal(t, f.clock.Now(), record.LastSeen)
	}
}

func TestFailureTracker_OneRecordPerPair(t *testing.T) {
	f := newTrackerFixture(t)

	pairs := [][2]string{
		{"alice", "10.0.0.1"},
		{"alice", "10.0.0.1"},
		{"alice", "10.0.0.2"},
		{"bob", "10.0.0.1"},
		{"bob", "10.0.0.1"},
		{"a:b", "c"},
		{"a", "b:c"},
	}
	for _, p := range pairs {
		f.tracker.RecordFailure(p[0], p[1])
	}

	assert.Equal(t, 5, f.tracker.size())

	record, ok := f.tracker.lookup("a:b", "c")
	require.True(t, ok)
	assert.Equal(t, 1, record.Count)
}

func TestFailureTracker_AlertsFromThresholdOnward(t *testing.T) {
	f := newTrackerFixture(t)

	for i := 0; i < 2; i++ {
		f.tracker.RecordFailure("alice", "10.0.0.1")
	}
	f.tracker.Close()
	assert.Empty(t, f.notifier.Alerts, "no alert below the threshold")

	f = newTrackerFixture(t)
	for i := 0; i < 5; i++ {
		f.tracker.RecordFailure("alice", "10.0.0.1")
	}
	f.tracker.Close()

	assert.Equal(t, []int{3, 4, 5}, f.notifier.Counts())
	for _, alert := range f.notifier.Alerts {
		assert.Equal(t, "alice", alert.Identity)
		assert.Equal(t, "10.0.0.1", alert.Origin)
	}
}

func TestFailureTracker_IndependentKeys(t *testing.T) {
	f := newTrackerFixture(t)

	for i := 0; i < 3; i++ {
		f.tracker.RecordFailure("alice", "1.1.1.1")
	}
	f.tracker.RecordFailure("alice", "2.2.2.2")
	f.tracker.Close()

	first, _ := f.tracker.lookup("alice", "1.1.1.1")
	second, _ := f.tracker.lookup("alice", "2.2.2.2")
	assert.Equal(t, 3, first.Count)
	assert.Equal(t, 1, second.Count)

	require.Len(t, f.notifier.Alerts, 1)
	assert.Equal(t, "1.1.1.1", f.notifier.Alerts[0].Origin)
}

func TestFailureTracker_SweepRemovesStaleRecords(t *testing.T) {
	f := newTrackerFixture(t)

	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.clock.Advance(30 * time.Minute)
	f.tracker.RecordFailure("carol", "10.0.0.9")

	f.clock.Advance(31 * time.Minute)
	removed := f.tracker.sweeper.RunOnce()

	assert.Equal(t, 1, removed)
	_, ok := f.tracker.lookup("alice", "10.0.0.1")
	assert.False(t, ok, "61 minutes since last failure")
	_, ok = f.tracker.lookup("carol", "10.0.0.9")
	assert.True(t, ok, "31 minutes since last failure")

	f.tracker.RecordFailure("alice", "10.0.0.1")
	record, ok := f.tracker.lookup("alice", "10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, 1, record.Count)
}

func TestFailureTracker_SweepKeepsRecordAtExactWindow(t *testing.T) {
	f := newTrackerFixture(t)

	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.clock.Advance(time.Hour)

	assert.Zero(t, f.tracker.Sweep(f.clock.Now()))
	assert.Equal(t, 1, f.tracker.size())
}

func TestFailureTracker_StaleRecordResetsWithoutSweep(t *testing.T) {
	f := newTrackerFixture(t)

	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.clock.Advance(61 * time.Minute)

	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.tracker.Close()

	record, _ := f.tracker.lookup("alice", "10.0.0.1")
	assert.Equal(t, 1, record.Count)
	assert.Empty(t, f.notifier.Alerts)
}

func TestFailureTracker_RecentFailureExtendsWindow(t *testing.T) {
	f := newTrackerFixture(t)

	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.clock.Advance(50 * time.Minute)
	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.clock.Advance(50 * time.Minute)
	f.tracker.RecordFailure("alice", "10.0.0.1")
	f.tracker.Close()

	assert.Equal(t, []int{3}, f.notifier.Counts())
}

func TestFailureTracker_AuditLogLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "auth.log")
	notifier := &MockNotifier{}
	clock := newFakeClock()
	tracker := newTestTracker(t, audit.NewFileSink(path), notifier, clock)

	calls := [][2]string{
		{"alice", "10.0.0.1"},
		{"bob", "10.0.0.5"},
		{"alice", "10.0.0.1"},
		{"alice", "10.0.0.1"},
	}
	for _, c := range calls {
		clock.Advance(time.Second)
		tracker.RecordFailure(c[0], c[1])
	}
	tracker.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, len(calls))

	start := newFakeClock().Now()
	for i, c := range calls {
		ts := start.Add(time.Duration(i+1) * time.Second).Format(audit.TimestampLayout)
		assert.Equal(t, fmt.Sprintf("%s - Failed login attempt for user %s from IP %s", ts, c[0], c[1]), lines[i])
	}
	assert.Len(t, notifier.Alerts, 1)
}

func TestFailureTracker_SinkFailureDoesNotBlockCounting(t *testing.T) {
	sink := &MockSink{
		AppendFunc: func(ctx context.Context, event *models.FailureEvent) error {
			return models.ErrSinkUnavailable
		},
	}
	notifier := &MockNotifier{}
	tracker := newTestTracker(t, sink, notifier, newFakeClock())

	for i := 0; i < 3; i++ {
		tracker.RecordFailure("alice", "10.0.0.1")
	}
	tracker.Close()

	record, ok := tracker.lookup("alice", "10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, 3, record.Count)
	assert.Equal(t, 3, sink.Count())
	assert.Equal(t, []int{3}, notifier.Counts())
}

func TestFailureTracker_SinkPanicIsContained(t *testing.T) {
	sink := &MockSink{
		AppendFunc: func(ctx context.Context, event *models.FailureEvent) error {
			panic("sink exploded")
		},
	}
	tracker := newTestTracker(t, sink, &MockNotifier{}, newFakeClock())

	assert.NotPanics(t, func() { tracker.RecordFailure("alice", "10.0.0.1") })

	record, ok := tracker.lookup("alice", "10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, 1, record.Count)
}

func TestFailureTracker_NotifierFailureDoesNotAffectState(t *testing.T) {
	notifier := &MockNotifier{
		SendAlertFunc: func(ctx context.Context, alert *models.AlertNotification) error {
			return errors.New("smtp unreachable")
		},
	}
	tracker := newTestTracker(t, &MockSink{}, notifier, newFakeClock())

	for i := 0; i < 4; i++ {
		tracker.RecordFailure("alice", "10.0.0.1")
	}
	tracker.Close()

	record, _ := tracker.lookup("alice", "10.0.0.1")
	assert.Equal(t, 4, record.Count)
	assert.Equal(t, []int{3, 4}, notifier.Counts())
}

func TestFailureTracker_SlowNotifierDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	notifier := &MockNotifier{
		SendAlertFunc: func(ctx context.Context, alert *models.AlertNotification) error {
			<-release
			return nil
		},
	}
	tracker := newTestTracker(t, &MockSink{}, notifier, newFakeClock())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			tracker.RecordFailure("alice", "10.0.0.1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordFailure blocked on the notifier")
	}

	close(release)
	tracker.Close()
	assert.Equal(t, []int{3, 4, 5}, notifier.Counts())
}

func TestFailureTracker_HungMirrorDoesNotBlockCaller(t *testing.T) {
	primary := &MockSink{}
	mirror := &MockSink{
		AppendFunc: func(ctx context.Context, event *models.FailureEvent) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	sink := audit.NewMultiSink(primary, audit.NewAsyncSink(mirror, discardLogger(), 10, 50*time.Millisecond))
	notifier := &MockNotifier{}
	tracker := newTestTracker(t, sink, notifier, newFakeClock())

	start := time.Now()
	for i := 0; i < 3; i++ {
		tracker.RecordFailure("alice", "10.0.0.1")
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	record, ok := tracker.lookup("alice", "10.0.0.1")
	require.True(t, ok)
	assert.Equal(t, 3, record.Count)
	assert.Equal(t, 3, primary.Count())

	// Close drains the mirror queue before returning
	tracker.Close()
	assert.Equal(t, 3, mirror.Count())
	assert.Equal(t, []int{3}, notifier.Counts())
}

func TestFailureTracker_AlertsAfterCloseAreDropped(t *testing.T) {
	f := newTrackerFixture(t)
	f.tracker.Close()

	for i := 0; i < 3; i++ {
		f.tracker.RecordFailure("alice", "10.0.0.1")
	}

	record, _ := f.tracker.lookup("alice", "10.0.0.1")
	assert.Equal(t, 3, record.Count)
	assert.Empty(t, f.notifier.Alerts)
	assert.Equal(t, 3, f.sink.Count())
}

func TestFailureTracker_ConcurrentFailuresSameKey(t *testing.T) {
	f := newTrackerFixture(t)

	const workers = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.tracker.RecordFailure("alice", "10.0.0.1")
		}()
	}
	wg.Wait()
	f.tracker.Close()

	record, _ := f.tracker.lookup("alice", "10.0.0.1")
	assert.Equal(t, workers, record.Count)
	assert.Equal(t, workers, f.sink.Count())

	counts := f.notifier.Counts()
	require.Len(t, counts, workers-2)
	seen := make(map[int]bool)
	for _, c := range counts {
		assert.GreaterOrEqual(t, c, 3)
		assert.False(t, seen[c], "count %d alerted twice", c)
		seen[c] = true
	}
}

func TestFailureTracker_BobScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	notifier := &MockNotifier{}
	clock := newFakeClock()
	tracker := newTestTracker(t, audit.NewFileSink(path), notifier, clock)

	lineCount := func() int {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return strings.Count(string(data), "\n")
	}

	tracker.RecordFailure("bob", "10.0.0.5")
	record, _ := tracker.lookup("bob", "10.0.0.5")
	assert.Equal(t, 1, record.Count)
	assert.Equal(t, 1, lineCount())

	tracker.RecordFailure("bob", "10.0.0.5")
	tracker.RecordFailure("bob", "10.0.0.5")
	assert.Equal(t, 3, lineCount())

	clock.Advance(65 * time.Minute)
	assert.Equal(t, 1, tracker.sweeper.RunOnce())
	assert.Zero(t, tracker.size())

	tracker.RecordFailure("bob", "10.0.0.5")
	tracker.Close()

	record, _ = tracker.lookup("bob", "10.0.0.5")
	assert.Equal(t, 1, record.Count)
	assert.Equal(t, 4, lineCount())
	assert.Equal(t, []int{3}, notifier.Counts())
}

func TestNewFailureTracker_AppliesDefaults(t *testing.T) {
	dispatcher := NewAlertDispatcher(&MockNotifier{}, discardLogger(), 10, time.Second)
	tracker := NewFailureTracker(&MockSink{}, dispatcher, FailureTrackerConfig{}, discardLogger())
	defer tracker.Close()

	assert.Equal(t, DefaultFailureTrackerConfig().AlertThreshold, tracker.config.AlertThreshold)
	assert.Equal(t, time.Hour, tracker.config.RetentionWindow)
	assert.Equal(t, 10*time.Minute, tracker.config.SweepInterval)

	tracker.Close()
	assert.NotPanics(t, tracker.Close)
}
