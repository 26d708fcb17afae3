package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/authwatch/internal/models"
)

// AsyncSink forwards events to a slower sink on a single background worker.
// Append never waits on the wrapped sink; when the queue is full the event is dropped.
type AsyncSink struct {
	sink         Sink
	logger       *slog.Logger
	writeTimeout time.Duration

	ch        chan *models.FailureEvent
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewAsyncSink wraps sink and starts its worker. Call Close to drain it.
func NewAsyncSink(sink Sink, logger *slog.Logger, queueSize int, writeTimeout time.Duration) *AsyncSink {
	if queueSize < 1 {
		queueSize = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	s := &AsyncSink{
		sink:         sink,
		logger:       logger,
		writeTimeout: writeTimeout,
		ch:           make(chan *models.FailureEvent, queueSize),
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Append queues the event. ctx is not used: the write happens later under its own timeout.
func (s *AsyncSink) Append(_ context.Context, event *models.FailureEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("%w: async sink closed", models.ErrSinkUnavailable)
	}

	select {
	case s.ch <- event:
		return nil
	default:
		return fmt.Errorf("%w: audit mirror: %w", models.ErrSinkUnavailable, models.ErrQueueFull)
	}
}

// Close stops accepting events and waits until every queued event has been attempted
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		s.wg.Wait()
	})
}

func (s *AsyncSink) worker() {
	defer s.wg.Done()

	for event := range s.ch {
		s.write(event)
	}
}

func (s *AsyncSink) write(event *models.FailureEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audit mirror panicked", slog.Any("error", fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := s.sink.Append(ctx, event); err != nil {
		s.logger.Error("failed to mirror audit event",
			slog.String("identity", event.Identity),
			slog.String("ip_address", event.Origin),
			slog.Any("error", err))
	}
}
