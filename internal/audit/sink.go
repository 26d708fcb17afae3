// Package audit provides the append-only destinations for reported authentication failures.
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/authwatch/internal/models"
)

// TimestampLayout renders UTC timestamps with millisecond precision, e.g. 2026-10-16T08:30:00.000Z
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatLine renders the audit log line for an event, without the trailing newline
func FormatLine(event *models.FailureEvent) string {
	return fmt.Sprintf("%s - Failed login attempt for user %s from IP %s",
		event.OccurredAt.UTC().Format(TimestampLayout), event.Identity, event.Origin)
}

// Sink accepts one audit entry per failure event
type Sink interface {
	Append(ctx context.Context, event *models.FailureEvent) error
}

// Closer is implemented by sinks holding buffered events or open resources
type Closer interface {
	Close()
}

// MultiSink writes every event to all of its sinks. A failing sink does not
// prevent the others from receiving the event.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink fanning out to sinks, skipping nil entries
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Append writes the event to every sink and returns the joined errors
func (m *MultiSink) Append(ctx context.Context, event *models.FailureEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements Closer, in order
func (m *MultiSink) Close() {
	for _, s := range m.sinks {
		if c, ok := s.(Closer); ok {
			c.Close()
		}
	}
}
