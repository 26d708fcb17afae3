package models

import (
	"time"

	"github.com/google/uuid"
)

// FailureRecord holds the live failure counter for one identity/origin pair
type FailureRecord struct {
	Identity string
	Origin   string
	Count    int
	LastSeen time.Time
}

// FailureKey identifies one identity/origin pair
type FailureKey struct {
	Identity string
	Origin   string
}

// Key returns the table key of the record
func (r *FailureRecord) Key() FailureKey {
	return FailureKey{Identity: r.Identity, Origin: r.Origin}
}

// FailureEvent is a single reported authentication failure, as written to the audit log
type FailureEvent struct {
	ID         uuid.UUID `db:"id"`
	Identity   string    `db:"identity"`
	Origin     string    `db:"origin"`
	OccurredAt time.Time `db:"occurred_at"`
}

// NewFailureEvent creates a FailureEvent stamped with the given time
func NewFailureEvent(identity, origin string, at time.Time) *FailureEvent {
	return &FailureEvent{
		ID:         uuid.New(),
		Identity:   identity,
		Origin:     origin,
		OccurredAt: at.UTC(),
	}
}
