package models

import (
	"fmt"
	"time"
)

// AlertSubject is the subject line used for every burst alert
const AlertSubject = "Security Alert: Multiple Failed Login Attempts"

// AlertNotification describes a detected burst of failures for one identity/origin pair
type AlertNotification struct {
	Identity   string
	Origin     string
	Count      int
	DetectedAt time.Time
}

// Message renders the human-readable warning carried by every notifier
func (a *AlertNotification) Message() string {
	return fmt.Sprintf("Warning: There have been %d failed login attempts for user \"%s\" from IP address %s.",
		a.Count, a.Identity, a.Origin)
}
