package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the last confirmed availability of an endpoint.
type Status string

const (
	StatusUnknown Status = "UNKNOWN"
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
)

// ParseStatus maps a stored value back to a Status. Empty and unrecognised
// values become UNKNOWN so a bad row never looks like a live outage.
func ParseStatus(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusUp:
		return StatusUp
	case StatusDown:
		return StatusDown
	default:
		return StatusUnknown
	}
}

func (s Status) String() string { return string(s) }

// Endpoint is the monitoring record kept for one domain.
type Endpoint struct {
	Domain           string     `json:"domain"`
	Status           Status     `json:"status"`
	DowntimeStart    *time.Time `json:"downtime_start,omitempty"` // nil unless inside a DOWN episode
	NotificationSent bool       `json:"notification_sent"`
	SubscriberID     string     `json:"subscriber_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewEndpoint returns the record a first registration creates.
func NewEndpoint(name, subscriberID string, now time.Time) Endpoint {
	return Endpoint{
		Domain:       name,
		Status:       StatusUnknown,
		SubscriberID: subscriberID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// InDowntime reports whether the record is inside an unresolved DOWN episode.
func (e Endpoint) InDowntime() bool { return e.DowntimeStart != nil }

// CheckInvariants returns an error when the episode fields contradict each other.
func (e Endpoint) CheckInvariants() error {
	if e.NotificationSent && e.DowntimeStart == nil {
		return fmt.Errorf("%s: notification_sent without downtime_start", e.Domain)
	}
	if e.DowntimeStart != nil && e.Status != StatusDown {
		return fmt.Errorf("%s: downtime_start set while status=%s", e.Domain, e.Status)
	}
	return nil
}

// Notification is a message addressed to the subscriber owning an endpoint.
type Notification struct {
	SubscriberID string `json:"subscriber_id"`
	Domain       string `json:"domain"`
	Kind         Kind   `json:"kind"`
	Text         string `json:"text"`
}

// Kind tells alert and recovery notifications apart.
type Kind string

const (
	KindStillDown Kind = "still_down"
	KindRecovered Kind = "recovered"
)
