// Package monitor holds the endpoint state machine: given a stored record and
// a fresh UP/DOWN probe it decides the next record and whether the owning
// subscriber must be told.
package monitor

import (
	"fmt"
	"time"

	"github.com/hamed0406/domainwatch/internal/domain"
)

const (
	DefaultAlertThreshold = 600 * time.Second
	DefaultProbeTimeout   = 10 * time.Second
	DefaultSweepInterval  = 60 * time.Second
)

// Policy carries the tunables Evaluate and Service depend on.
type Policy struct {
	AlertThreshold time.Duration // how long an outage must last before anyone hears about it
	ProbeTimeout   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{AlertThreshold: DefaultAlertThreshold, ProbeTimeout: DefaultProbeTimeout}
}

func (p Policy) threshold() time.Duration {
	if p.AlertThreshold <= 0 {
		return DefaultAlertThreshold
	}
	return p.AlertThreshold
}

// Evaluate applies one probe result to rec. It is pure: the caller persists
// the returned record and only then delivers the notification, if any.
// raw must be UP or DOWN; anything else is treated as DOWN.
func Evaluate(rec domain.Endpoint, raw domain.Status, now time.Time, p Policy) (domain.Endpoint, *domain.Notification) {
	if raw != domain.StatusUp {
		raw = domain.StatusDown
	}
	threshold := p.threshold()
	next := rec
	var note *domain.Notification

	switch {
	case raw == domain.StatusDown && rec.Status != domain.StatusDown:
		next.DowntimeStart = timePtr(now)
		next.NotificationSent = false

	case raw == domain.StatusDown:
		if rec.DowntimeStart == nil {
			// DOWN row without an episode start; restart the episode rather than alert on a guess.
			next.DowntimeStart = timePtr(now)
			next.NotificationSent = false
			break
		}
		if !rec.NotificationSent && elapsed(*rec.DowntimeStart, now) >= threshold {
			next.NotificationSent = true
			note = &domain.Notification{
				SubscriberID: rec.SubscriberID,
				Domain:       rec.Domain,
				Kind:         domain.KindStillDown,
				Text:         fmt.Sprintf("%s has been DOWN for more than %s", rec.Domain, FormatDuration(seconds(threshold))),
			}
		}

	case rec.Status == domain.StatusDown:
		if rec.DowntimeStart != nil && rec.NotificationSent {
			if d := elapsed(*rec.DowntimeStart, now); d >= threshold {
				note = &domain.Notification{
					SubscriberID: rec.SubscriberID,
					Domain:       rec.Domain,
					Kind:         domain.KindRecovered,
					Text:         fmt.Sprintf("%s is UP again after %s", rec.Domain, FormatDuration(seconds(d))),
				}
			}
		}
		next.DowntimeStart = nil
		next.NotificationSent = false

	default:
		next.DowntimeStart = nil
		next.NotificationSent = false
	}

	next.Status = raw
	return next, note
}

// elapsed clamps at zero so a clock that steps backwards never fires an alert.
func elapsed(start, now time.Time) time.Duration {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

func seconds(d time.Duration) int64 { return int64(d / time.Second) }

func timePtr(t time.Time) *time.Time { return &t }
