package monitor

import (
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/domainwatch/internal/domain"
)

var t0 = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func down(t time.Time, sent bool) domain.Endpoint {
	return domain.Endpoint{Domain: "example.com", SubscriberID: "42", Status: domain.StatusDown, DowntimeStart: &t, NotificationSent: sent}
}

func TestEvaluate_TransitionIntoDownIsSilent(t *testing.T) {
	rec := domain.Endpoint{Domain: "example.com", SubscriberID: "42", Status: domain.StatusUp}
	next, note := Evaluate(rec, domain.StatusDown, t0, DefaultPolicy())
	if note != nil {
		t.Fatalf("no alert at the instant of transition, got %+v", note)
	}
	if next.Status != domain.StatusDown || next.DowntimeStart == nil || !next.DowntimeStart.Equal(t0) || next.NotificationSent {
		t.Fatalf("unexpected record: %+v", next)
	}
}

func TestEvaluate_UnknownToUpAndDown(t *testing.T) {
	rec := domain.NewEndpoint("example.com", "42", t0)

	up, note := Evaluate(rec, domain.StatusUp, t0, DefaultPolicy())
	if note != nil || up.Status != domain.StatusUp || up.DowntimeStart != nil {
		t.Fatalf("UNKNOWN->UP: %+v %+v", up, note)
	}

	dn, note := Evaluate(rec, domain.StatusDown, t0, DefaultPolicy())
	if note != nil || dn.Status != domain.StatusDown || dn.DowntimeStart == nil {
		t.Fatalf("UNKNOWN->DOWN: %+v %+v", dn, note)
	}
}

func TestEvaluate_StillDownScenario(t *testing.T) {
	p := DefaultPolicy()
	rec := down(t0, false)

	// t0+599: nothing yet, record unchanged except status
	next, note := Evaluate(rec, domain.StatusDown, t0.Add(599*time.Second), p)
	if note != nil {
		t.Fatalf("alert before threshold: %+v", note)
	}
	if !next.DowntimeStart.Equal(t0) || next.NotificationSent || next.Status != domain.StatusDown {
		t.Fatalf("record changed before threshold: %+v", next)
	}

	// t0+601: exactly one alert
	next, note = Evaluate(next, domain.StatusDown, t0.Add(601*time.Second), p)
	if note == nil || note.Kind != domain.KindStillDown {
		t.Fatalf("want still-down alert, got %+v", note)
	}
	if note.SubscriberID != "42" || note.Text != "example.com has been DOWN for more than 10 minutes" {
		t.Fatalf("unexpected alert: %+v", note)
	}
	if !next.NotificationSent || !next.DowntimeStart.Equal(t0) {
		t.Fatalf("alert should mark the episode: %+v", next)
	}

	// t0+900 UP: recovery with the elapsed duration
	next, note = Evaluate(next, domain.StatusUp, t0.Add(900*time.Second), p)
	if note == nil || note.Kind != domain.KindRecovered {
		t.Fatalf("want recovery, got %+v", note)
	}
	if note.Text != "example.com is UP again after 15 minutes" {
		t.Fatalf("unexpected recovery text: %q", note.Text)
	}
	if next.DowntimeStart != nil || next.NotificationSent || next.Status != domain.StatusUp {
		t.Fatalf("recovery should clear the episode: %+v", next)
	}
}

func TestEvaluate_AlertFiresAtExactlyThreshold(t *testing.T) {
	_, note := Evaluate(down(t0, false), domain.StatusDown, t0.Add(600*time.Second), DefaultPolicy())
	if note == nil {
		t.Fatalf("elapsed == threshold must alert")
	}
}

// Continuously DOWN from t0, probed every minute for an hour.
func TestEvaluate_MonotonicDebounce(t *testing.T) {
	p := Policy{AlertThreshold: 10 * time.Minute}
	rec, _ := Evaluate(domain.Endpoint{Domain: "example.com", Status: domain.StatusUp}, domain.StatusDown, t0, p)

	alerts := 0
	for i := 1; i <= 60; i++ {
		now := t0.Add(time.Duration(i) * time.Minute)
		var note *domain.Notification
		rec, note = Evaluate(rec, domain.StatusDown, now, p)
		if note == nil {
			continue
		}
		alerts++
		if now.Sub(t0) < p.AlertThreshold {
			t.Fatalf("alert before threshold at %v", now.Sub(t0))
		}
		if i != 10 {
			t.Fatalf("first alert should fire at minute 10, fired at %d", i)
		}
	}
	if alerts != 1 {
		t.Fatalf("want exactly one still-down alert, got %d", alerts)
	}
}

// A 30s blip emits nothing.
func TestEvaluate_BlipSuppression(t *testing.T) {
	p := DefaultPolicy()
	rec := domain.Endpoint{Domain: "example.com", Status: domain.StatusUp}

	rec, note := Evaluate(rec, domain.StatusDown, t0, p)
	if note != nil {
		t.Fatalf("alert on transition: %+v", note)
	}
	rec, note = Evaluate(rec, domain.StatusUp, t0.Add(30*time.Second), p)
	if note != nil {
		t.Fatalf("blip should not notify: %+v", note)
	}
	if rec.DowntimeStart != nil || rec.NotificationSent || rec.Status != domain.StatusUp {
		t.Fatalf("blip should leave a clean UP record: %+v", rec)
	}
}

func TestEvaluate_LongOutageWithoutAlertIsNotReported(t *testing.T) {
	// outage crossed the threshold but the alert never fired (e.g. no sweep ran
	// inside the window); recovery alone must not speak
	_, note := Evaluate(down(t0, false), domain.StatusUp, t0.Add(time.Hour), DefaultPolicy())
	if note != nil {
		t.Fatalf("recovery without a prior alert should be silent: %+v", note)
	}
}

func TestEvaluate_RecoveryFormatsElapsed(t *testing.T) {
	_, note := Evaluate(down(t0, true), domain.StatusUp, t0.Add(3661*time.Second), DefaultPolicy())
	if note == nil || !strings.HasSuffix(note.Text, "after 1 hour 1 minute 1 second") {
		t.Fatalf("unexpected recovery: %+v", note)
	}
}

// Re-evaluating the same inputs against the committed result emits nothing.
func TestEvaluate_IdempotentReplay(t *testing.T) {
	p := DefaultPolicy()
	steps := []struct {
		rec domain.Endpoint
		raw domain.Status
		now time.Time
	}{
		{domain.Endpoint{Domain: "example.com", Status: domain.StatusUp}, domain.StatusDown, t0},
		{down(t0, false), domain.StatusDown, t0.Add(11 * time.Minute)},
		{down(t0, true), domain.StatusUp, t0.Add(20 * time.Minute)},
		{domain.Endpoint{Domain: "example.com", Status: domain.StatusUp}, domain.StatusUp, t0},
	}
	for i, s := range steps {
		applied, _ := Evaluate(s.rec, s.raw, s.now, p)
		again, note := Evaluate(applied, s.raw, s.now, p)
		if note != nil {
			t.Fatalf("step %d: replay emitted %+v", i, note)
		}
		if again.Status != applied.Status || again.NotificationSent != applied.NotificationSent ||
			(again.DowntimeStart == nil) != (applied.DowntimeStart == nil) {
			t.Fatalf("step %d: replay changed record %+v -> %+v", i, applied, again)
		}
	}
}

func TestEvaluate_InvariantsHoldAcrossRandomWalk(t *testing.T) {
	p := Policy{AlertThreshold: 3 * time.Minute}
	seq := []domain.Status{
		domain.StatusDown, domain.StatusDown, domain.StatusUp, domain.StatusDown, domain.StatusDown,
		domain.StatusDown, domain.StatusDown, domain.StatusDown, domain.StatusUp, domain.StatusUp,
		domain.StatusDown, domain.StatusUp,
	}
	rec := domain.NewEndpoint("example.com", "42", t0)
	for i, raw := range seq {
		rec, _ = Evaluate(rec, raw, t0.Add(time.Duration(i)*time.Minute), p)
		if err := rec.CheckInvariants(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if rec.Status != raw {
			t.Fatalf("step %d: status %s should mirror probe %s", i, rec.Status, raw)
		}
	}
}

func TestEvaluate_StaleEpisodeOnUpRecordIsCleared(t *testing.T) {
	ts := t0
	rec := domain.Endpoint{Domain: "example.com", Status: domain.StatusUp, DowntimeStart: &ts, NotificationSent: true}
	next, note := Evaluate(rec, domain.StatusUp, t0.Add(time.Hour), DefaultPolicy())
	if note != nil || next.DowntimeStart != nil || next.NotificationSent {
		t.Fatalf("stale fields should be cleared silently: %+v %+v", next, note)
	}
}

func TestEvaluate_DownWithoutStartRestartsEpisode(t *testing.T) {
	rec := domain.Endpoint{Domain: "example.com", Status: domain.StatusDown}
	now := t0.Add(time.Hour)
	next, note := Evaluate(rec, domain.StatusDown, now, DefaultPolicy())
	if note != nil {
		t.Fatalf("no alert without a known start: %+v", note)
	}
	if next.DowntimeStart == nil || !next.DowntimeStart.Equal(now) {
		t.Fatalf("episode should restart at now: %+v", next)
	}
}

func TestEvaluate_ClockGoingBackwardsDoesNotAlert(t *testing.T) {
	_, note := Evaluate(down(t0, false), domain.StatusDown, t0.Add(-time.Hour), DefaultPolicy())
	if note != nil {
		t.Fatalf("negative elapsed must not alert: %+v", note)
	}
}

func TestEvaluate_UnknownRawTreatedAsDown(t *testing.T) {
	rec := domain.Endpoint{Domain: "example.com", Status: domain.StatusUp}
	next, _ := Evaluate(rec, domain.StatusUnknown, t0, DefaultPolicy())
	if next.Status != domain.StatusDown {
		t.Fatalf("want DOWN, got %s", next.Status)
	}
}

func TestEvaluate_CustomThresholdInText(t *testing.T) {
	p := Policy{AlertThreshold: 90 * time.Second}
	_, note := Evaluate(down(t0, false), domain.StatusDown, t0.Add(2*time.Minute), p)
	if note == nil || note.Text != "example.com has been DOWN for more than 1 minute 30 seconds" {
		t.Fatalf("unexpected alert: %+v", note)
	}
}
