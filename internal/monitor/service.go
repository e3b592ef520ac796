package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/notify"
	"github.com/hamed0406/domainwatch/internal/probe"
	"github.com/hamed0406/domainwatch/internal/repo"
)

// ErrInFlight is returned when the previous cycle for the same domain has
// not finished yet.
var ErrInFlight = errors.New("check already in flight")

// Service runs one probe cycle per call: probe, evaluate under the store's
// atomic update, and deliver only what was committed.
type Service struct {
	Store    repo.EndpointStore
	Prober   probe.Prober
	Notifier notify.Notifier
	Policy   Policy
	Logger   *zap.Logger
	Clock    func() time.Time

	inflight sync.Map // domain -> struct{}
}

func NewService(store repo.EndpointStore, prober probe.Prober, notifier notify.Notifier, policy Policy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.AlertThreshold <= 0 {
		policy.AlertThreshold = DefaultAlertThreshold
	}
	if policy.ProbeTimeout <= 0 {
		policy.ProbeTimeout = DefaultProbeTimeout
	}
	return &Service{
		Store:    store,
		Prober:   prober,
		Notifier: notifier,
		Policy:   policy,
		Logger:   logger,
		Clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Register validates the domain and creates its record unless one exists.
func (s *Service) Register(ctx context.Context, raw, subscriberID string) (*domain.Endpoint, bool, error) {
	name, err := domain.ValidateDomain(raw)
	if err != nil {
		return nil, false, err
	}
	ep, created, err := s.Store.UpsertIfAbsent(ctx, name, subscriberID)
	if err != nil {
		return nil, false, fmt.Errorf("register %s: %w", name, err)
	}
	if created {
		s.Logger.Info("endpoint_registered", zap.String("domain", name), zap.String("subscriber_id", subscriberID))
	}
	return ep, created, nil
}

// Process runs one cycle for name and returns the notification it delivered
// (or tried to deliver). A store failure returns an error and emits nothing.
func (s *Service) Process(ctx context.Context, name string) (*domain.Notification, error) {
	if _, busy := s.inflight.LoadOrStore(name, struct{}{}); busy {
		return nil, ErrInFlight
	}
	defer s.inflight.Delete(name)

	pctx, cancel := context.WithTimeout(ctx, s.Policy.ProbeTimeout)
	raw := s.Prober.Probe(pctx, name)
	cancel()
	// a shutdown mid-probe looks like DOWN; do not record it
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.Clock()
	var (
		prev domain.Endpoint
		note *domain.Notification
	)
	_, err := s.Store.Update(ctx, name, func(cur domain.Endpoint) (domain.Endpoint, error) {
		prev = cur
		next, n := Evaluate(cur, raw, now, s.Policy)
		next.UpdatedAt = now
		note = n
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", name, err)
	}

	if prev.Status != raw {
		s.Logger.Info("endpoint_status_changed",
			zap.String("domain", name),
			zap.String("from", prev.Status.String()),
			zap.String("to", raw.String()),
		)
	}
	if note == nil {
		return nil, nil
	}

	if err := s.Notifier.Notify(ctx, note.SubscriberID, note.Text); err != nil {
		s.Logger.Warn("notify_error",
			zap.String("domain", name),
			zap.String("subscriber_id", note.SubscriberID),
			zap.String("kind", string(note.Kind)),
			zap.Error(err),
		)
		return note, nil
	}
	s.Logger.Info("notification_sent",
		zap.String("domain", name),
		zap.String("subscriber_id", note.SubscriberID),
		zap.String("kind", string(note.Kind)),
	)
	return note, nil
}
