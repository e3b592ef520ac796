package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/probe"
	"github.com/hamed0406/domainwatch/internal/repo"
	"github.com/hamed0406/domainwatch/internal/repo/memory"
)

// ---- fakes ----

type scriptedProber struct {
	mu     sync.Mutex
	status domain.Status
}

func (p *scriptedProber) set(s domain.Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

func (p *scriptedProber) Probe(ctx context.Context, name string) domain.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

type sent struct{ to, text string }

type memNotifier struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (m *memNotifier) Notify(ctx context.Context, subscriberID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, sent{subscriberID, text})
	return m.err
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// failingStore wraps a real store and fails Update on demand.
type failingStore struct {
	repo.EndpointStore
	fail bool
}

func (f *failingStore) Update(ctx context.Context, name string, fn repo.UpdateFunc) (*domain.Endpoint, error) {
	if f.fail {
		return nil, errors.New("disk full")
	}
	return f.EndpointStore.Update(ctx, name, fn)
}

func newTestService(t *testing.T, store repo.EndpointStore) (*Service, *scriptedProber, *memNotifier, *fakeClock) {
	t.Helper()
	pr := &scriptedProber{status: domain.StatusUp}
	nt := &memNotifier{}
	clk := &fakeClock{now: t0}
	svc := NewService(store, pr, nt, DefaultPolicy(), zap.NewNop())
	svc.Clock = clk.Now
	return svc, pr, nt, clk
}

// ---- tests ----

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t, memory.New())

	ep, created, err := svc.Register(ctx, "  example.com ", "42")
	if err != nil || !created {
		t.Fatalf("Register: created=%v err=%v", created, err)
	}
	if ep.Domain != "example.com" || ep.Status != domain.StatusUnknown {
		t.Fatalf("unexpected record: %+v", ep)
	}

	_, created, err = svc.Register(ctx, "example.com", "43")
	if err != nil || created {
		t.Fatalf("duplicate: created=%v err=%v", created, err)
	}

	if _, _, err := svc.Register(ctx, "https://example.com/x", "42"); !errors.Is(err, domain.ErrInvalidDomain) {
		t.Fatalf("want ErrInvalidDomain, got %v", err)
	}
}

func TestService_FullEpisode(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, pr, nt, clk := newTestService(t, store)
	_, _, _ = svc.Register(ctx, "example.com", "42")

	// first probe UP
	if note, err := svc.Process(ctx, "example.com"); err != nil || note != nil {
		t.Fatalf("initial UP: %+v %v", note, err)
	}

	// goes DOWN, probed every minute
	pr.set(domain.StatusDown)
	for i := 0; i < 15; i++ {
		if _, err := svc.Process(ctx, "example.com"); err != nil {
			t.Fatalf("minute %d: %v", i, err)
		}
		clk.advance(time.Minute)
	}
	if nt.count() != 1 {
		t.Fatalf("want exactly one DOWN alert after 15 minutes, got %d", nt.count())
	}
	if nt.msgs[0].to != "42" || nt.msgs[0].text != "example.com has been DOWN for more than 10 minutes" {
		t.Fatalf("unexpected alert: %+v", nt.msgs[0])
	}
	rec, _ := store.Get(ctx, "example.com")
	if !rec.NotificationSent || rec.DowntimeStart == nil || !rec.DowntimeStart.Equal(t0) {
		t.Fatalf("stored record not marked: %+v", rec)
	}

	pr.set(domain.StatusUp)
	note, err := svc.Process(ctx, "example.com")
	if err != nil || note == nil || note.Kind != domain.KindRecovered {
		t.Fatalf("want recovery: %+v %v", note, err)
	}
	if note.Text != "example.com is UP again after 15 minutes" {
		t.Fatalf("unexpected recovery text %q", note.Text)
	}
	rec, _ = store.Get(ctx, "example.com")
	if rec.DowntimeStart != nil || rec.NotificationSent || rec.Status != domain.StatusUp {
		t.Fatalf("episode not cleared: %+v", rec)
	}
	if !rec.UpdatedAt.Equal(clk.now) {
		t.Fatalf("updated_at should follow the clock: %v", rec.UpdatedAt)
	}
}

func TestService_PersistFailureEmitsNothing(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	fs := &failingStore{EndpointStore: mem}
	svc, pr, nt, clk := newTestService(t, fs)
	_, _, _ = svc.Register(ctx, "example.com", "42")

	pr.set(domain.StatusDown)
	if _, err := svc.Process(ctx, "example.com"); err != nil {
		t.Fatalf("start episode: %v", err)
	}

	clk.advance(11 * time.Minute)
	fs.fail = true
	if _, err := svc.Process(ctx, "example.com"); err == nil {
		t.Fatalf("expected store error")
	}
	if nt.count() != 0 {
		t.Fatalf("no notification may be sent when persist fails, got %d", nt.count())
	}

	// store recovers: the alert fires once on the next cycle
	fs.fail = false
	if _, err := svc.Process(ctx, "example.com"); err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	if _, err := svc.Process(ctx, "example.com"); err != nil {
		t.Fatalf("following cycle: %v", err)
	}
	if nt.count() != 1 {
		t.Fatalf("want exactly one alert after recovery of the store, got %d", nt.count())
	}
}

func TestService_NotifyFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	svc, pr, nt, clk := newTestService(t, memory.New())
	nt.err = errors.New("telegram down")
	_, _, _ = svc.Register(ctx, "example.com", "42")

	pr.set(domain.StatusDown)
	_, _ = svc.Process(ctx, "example.com")
	clk.advance(11 * time.Minute)

	note, err := svc.Process(ctx, "example.com")
	if err != nil || note == nil {
		t.Fatalf("delivery failure should not surface as a cycle error: %+v %v", note, err)
	}
	_, _ = svc.Process(ctx, "example.com")
	if nt.count() != 1 {
		t.Fatalf("failed delivery must not be repeated, got %d attempts", nt.count())
	}
}

func TestService_UnregisteredDomain(t *testing.T) {
	svc, _, _, _ := newTestService(t, memory.New())
	if _, err := svc.Process(context.Background(), "nope.example"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestService_SkipsDomainAlreadyInFlight(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := probe.ProberFunc(func(ctx context.Context, name string) domain.Status {
		close(entered)
		<-release
		return domain.StatusUp
	})

	store := memory.New()
	_, _, _ = store.UpsertIfAbsent(ctx, "example.com", "42")
	svc := NewService(store, blocking, &memNotifier{}, Policy{ProbeTimeout: time.Minute}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Process(ctx, "example.com")
		done <- err
	}()
	<-entered

	if _, err := svc.Process(ctx, "example.com"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("want ErrInFlight, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}
}

func TestService_CancelledDuringProbeWritesNothing(t *testing.T) {
	store := memory.New()
	_, _, _ = store.UpsertIfAbsent(context.Background(), "example.com", "42")

	ctx, cancel := context.WithCancel(context.Background())
	pr := probe.ProberFunc(func(pctx context.Context, name string) domain.Status {
		cancel()
		return domain.StatusDown
	})
	svc := NewService(store, pr, &memNotifier{}, DefaultPolicy(), zap.NewNop())

	if _, err := svc.Process(ctx, "example.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	rec, _ := store.Get(context.Background(), "example.com")
	if rec.Status != domain.StatusUnknown || rec.DowntimeStart != nil {
		t.Fatalf("cancelled probe must not be recorded: %+v", rec)
	}
}

func TestService_ProbeGetsTimeout(t *testing.T) {
	store := memory.New()
	_, _, _ = store.UpsertIfAbsent(context.Background(), "example.com", "42")

	var hadDeadline bool
	pr := probe.ProberFunc(func(pctx context.Context, name string) domain.Status {
		_, hadDeadline = pctx.Deadline()
		return domain.StatusUp
	})
	svc := NewService(store, pr, &memNotifier{}, Policy{ProbeTimeout: 3 * time.Second}, zap.NewNop())
	if _, err := svc.Process(context.Background(), "example.com"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !hadDeadline {
		t.Fatalf("probe context should carry the probe timeout")
	}
}
