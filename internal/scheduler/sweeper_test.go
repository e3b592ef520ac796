package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/monitor"
	"github.com/hamed0406/domainwatch/internal/repo/memory"
)

// --- fakes ---

type fakeProcessor struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]error
	notify  map[string]bool

	running, peak atomic.Int64
	delay         time.Duration
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{calls: map[string]int{}, results: map[string]error{}, notify: map[string]bool{}}
}

func (f *fakeProcessor) Process(ctx context.Context, name string) (*domain.Notification, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if err := f.results[name]; err != nil {
		return nil, err
	}
	if f.notify[name] {
		return &domain.Notification{Domain: name}, nil
	}
	return nil, nil
}

func (f *fakeProcessor) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func seeded(t *testing.T, names ...string) *memory.Store {
	t.Helper()
	st := memory.New()
	for _, n := range names {
		if _, _, err := st.UpsertIfAbsent(context.Background(), n, "42"); err != nil {
			t.Fatalf("seed %s: %v", n, err)
		}
	}
	return st
}

// --- tests ---

func TestSweeper_RunOnceCountsOutcomes(t *testing.T) {
	st := seeded(t, "a.example", "b.example", "c.example", "d.example")
	fp := newFakeProcessor()
	fp.notify["a.example"] = true
	fp.results["b.example"] = monitor.ErrInFlight
	fp.results["c.example"] = errors.New("store down")

	sw := NewSweeper(zap.NewNop(), st, fp, time.Minute, 2)
	got := sw.RunOnce(context.Background())

	want := SweepStats{Checked: 2, Notified: 1, Skipped: 1, Failed: 1}
	if got != want {
		t.Fatalf("stats: got %+v want %+v", got, want)
	}
	for _, n := range []string{"a.example", "b.example", "c.example", "d.example"} {
		if fp.count(n) != 1 {
			t.Fatalf("%s processed %d times", n, fp.count(n))
		}
	}
}

func TestSweeper_RespectsConcurrencyLimit(t *testing.T) {
	st := seeded(t, "a.example", "b.example", "c.example", "d.example", "e.example", "f.example")
	fp := newFakeProcessor()
	fp.delay = 20 * time.Millisecond

	sw := NewSweeper(zap.NewNop(), st, fp, time.Minute, 2)
	sw.RunOnce(context.Background())

	if p := fp.peak.Load(); p > 2 {
		t.Fatalf("peak concurrency %d exceeds limit 2", p)
	}
}

func TestSweeper_EmptyStore(t *testing.T) {
	sw := NewSweeper(zap.NewNop(), memory.New(), newFakeProcessor(), time.Minute, 4)
	if got := sw.RunOnce(context.Background()); got != (SweepStats{}) {
		t.Fatalf("expected zero stats, got %+v", got)
	}
}

func TestSweeper_RunDoesImmediatePassAndStops(t *testing.T) {
	st := seeded(t, "example.com")
	fp := newFakeProcessor()
	sw := NewSweeper(zap.NewNop(), st, fp, time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for fp.count("example.com") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("immediate pass did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestSweeper_DisabledWhenIntervalZero(t *testing.T) {
	fp := newFakeProcessor()
	sw := NewSweeper(zap.NewNop(), seeded(t, "example.com"), fp, 0, 1)
	sw.Run(context.Background()) // returns immediately
	if fp.count("example.com") != 0 {
		t.Fatalf("disabled sweeper should not probe")
	}
}
