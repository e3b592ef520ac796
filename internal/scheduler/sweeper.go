package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/domainwatch/internal/domain"
	"github.com/hamed0406/domainwatch/internal/monitor"
	"github.com/hamed0406/domainwatch/internal/repo"
)

// Processor runs one probe cycle for a domain. *monitor.Service satisfies it.
type Processor interface {
	Process(ctx context.Context, name string) (*domain.Notification, error)
}

// SweepStats summarises a single pass over all registered endpoints.
type SweepStats struct {
	Checked  int `json:"checked"`
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type Sweeper struct {
	Logger      *zap.Logger
	Store       repo.EndpointStore
	Processor   Processor
	Interval    time.Duration
	Concurrency int
}

func NewSweeper(
	logger *zap.Logger,
	store repo.EndpointStore,
	proc Processor,
	interval time.Duration,
	concurrency int,
) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	return &Sweeper{
		Logger:      logger,
		Store:       store,
		Processor:   proc,
		Interval:    interval,
		Concurrency: concurrency,
	}
}

// Run does an immediate pass, then one pass per interval until ctx is
// cancelled. A tick that lands while the previous pass is still running is
// dropped.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval == 0 {
		s.Logger.Info("sweeper_disabled")
		return
	}

	s.RunOnce(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.Logger})))
	c.Schedule(cron.Every(s.Interval), cron.FuncJob(func() { s.RunOnce(ctx) }))
	c.Start()
	s.Logger.Info("sweeper_started", zap.Duration("interval", s.Interval), zap.Int("concurrency", s.Concurrency))

	<-ctx.Done()
	<-c.Stop().Done()
	s.Logger.Info("sweeper_stopped")
}

// RunOnce probes every registered endpoint with bounded concurrency and
// waits for all of them.
func (s *Sweeper) RunOnce(ctx context.Context) SweepStats {
	eps, err := s.Store.List(ctx)
	if err != nil {
		s.Logger.Warn("sweeper_list_error", zap.Error(err))
		return SweepStats{}
	}
	if len(eps) == 0 {
		return SweepStats{}
	}

	var checked, notified, skipped, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.Concurrency)

	for _, ep := range eps {
		if ctx.Err() != nil {
			break
		}
		name := ep.Domain
		g.Go(func() error {
			note, err := s.Processor.Process(ctx, name)
			switch {
			case errors.Is(err, monitor.ErrInFlight):
				skipped.Add(1)
				s.Logger.Debug("sweeper_skip_inflight", zap.String("domain", name))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
				s.Logger.Warn("sweeper_process_error", zap.String("domain", name), zap.Error(err))
			default:
				checked.Add(1)
				if note != nil {
					notified.Add(1)
				}
			}
			// one domain failing never aborts the sweep
			return nil
		})
	}
	_ = g.Wait()

	st := SweepStats{
		Checked:  int(checked.Load()),
		Notified: int(notified.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
	}
	s.Logger.Debug("sweep_done",
		zap.Int("endpoints", len(eps)),
		zap.Int("checked", st.Checked),
		zap.Int("notified", st.Notified),
		zap.Int("skipped", st.Skipped),
		zap.Int("failed", st.Failed),
	)
	return st
}

// cronLogger routes cron's internal messages through zap.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw("cron_"+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().With(zap.Error(err)).Warnw("cron_"+msg, keysAndValues...)
}
