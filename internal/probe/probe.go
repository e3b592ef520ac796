package probe

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/domainwatch/internal/domain"
)

// CheckResult is the unified result of a single check.
//
// StatusCode is the HTTP status when available; 0 for transport/DNS errors.
// Name labels the checker that produced it ("HTTP", "DNS").
type CheckResult struct {
	Name       string  `json:"name"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
}

// Checker performs a single check for a given target.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context, target string) CheckResult

func (f CheckerFunc) Check(ctx context.Context, target string) CheckResult { return f(ctx, target) }

// Prober reduces a domain to UP or DOWN. It never returns UNKNOWN and never
// errors: every failure is DOWN.
type Prober interface {
	Probe(ctx context.Context, name string) domain.Status
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, name string) domain.Status

func (f ProberFunc) Probe(ctx context.Context, name string) domain.Status { return f(ctx, name) }

// HTTPProber probes http://{domain} with Checker. When the check fails it runs
// every Diagnostics checker in parallel so the log says why.
type HTTPProber struct {
	Checker     Checker
	Diagnostics []Checker
	DiagTimeout time.Duration
	Logger      *zap.Logger
}

func NewHTTPProber(c Checker, log *zap.Logger, diag ...Checker) *HTTPProber {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPProber{Checker: c, Diagnostics: diag, DiagTimeout: defaultDNSLimit, Logger: log}
}

func (p *HTTPProber) Probe(ctx context.Context, name string) domain.Status {
	out := p.Checker.Check(ctx, TargetURL(name))
	if out.Success {
		p.Logger.Debug("probe_up",
			zap.String("domain", name),
			zap.Int("status", out.StatusCode),
			zap.Float64("latency_ms", out.LatencyMS),
		)
		return domain.StatusUp
	}

	fields := []zap.Field{
		zap.String("domain", name),
		zap.Int("status", out.StatusCode),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", out.Message),
	}
	for _, d := range p.diagnose(ctx, name) {
		fields = append(fields, zap.String("diag_"+strings.ToLower(d.Name), d.Message))
	}
	p.Logger.Info("probe_down", fields...)
	return domain.StatusDown
}

// diagnose gets its own deadline: the probe context has usually expired by
// the time a timed-out check lands here.
func (p *HTTPProber) diagnose(ctx context.Context, name string) []CheckResult {
	if len(p.Diagnostics) == 0 || errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.DiagTimeout)
	defer cancel()

	results := make([]CheckResult, len(p.Diagnostics))
	var g errgroup.Group
	for i, c := range p.Diagnostics {
		i, c := i, c
		g.Go(func() error {
			results[i] = c.Check(dctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// TargetURL builds the probe URL for a registered domain.
func TargetURL(name string) string {
	if strings.Contains(name, "://") {
		return name
	}
	return "http://" + name
}
