package probe

import (
	"context"
	"io"
	"net/http"
	"time"
)

type HTTPChecker struct {
	Client *http.Client
	// Accept2xx widens success from exactly 200 to any 2xx.
	Accept2xx bool
}

func NewHTTPChecker(timeout time.Duration, accept2xx bool) *HTTPChecker {
	return &HTTPChecker{
		Client:    &http.Client{Timeout: timeout},
		Accept2xx: accept2xx,
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", "domainwatch/1.0")

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()
	// drain a bit so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return CheckResult{
		Name:       "HTTP",
		Success:    h.accepts(resp.StatusCode),
		Message:    resp.Status,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency,
	}
}

func (h *HTTPChecker) accepts(code int) bool {
	if h.Accept2xx {
		return code >= 200 && code < 300
	}
	return code == http.StatusOK
}
