package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes reported by CheckDNS.
const (
	DNSResolves     = "RESOLVES"
	DNSNXDomain     = "NXDOMAIN"
	DNSNoARecord    = "NO_A_RECORD"
	DNSServfail     = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName  = "INVALID_NAME"
	defaultDNSLimit = 3 * time.Second
)

type DNSStatus struct {
	Domain        string
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	Class         string
	ResolverError string
}

func (s DNSStatus) HasAddress() bool { return len(s.IPs) > 0 }

// Summary is a compact one-line form for logs.
func (s DNSStatus) Summary() string {
	parts := []string{s.Class}
	if s.CNAME != "" {
		parts = append(parts, "cname="+s.CNAME)
	}
	if len(s.Nameservers) > 0 {
		parts = append(parts, "ns="+strings.Join(s.Nameservers, ","))
	}
	if s.ResolverError != "" && s.Class != DNSResolves {
		parts = append(parts, "err="+s.ResolverError)
	}
	return strings.Join(parts, " ")
}

// Resolver is the subset of *net.Resolver CheckDNS uses.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// CheckDNS looks up addresses, CNAME and NS for host and classifies why it
// might be unreachable.
func CheckDNS(ctx context.Context, r Resolver, host string, timeout time.Duration) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(host)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") {
		s.Class = DNSInvalidName
		return s
	}
	if r == nil {
		r = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = defaultDNSLimit
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ips, ipErr := r.LookupIP(ctx, "ip", s.Domain)
	s.IPs = ips
	if ipErr != nil {
		s.ResolverError = ipErr.Error()
	}
	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := r.LookupNS(ctx, s.Domain); err == nil {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}
	s.Class = classify(s, ipErr)
	return s
}

func classify(s DNSStatus, ipErr error) string {
	if s.HasAddress() {
		return DNSResolves
	}
	// a delegated zone without address records is a config problem, not NXDOMAIN
	if len(s.Nameservers) > 0 {
		return DNSNoARecord
	}
	var de *net.DNSError
	if errors.As(ipErr, &de) && de.IsNotFound {
		return DNSNXDomain
	}
	if ipErr != nil {
		return DNSServfail
	}
	return DNSNXDomain
}

// DNSChecker adapts CheckDNS to Checker for probe diagnostics.
type DNSChecker struct {
	Resolver Resolver
	Timeout  time.Duration
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{Resolver: net.DefaultResolver, Timeout: defaultDNSLimit}
}

func (d *DNSChecker) Check(ctx context.Context, target string) CheckResult {
	st := CheckDNS(ctx, d.Resolver, hostOf(target), d.Timeout)
	return CheckResult{Name: "DNS", Success: st.Class == DNSResolves, Message: st.Summary()}
}

// hostOf accepts a URL or a bare domain with optional port.
func hostOf(raw string) string {
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
		return raw
	}
	if h, _, err := net.SplitHostPort(raw); err == nil {
		return h
	}
	return raw
}
