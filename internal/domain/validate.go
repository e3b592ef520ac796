package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var ErrInvalidDomain = errors.New("invalid domain")

const (
	maxNameLen  = 253
	maxLabelLen = 63
)

// ValidateDomain trims the input and checks that it is a bare host name with
// an optional port. It does not lowercase: the record key is case-sensitive.
func ValidateDomain(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if strings.Contains(s, "://") {
		return "", fmt.Errorf("%w: %q has a scheme, send the bare domain", ErrInvalidDomain, s)
	}
	if strings.ContainsAny(s, " \t\r\n/?#@") {
		return "", fmt.Errorf("%w: %q contains a path or whitespace", ErrInvalidDomain, s)
	}

	host := s
	if h, port, err := net.SplitHostPort(s); err == nil {
		n, perr := strconv.Atoi(port)
		if perr != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("%w: bad port %q", ErrInvalidDomain, port)
		}
		host = h
	} else if strings.Contains(s, ":") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, s)
	}

	host = strings.TrimSuffix(host, ".")
	if len(host) == 0 || len(host) > maxNameLen {
		return "", fmt.Errorf("%w: length", ErrInvalidDomain)
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 && !strings.EqualFold(host, "localhost") {
		return "", fmt.Errorf("%w: %q needs a top-level domain", ErrInvalidDomain, host)
	}
	for _, l := range labels {
		if err := checkLabel(l); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
		}
	}
	return s, nil
}

func checkLabel(l string) error {
	if l == "" {
		return errors.New("empty label")
	}
	if len(l) > maxLabelLen {
		return fmt.Errorf("label %q too long", l)
	}
	if l[0] == '-' || l[len(l)-1] == '-' {
		return fmt.Errorf("label %q starts or ends with '-'", l)
	}
	for i := 0; i < len(l); i++ {
		c := l[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return fmt.Errorf("label %q has invalid character %q", l, c)
		}
	}
	return nil
}
