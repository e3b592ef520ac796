package monitor

import (
	"strconv"
	"strings"
)

// FormatDuration renders whole seconds as "1 hour 1 minute 1 second".
// Zero components are dropped, except seconds when nothing else is shown.
func FormatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, plural(h, "hour"))
	}
	if m > 0 {
		parts = append(parts, plural(m, "minute"))
	}
	if s > 0 || (h == 0 && m == 0) {
		parts = append(parts, plural(s, "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s"
}
