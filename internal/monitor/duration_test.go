package monitor

import "testing"

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{3661, "1 hour 1 minute 1 second"},
		{59, "59 seconds"},
		{0, "0 seconds"},
		{120, "2 minutes"},
		{1, "1 second"},
		{60, "1 minute"},
		{61, "1 minute 1 second"},
		{600, "10 minutes"},
		{900, "15 minutes"},
		{3600, "1 hour"},
		{7200, "2 hours"},
		{7260, "2 hours 1 minute"},
		{3605, "1 hour 5 seconds"},
		{90061, "25 hours 1 minute 1 second"},
		{-5, "0 seconds"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Fatalf("FormatDuration(%d)=%q want %q", c.in, got, c.want)
		}
	}
}
