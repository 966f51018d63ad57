package util //nolint:revive // package name util hosts shared formatting helpers used by the CLIs

import "time"

// FormatTTL formats a remaining lifetime for display.
// Returns "none" for zero or negative durations, rounds to whole seconds otherwise.
func FormatTTL(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.Round(time.Second).String()
}

// OrDash returns s, or "-" when s is empty.
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
