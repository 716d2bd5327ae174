package utils

import "time"

// FormatTimestamp renders a wire timestamp (RFC 3339, UTC, nanoseconds)
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a wire timestamp; any RFC 3339 offset is accepted
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Advance returns now, or the instant just after prev when the clock has
// not moved past it. Used to keep updated_at strictly increasing.
func Advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
