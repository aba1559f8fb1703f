package common

import (
	"strconv"
	"strings"
	"time"
)

// Atoi parses a provider-sent integer field, treating junk as zero.
func Atoi(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

// ParseInt64 parses a provider-sent 64-bit counter, treating junk as zero.
func ParseInt64(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// ParseFloat parses a provider-sent rating or price field, treating junk as
// zero.
func ParseFloat(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}

// ParseUnixTS converts a unix-seconds string into a UTC timestamp, nil for
// junk or non-positive values.
func ParseUnixTS(raw string) *time.Time {
	ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ts <= 0 {
		return nil
	}
	value := time.Unix(ts, 0).UTC()
	return &value
}
