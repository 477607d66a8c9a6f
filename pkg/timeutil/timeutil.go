/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// FormatRFC3339 renders the time in UTC RFC3339 with millisecond precision.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseRFC3339 parses an RFC3339 timestamp, tolerating missing fractional
// seconds and a missing zone suffix (treated as UTC).
func ParseRFC3339(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatDuration renders a duration in seconds as a compact h/m/s string.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0s"
	}
	var sb strings.Builder
	if h := seconds / 3600; h > 0 {
		fmt.Fprintf(&sb, "%dh", h)
		seconds %= 3600
	}
	if m := seconds / 60; m > 0 {
		fmt.Fprintf(&sb, "%dm", m)
		seconds %= 60
	}
	if seconds > 0 {
		fmt.Fprintf(&sb, "%ds", seconds)
	}
	return sb.String()
}
