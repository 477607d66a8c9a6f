/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRFC3339(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2026, 8, 25, 13, 30, 5, 120_000_000, loc)
	assert.Equal(t, "2026-08-25T12:30:05.120Z", FormatRFC3339(in))
}

func TestParseRFC3339(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"full", "2026-08-25T12:30:05.120Z", time.Date(2026, 8, 25, 12, 30, 5, 120_000_000, time.UTC)},
		{"noFraction", "2026-08-25T12:30:05Z", time.Date(2026, 8, 25, 12, 30, 5, 0, time.UTC)},
		{"noZone", "2026-08-25T12:30:05", time.Date(2026, 8, 25, 12, 30, 5, 0, time.UTC)},
		{"dateOnly", "2026-08-25", time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)},
		{"padded", "  2026-08-25  ", time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseRFC3339(test.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(test.want), "got %v", got)
		})
	}
}

func TestParseRFC3339Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2026-25-08"} {
		_, err := ParseRFC3339(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	parsed, err := ParseRFC3339(FormatRFC3339(now))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "45s", FormatDuration(45))
	assert.Equal(t, "2m5s", FormatDuration(125))
	assert.Equal(t, "1h1s", FormatDuration(3601))
	assert.Equal(t, "3h25m45s", FormatDuration(3*3600+25*60+45))
}
