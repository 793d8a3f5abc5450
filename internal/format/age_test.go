package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAge(t *testing.T) {
	const day = 24 * time.Hour
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "now"},
		{"59 seconds", 59 * time.Second, "now"},
		{"1 minute", time.Minute, "1m"},
		{"59 minutes", 59 * time.Minute, "59m"},
		{"1 hour", time.Hour, "1h"},
		{"23 hours", 23 * time.Hour, "23h"},
		{"1 day", day, "1d"},
		{"6 days", 6 * day, "6d"},
		{"1 week", 7 * day, "1w"},
		{"29 days", 29 * day, "4w"},
		{"30 days", 30 * day, "1mo"},
		{"364 days", 364 * day, "12mo"},
		{"2 years", 730 * day, "2y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Age(tt.duration))
		})
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-3 * time.Hour)

	assert.Equal(t, "3h", Since(&past, now))
	assert.Equal(t, "-", Since(nil, now))
}

func TestCount(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1k"},
		{1250, "1.2k"},
		{15_300, "15k"},
		{2_000_000, "2M"},
		{3_450_000, "3.5M"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Count(tt.n))
		})
	}
}
