// Package duration provides parsing for human-readable duration strings.
package duration

import (
	"fmt"
	"time"
)

// Parse parses Go durations ("90s", "2m0s") as well as the longer units
// "1d", "2w", "6mo" and "1y". A month is 30 days and a year 365 days.
func Parse(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0, fmt.Errorf("invalid duration format: %s (use e.g., 90s, 10m, 1d, 1w)", s)
	}

	day := 24 * time.Hour
	switch unit {
	case "min", "mins":
		return time.Duration(n) * time.Minute, nil
	case "hr", "hrs", "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(n) * day, nil
	case "w", "wk", "wks", "week", "weeks":
		return time.Duration(n) * 7 * day, nil
	case "mo", "month", "months":
		return time.Duration(n) * 30 * day, nil
	case "y", "yr", "yrs", "year", "years":
		return time.Duration(n) * 365 * day, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %s", unit)
	}
}
