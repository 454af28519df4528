// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/tireintel/pkg/constants"
)

const (
	// DateTimeLayout is the format expected in config files and is also the output
	// date format.
	DateTimeLayout = constants.DateTimeLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseMonth parses a "2006-01" month. Full dates ("2006-01-02") are accepted and
// truncated to the first of their month.
func ParseMonth(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("month cannot be empty")
	}
	if t, err := time.Parse(DateTimeLayout, trimmed); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", value)
	}
	return MonthStart(t), nil
}

// MonthStart truncates t to midnight UTC on the first day of its month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the first day of the month that is n months after t's month.
func AddMonths(t time.Time, n int) time.Time {
	return MonthStart(t).AddDate(0, n, 0)
}

// MonthsBetween returns the number of calendar months from start to end,
// inclusive of both. It is zero or negative when end precedes start.
func MonthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*constants.MonthsPerYear + int(end.Month()) - int(start.Month()) + 1
}
