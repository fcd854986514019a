// Package dates normalizes the two date formats accepted at the system
// boundary (YYYYMMDD and YYYY-MM-DD) into a single calendar-date type.
// Every component works with time.Time internally; string parsing happens
// here and nowhere else.
package dates

import (
	"fmt"
	"time"
)

// Layout is the canonical display format for trade dates.
const Layout = "2006-01-02"

const compactLayout = "20060102"

// Parse converts a date string in either supported format into a UTC
// calendar date (midnight). An empty string maps to the zero time, which
// callers treat as "unspecified".
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.ParseInLocation(compactLayout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(Layout, s, time.UTC); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("date %q matches neither YYYYMMDD nor YYYY-MM-DD", s)
}

// Format renders a trade date in the canonical YYYY-MM-DD form.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// FormatCompact renders a trade date as YYYYMMDD, used in report labels.
func FormatCompact(t time.Time) string {
	return t.Format(compactLayout)
}

// Day truncates a timestamp to its UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
