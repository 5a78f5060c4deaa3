package core

import (
	"strings"
	"time"
)

// DayMonthYear is the external date convention used by staged data (e.g. 31/01/2024).
// Single-digit days and months are accepted.
const DayMonthYear = "2/1/2006"

// ISODate is accepted as a fallback by lenient loaders.
const ISODate = "2006-01-02"

// ParseDate parses text with the given layout into a UTC calendar date.
func ParseDate(text, layout string) (time.Time, error) {
	if layout == "" {
		layout = DayMonthYear
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(text), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParseDates converts a text column, failing on the first malformed entry.
func ParseDates(texts []string, layout string) ([]time.Time, error) {
	out := make([]time.Time, len(texts))
	for i, s := range texts {
		t, err := ParseDate(s, layout)
		if err != nil {
			return nil, NewDateParseError(i, s, err)
		}
		out[i] = t
	}
	return out, nil
}

// FormatDate renders a date in the day/month/year convention.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
