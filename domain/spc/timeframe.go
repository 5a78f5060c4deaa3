package spc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gospc/domain/core"
)

// TimeFrame is the bucket width used to resample a series. Native (zero) keeps one
// working row per input row.
type TimeFrame time.Duration

const (
	Native TimeFrame = 0
	Hourly TimeFrame = TimeFrame(time.Hour)
	Daily  TimeFrame = TimeFrame(24 * time.Hour)
	Weekly TimeFrame = TimeFrame(7 * 24 * time.Hour)
)

// Duration returns the bucket width.
func (tf TimeFrame) Duration() time.Duration { return time.Duration(tf) }

// IsNative reports whether no bucketing is requested.
func (tf TimeFrame) IsNative() bool { return tf == Native }

// String renders the frame in the same notation ParseTimeFrame accepts.
func (tf TimeFrame) String() string {
	d := time.Duration(tf)
	switch {
	case d == 0:
		return "native"
	case d%time.Duration(Weekly) == 0:
		return fmt.Sprintf("%dw", d/time.Duration(Weekly))
	case d%time.Duration(Daily) == 0:
		return fmt.Sprintf("%dd", d/time.Duration(Daily))
	default:
		return d.String()
	}
}

// MarshalText encodes the frame for JSON and YAML.
func (tf TimeFrame) MarshalText() ([]byte, error) {
	return []byte(tf.String()), nil
}

// UnmarshalText decodes any notation ParseTimeFrame accepts.
func (tf *TimeFrame) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeFrame(string(text))
	if err != nil {
		return err
	}
	*tf = parsed
	return nil
}

// ParseTimeFrame accepts "native" (or empty), day/week/hour shorthands such as
// "d", "7d", "2w", "h", and any time.ParseDuration string.
func ParseTimeFrame(s string) (TimeFrame, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "native" {
		return Native, nil
	}

	unit := s[len(s)-1]
	var base time.Duration
	switch unit {
	case 'd':
		base = time.Duration(Daily)
	case 'w':
		base = time.Duration(Weekly)
	}
	if base != 0 {
		count := 1
		if prefix := s[:len(s)-1]; prefix != "" {
			n, err := strconv.Atoi(prefix)
			if err != nil {
				return Native, core.NewValidationError("time_frame", fmt.Sprintf("cannot parse %q", s))
			}
			count = n
		}
		if count <= 0 {
			return Native, core.NewValidationError("time_frame", "must be positive")
		}
		return TimeFrame(time.Duration(count) * base), nil
	}

	if s == "h" {
		return Hourly, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Native, core.NewValidationError("time_frame", fmt.Sprintf("cannot parse %q", s))
	}
	if d < 0 {
		return Native, core.NewValidationError("time_frame", "must not be negative")
	}
	return TimeFrame(d), nil
}
