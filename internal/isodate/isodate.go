// Package isodate reads and writes the ISO-8601 timestamp profile used on the
// Hub wire: yyyy-MM-ddTHH:mm:ss with optional fractional seconds and zone.
package isodate

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical output form. Parse accepts everything Format emits.
const Layout = "2006-01-02T15:04:05.000Z07:00"

// Sub-millisecond values widen the fraction so Format never drops precision.
const (
	layoutMicro = "2006-01-02T15:04:05.000000Z07:00"
	layoutNano  = "2006-01-02T15:04:05.000000000Z07:00"
)

// Fractional seconds are accepted after the seconds field by time.Parse even
// when the layout omits them, so each layout only varies in its zone suffix.
var layouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
}

// ParseError reports a non-empty timestamp that matches none of the layouts.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid ISO-8601 timestamp %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts s to a UTC time. An empty string is an absent timestamp and
// yields (nil, nil). Zone-less values are read as UTC.
func Parse(s string) (*time.Time, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, nil
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
		lastErr = err
	}
	return nil, &ParseError{Value: s, Err: lastErr}
}

// ParseOptional is Parse for nullable wire fields.
func ParseOptional(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	return Parse(*s)
}

// Format renders t in UTC using Layout, or with six or nine fractional
// digits when t carries sub-millisecond precision.
func Format(t time.Time) string {
	t = t.UTC()
	switch ns := t.Nanosecond(); {
	case ns%int(time.Millisecond) == 0:
		return t.Format(Layout)
	case ns%int(time.Microsecond) == 0:
		return t.Format(layoutMicro)
	default:
		return t.Format(layoutNano)
	}
}

// FormatOptional returns nil for a nil time.
func FormatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := Format(*t)
	return &s
}
