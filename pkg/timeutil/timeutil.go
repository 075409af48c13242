// Package timeutil provides calendar-date utilities for the Dropout Radar pipeline.
// Attendance records arrive with heterogeneous date representations (typed
// timestamps from newer app versions, raw ISO strings from the legacy mobile app),
// and everything downstream works on whole calendar days.
// No external dependencies - uses only standard library.
package timeutil

import (
	"errors"
	"fmt"
	"time"
)

// IndiaTZ is the India Standard Time zone (UTC+5:30, no DST).
// All partner schools report attendance in IST.
var IndiaTZ = time.FixedZone("Asia/Kolkata", 5*60*60+30*60)

// Now returns the current time in IST.
func Now() time.Time {
	return time.Now().In(IndiaTZ)
}

// Date creates a calendar date with the given components.
// Calendar dates are normalized to UTC midnight so they compare with ==.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateOnly truncates a time to its calendar date, dropping time-of-day
// and normalizing to UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateParseError reports a value that could not be coerced to a calendar date.
// It is per-record and non-fatal: callers are expected to skip the owning
// record, not abort the batch.
type DateParseError struct {
	Value any
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("timeutil: cannot normalize %q to a calendar date: %v", fmt.Sprint(e.Value), e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// IsDateParseError checks if the error is a date normalization failure.
func IsDateParseError(err error) bool {
	var dpe *DateParseError
	return errors.As(err, &dpe)
}

// NormalizeDate coerces a date-like value into a calendar date.
//
// Supported inputs:
//   - time.Time / *time.Time: truncated to the calendar date
//   - string (and fmt.Stringer): the leading date portion before any time
//     separator is parsed as an ISO calendar date, e.g. "2024-01-05T09:30:00Z"
//     and "2024-01-05 09:30" both normalize to 2024-01-05
//
// Any other value, and any parse failure, yields a *DateParseError carrying
// the original value.
func NormalizeDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return DateOnly(v), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, &DateParseError{Value: value, Err: errors.New("nil timestamp")}
		}
		return DateOnly(*v), nil
	case string:
		return parseCalendarDate(v, value)
	case fmt.Stringer:
		return parseCalendarDate(v.String(), value)
	default:
		return time.Time{}, &DateParseError{Value: value, Err: fmt.Errorf("unsupported type %T", value)}
	}
}

// parseCalendarDate parses the leading ISO date portion of s.
func parseCalendarDate(s string, original any) (time.Time, error) {
	head := s
	for i := 0; i < len(s); i++ {
		if s[i] == 'T' || s[i] == ' ' {
			head = s[:i]
			break
		}
	}

	d, err := time.ParseInLocation(time.DateOnly, head, time.UTC)
	if err != nil {
		return time.Time{}, &DateParseError{Value: original, Err: err}
	}
	return d, nil
}

// FormatDate renders a calendar date as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
