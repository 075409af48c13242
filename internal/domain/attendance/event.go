// Package attendance содержит доменную модель посещаемости школы.
// Это ядро бизнес-логики - здесь нет внешних зависимостей, кроме pkg/timeutil.
//
// Сырые записи посещаемости приходят из мобильного приложения в разнородном
// виде: новые версии пишут типизированный timestamp, старые - ISO-строку.
// Пакет приводит их к календарным дням и строит матрицу присутствия.
package attendance

import (
	"errors"
	"strings"
	"time"

	"github.com/smart-attendance/dropout-radar/pkg/timeutil"
)

// StatusPresent - единственный статус, который засчитывается как присутствие.
// Сравнение регистронезависимое: "Present", "PRESENT" и "present" эквивалентны.
const StatusPresent = "present"

// ErrNoDate is returned when an event carries neither a date nor a timeIn value.
var ErrNoDate = errors.New("attendance: event has no date or timeIn")

// Event представляет одну сырую запись посещаемости: один студент, один день.
//
// Date и TimeIn намеренно нетипизированы: хранилище отдаёт либо строку
// (legacy-записи), либо time.Time. Нормализация выполняется в RecordedOn.
type Event struct {
	// StudentID is an opaque identifier assigned by the attendance app.
	StudentID string

	// Status is a free-form, case-insensitive status string. Anything other
	// than "present" counts as an absence.
	Status string

	// Date is the raw date-bearing value, preferred over TimeIn when set.
	Date any

	// TimeIn is the raw check-in timestamp, used when Date is missing.
	TimeIn any
}

// IsPresent reports whether the event records a presence.
func (e Event) IsPresent() bool {
	return strings.EqualFold(strings.TrimSpace(e.Status), StatusPresent)
}

// dateCandidate returns the value RecordedOn should normalize:
// Date when present and non-empty, otherwise TimeIn, otherwise nil.
func (e Event) dateCandidate() any {
	if !isEmptyDateValue(e.Date) {
		return e.Date
	}
	if !isEmptyDateValue(e.TimeIn) {
		return e.TimeIn
	}
	return nil
}

// isEmptyDateValue mirrors the ingestion contract: nil, empty strings and
// nil timestamp pointers all mean "field absent".
func isEmptyDateValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *time.Time:
		return t == nil || t.IsZero()
	case time.Time:
		return t.IsZero()
	default:
		return false
	}
}

// RecordedOn resolves the calendar date the event belongs to.
//
// Events with neither field return ErrNoDate; unparseable values return a
// *timeutil.DateParseError. Both are per-event conditions - the caller skips
// the event and keeps going.
func (e Event) RecordedOn() (time.Time, error) {
	candidate := e.dateCandidate()
	if candidate == nil {
		return time.Time{}, ErrNoDate
	}
	return timeutil.NormalizeDate(candidate)
}
