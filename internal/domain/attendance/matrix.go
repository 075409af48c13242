package attendance

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALID DAYS
// ══════════════════════════════════════════════════════════════════════════════

// Day - учебный день школы с порядковым номером.
//
// Календарная дата считается учебным днём, только если в этот день хотя бы
// один студент был отмечен как присутствующий. Дни без единого присутствия
// (каникулы, праздники, выходные) в матрицу не попадают, даже если на них
// есть записи об отсутствии.
type Day struct {
	// Date is the calendar date (UTC midnight).
	Date time.Time

	// Index is the 1-based chronological sequence number. Downstream features
	// are computed over this sequence, not over calendar dates.
	Index int
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE MATRIX
// ══════════════════════════════════════════════════════════════════════════════

// Matrix - плотная матрица присутствия: строка на студента, столбец на
// учебный день. Ячейка true = присутствие; отсутствие - значение по умолчанию,
// в том числе когда у студента вообще нет записи за этот день.
//
// Инвариант: у каждой строки ровно len(Days) ячеек, пропусков не бывает.
type Matrix struct {
	days []Day
	rows map[string][]bool
}

// Days returns the chronologically ordered school days.
func (m *Matrix) Days() []Day {
	return m.days
}

// NumDays returns the number of valid school days.
func (m *Matrix) NumDays() int {
	return len(m.days)
}

// NumStudents returns the number of student rows.
func (m *Matrix) NumStudents() int {
	return len(m.rows)
}

// StudentIDs returns all student identifiers in lexicographic order.
// Row order carries no meaning; sorting keeps runs reproducible.
func (m *Matrix) StudentIDs() []string {
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Row returns the day-ordered presence row for a student, or nil if the
// student is not in the matrix.
func (m *Matrix) Row(studentID string) []bool {
	return m.rows[studentID]
}

// DisplayName returns the row label for a student. The attendance feed does
// not carry names, so the label is synthesized from the identifier.
func (m *Matrix) DisplayName(studentID string) string {
	return "Student-" + studentID
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// SkippedEvent - событие, исключённое из матрицы, вместе с причиной.
// Пропуск - видимая, тестируемая ветка, а не побочный лог.
type SkippedEvent struct {
	Event  Event
	Reason error
}

// dated pairs a surviving event with its resolved calendar date.
type dated struct {
	event Event
	date  time.Time
}

// BuildMatrix строит матрицу присутствия из сырых событий.
//
// События без разрешимой даты не прерывают расчёт: они возвращаются вторым
// значением, чтобы вызывающий мог их залогировать. Если единственное событие
// студента отброшено, студент в матрицу не попадает.
//
// Пустой вход или вход без единого присутствия дают матрицу без столбцов -
// вырожденный случай, который выше по конвейеру превращается в short-circuit.
func BuildMatrix(events []Event) (*Matrix, []SkippedEvent) {
	var skipped []SkippedEvent
	survivors := make([]dated, 0, len(events))

	for _, e := range events {
		d, err := e.RecordedOn()
		if err != nil {
			skipped = append(skipped, SkippedEvent{Event: e, Reason: err})
			continue
		}
		survivors = append(survivors, dated{event: e, date: d})
	}

	// Valid days: dates with at least one presence.
	daySet := make(map[time.Time]struct{})
	for _, s := range survivors {
		if s.event.IsPresent() {
			daySet[s.date] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	days := make([]Day, len(dates))
	dayIndex := make(map[time.Time]int, len(dates)) // date -> slice position
	for i, d := range dates {
		days[i] = Day{Date: d, Index: i + 1}
		dayIndex[d] = i
	}

	// Rows: every surviving student gets a full row, absent by default.
	rows := make(map[string][]bool)
	for _, s := range survivors {
		if _, ok := rows[s.event.StudentID]; !ok {
			rows[s.event.StudentID] = make([]bool, len(days))
		}
	}

	for _, s := range survivors {
		if !s.event.IsPresent() {
			continue
		}
		if i, ok := dayIndex[s.date]; ok {
			rows[s.event.StudentID][i] = true
		}
	}

	return &Matrix{days: days, rows: rows}, skipped
}
