// Package risk содержит доменную модель риска отсева: инженерные признаки
// по матрице присутствия, контракт классификатора и скоринг студентов.
package risk

import (
	"github.com/smart-attendance/dropout-radar/internal/domain/attendance"
)

// LongStreakThreshold - порог "длинной" серии пропусков в учебных днях.
const LongStreakThreshold = 8

// FeatureRow - инженерные признаки одного студента плюс его идентификатор
// и отображаемое имя. Идентификатор и имя проходят через конвейер без
// изменений.
type FeatureRow struct {
	StudentID   string
	DisplayName string

	// AttendancePct is the share of school days attended, in [0,1].
	AttendancePct float64

	// MaxConsecAbsences is the longest run of consecutive absent days.
	MaxConsecAbsences int

	// NumLongStreaks counts every day on which a running absence streak is
	// at or past LongStreakThreshold. A streak of 10 contributes 3 (at
	// lengths 8, 9 and 10). This per-day accumulation is the established
	// training-data semantics of the model; a per-streak count would be a
	// different feature and would silently misscore.
	NumLongStreaks int
}

// ExtractFeatures вычисляет признаки по каждой строке матрицы.
//
// Матрица без учебных дней даёт пустой результат: прогноз невозможен, и
// оркестратор обязан трактовать это как short-circuit, а не как ошибку.
// Серии пропусков считаются одним проходом по строке в хронологическом
// порядке учебных дней.
func ExtractFeatures(m *attendance.Matrix) []FeatureRow {
	if m.NumDays() == 0 {
		return nil
	}

	rows := make([]FeatureRow, 0, m.NumStudents())
	for _, id := range m.StudentIDs() {
		row := m.Row(id)

		presences := 0
		streak, maxStreak, longStreaks := 0, 0, 0
		for _, present := range row {
			if present {
				presences++
				streak = 0
				continue
			}
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
			if streak >= LongStreakThreshold {
				longStreaks++
			}
		}

		rows = append(rows, FeatureRow{
			StudentID:         id,
			DisplayName:       m.DisplayName(id),
			AttendancePct:     float64(presences) / float64(len(row)),
			MaxConsecAbsences: maxStreak,
			NumLongStreaks:    longStreaks,
		})
	}

	return rows
}
