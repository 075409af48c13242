package risk

import "context"

// ScoredRecord - признаки студента вместе с прогнозом модели и школой-владельцем.
type ScoredRecord struct {
	SchoolID string
	FeatureRow

	// DropoutProb is the classifier's probability of the dropout class, [0,1].
	DropoutProb float64

	// DropoutPred is the classifier's binary label, 0 or 1.
	DropoutPred int
}

// RiskUpdate - подмножество полей ScoredRecord, записываемое в хранилище
// студентов. Имена и шкалы зафиксированы контрактом хранилища:
// attendancePercentage в процентах (0-100), dropoutRisk как вероятность (0-1).
type RiskUpdate struct {
	AttendancePercentage float64
	MaxConsecAbsences    int
	NumLongStreaks       int
	DropoutRisk          float64
	DropoutPred          int
}

// Update maps the record to its persisted field subset.
func (r ScoredRecord) Update() RiskUpdate {
	return RiskUpdate{
		AttendancePercentage: r.AttendancePct * 100,
		MaxConsecAbsences:    r.MaxConsecAbsences,
		NumLongStreaks:       r.NumLongStreaks,
		DropoutRisk:          r.DropoutProb,
		DropoutPred:          r.DropoutPred,
	}
}

// StudentStore - хранилище записей студентов с keyed field-merge.
//
// Предусловие (внешний инвариант, здесь не проверяется): идентификатор
// студента из ленты посещаемости совпадает с первичным ключом хранилища.
type StudentStore interface {
	// MergeRiskFields merges the update into the record keyed by studentID.
	// A missing key is a store-level no-op, reported as matched=false, never
	// as an error. The merge is idempotent: re-applying the same update
	// leaves identical stored values.
	MergeRiskFields(ctx context.Context, studentID string, update RiskUpdate) (matched bool, err error)
}
