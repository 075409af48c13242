package risk

import "slices"

// FeatureSchema - именованный, версионированный контракт вектора признаков.
// Порядок колонок обязан совпадать с порядком, на котором обучалась модель;
// расхождение - структурная ошибка, а не повод тихо перештамповать данные.
type FeatureSchema struct {
	Version string
	Columns []string
}

// SchemaV1 is the feature contract the scorer produces and every classifier
// must declare.
var SchemaV1 = FeatureSchema{
	Version: "v1",
	Columns: []string{"attendance_pct", "max_consec_absences", "num_long_streaks"},
}

// Equal reports whether two schemas match exactly, order included.
func (s FeatureSchema) Equal(other FeatureSchema) bool {
	return s.Version == other.Version && slices.Equal(s.Columns, other.Columns)
}

// FeatureVector - упорядоченный вектор признаков по SchemaV1.
type FeatureVector [3]float64

// Vector returns the row's features in SchemaV1 column order. Identifier and
// name columns never reach the classifier.
func (r FeatureRow) Vector() FeatureVector {
	return FeatureVector{
		r.AttendancePct,
		float64(r.MaxConsecAbsences),
		float64(r.NumLongStreaks),
	}
}

// Classifier - предобученная бинарная модель риска отсева.
// Загружается один раз на процесс, после загрузки только читается и потому
// безопасна для конкурентных вызовов. Реализация живёт в infrastructure/ml.
type Classifier interface {
	// Schema returns the feature contract the model was trained against.
	Schema() FeatureSchema

	// PredictProba estimates the probability of the positive (dropout) class.
	PredictProba(v FeatureVector) (float64, error)

	// Predict returns the model's binary label (0/1). The decision boundary
	// belongs to the model; callers must not re-threshold PredictProba.
	Predict(v FeatureVector) (int, error)
}
