package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-attendance/dropout-radar/internal/domain/shared"
)

// stubClassifier scores by attendance only: prob = 1 - attendance_pct.
type stubClassifier struct {
	schema     FeatureSchema
	probErr    error
	predictErr error
	seen       []FeatureVector
}

func (s *stubClassifier) Schema() FeatureSchema { return s.schema }

func (s *stubClassifier) PredictProba(v FeatureVector) (float64, error) {
	if s.probErr != nil {
		return 0, s.probErr
	}
	s.seen = append(s.seen, v)
	return 1 - v[0], nil
}

func (s *stubClassifier) Predict(v FeatureVector) (int, error) {
	if s.predictErr != nil {
		return 0, s.predictErr
	}
	if 1-v[0] >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

func TestScore_HappyPath(t *testing.T) {
	clf := &stubClassifier{schema: SchemaV1}
	features := []FeatureRow{
		{StudentID: "1", DisplayName: "Student-1", AttendancePct: 0.9, MaxConsecAbsences: 1},
		{StudentID: "2", DisplayName: "Student-2", AttendancePct: 0.2, MaxConsecAbsences: 9, NumLongStreaks: 2},
	}

	records, err := Score(features, clf, "school-7")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "school-7", records[0].SchoolID)
	assert.Equal(t, "1", records[0].StudentID)
	assert.InDelta(t, 0.1, records[0].DropoutProb, 1e-12)
	assert.Equal(t, 0, records[0].DropoutPred)

	assert.InDelta(t, 0.8, records[1].DropoutProb, 1e-12)
	assert.Equal(t, 1, records[1].DropoutPred)

	// The classifier must only ever see the three engineered features,
	// in schema order.
	require.Len(t, clf.seen, 2)
	assert.Equal(t, FeatureVector{0.2, 9, 2}, clf.seen[1])
}

func TestScore_SchemaMismatchIsFatal(t *testing.T) {
	clf := &stubClassifier{schema: FeatureSchema{
		Version: "v1",
		Columns: []string{"max_consec_absences", "attendance_pct", "num_long_streaks"},
	}}

	_, err := Score([]FeatureRow{{StudentID: "1"}}, clf, "school-7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrSchemaMismatch))
}

func TestScore_SchemaVersionMismatch(t *testing.T) {
	clf := &stubClassifier{schema: FeatureSchema{Version: "v2", Columns: SchemaV1.Columns}}

	_, err := Score(nil, clf, "school-7")
	assert.True(t, errors.Is(err, shared.ErrSchemaMismatch))
}

func TestScore_ClassifierErrorPropagates(t *testing.T) {
	boom := errors.New("model file corrupted")
	clf := &stubClassifier{schema: SchemaV1, probErr: boom}

	_, err := Score([]FeatureRow{{StudentID: "1"}}, clf, "school-7")
	assert.True(t, errors.Is(err, boom))
}

func TestScoredRecord_Update(t *testing.T) {
	rec := ScoredRecord{
		SchoolID: "school-7",
		FeatureRow: FeatureRow{
			StudentID:         "42",
			AttendancePct:     0.755,
			MaxConsecAbsences: 3,
			NumLongStreaks:    1,
		},
		DropoutProb: 0.31,
		DropoutPred: 0,
	}

	u := rec.Update()
	assert.InDelta(t, 75.5, u.AttendancePercentage, 1e-9)
	assert.Equal(t, 3, u.MaxConsecAbsences)
	assert.Equal(t, 1, u.NumLongStreaks)
	assert.Equal(t, 0.31, u.DropoutRisk)
	assert.Equal(t, 0, u.DropoutPred)
}
