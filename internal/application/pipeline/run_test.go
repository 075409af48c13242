package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-attendance/dropout-radar/internal/domain/attendance"
	"github.com/smart-attendance/dropout-radar/internal/domain/risk"
	"github.com/smart-attendance/dropout-radar/internal/domain/shared"
)

// fakeClassifier flags students below 50% attendance.
type fakeClassifier struct {
	schema risk.FeatureSchema
}

func (f *fakeClassifier) Schema() risk.FeatureSchema { return f.schema }

func (f *fakeClassifier) PredictProba(v risk.FeatureVector) (float64, error) {
	return 1 - v[0], nil
}

func (f *fakeClassifier) Predict(v risk.FeatureVector) (int, error) {
	if v[0] < 0.5 {
		return 1, nil
	}
	return 0, nil
}

// fakeStore records merges per student; identifiers absent from known are
// reported as unmatched, mirroring the store's no-op upsert semantics.
type fakeStore struct {
	known  map[string]bool
	merges map[string][]risk.RiskUpdate
	err    error
}

func newFakeStore(ids ...string) *fakeStore {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &fakeStore{known: known, merges: make(map[string][]risk.RiskUpdate)}
}

func (f *fakeStore) MergeRiskFields(_ context.Context, studentID string, u risk.RiskUpdate) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if !f.known[studentID] {
		return false, nil
	}
	f.merges[studentID] = append(f.merges[studentID], u)
	return true, nil
}

func testRunner(store risk.StudentStore) *Runner {
	clf := &fakeClassifier{schema: risk.SchemaV1}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(clf, store, logger)
}

func TestRun_EmptyEventsShortCircuits(t *testing.T) {
	store := newFakeStore("1")
	res, err := testRunner(store).Run(context.Background(), "school-1", nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoEvents, res.Outcome)
	assert.Zero(t, res.UpdatesApplied)
	assert.Empty(t, store.merges, "no persistence may be attempted")
}

func TestRun_NoPresencesShortCircuits(t *testing.T) {
	// Scenario B: events exist but nobody was ever present.
	events := []attendance.Event{
		{StudentID: "1", Status: "absent", Date: "2024-01-01"},
		{StudentID: "2", Status: "absent", Date: "2024-01-02"},
	}

	store := newFakeStore("1", "2")
	res, err := testRunner(store).Run(context.Background(), "school-1", events)

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoFeatures, res.Outcome)
	assert.Zero(t, res.UpdatesApplied)
	assert.Empty(t, store.merges)
}

func TestRun_ScoresAndPersists(t *testing.T) {
	events := []attendance.Event{
		{StudentID: "1", Status: "present", Date: "2024-01-01"},
		{StudentID: "1", Status: "present", Date: "2024-01-02"},
		{StudentID: "2", Status: "absent", Date: "2024-01-01"},
		{StudentID: "2", Status: "absent", Date: "2024-01-02"},
	}

	store := newFakeStore("1", "2")
	res, err := testRunner(store).Run(context.Background(), "school-1", events)

	require.NoError(t, err)
	assert.Equal(t, OutcomeScored, res.Outcome)
	assert.Equal(t, 2, res.ValidDays)
	assert.Equal(t, 2, res.StudentsScored)
	assert.Equal(t, 2, res.UpdatesApplied)
	assert.Zero(t, res.UpdatesUnmatched)

	require.Len(t, store.merges["2"], 1)
	u := store.merges["2"][0]
	assert.Equal(t, 0.0, u.AttendancePercentage)
	assert.Equal(t, 2, u.MaxConsecAbsences)
	assert.Equal(t, 1.0, u.DropoutRisk)
	assert.Equal(t, 1, u.DropoutPred)

	require.Len(t, store.merges["1"], 1)
	assert.Equal(t, 100.0, store.merges["1"][0].AttendancePercentage)
	assert.Equal(t, 0, store.merges["1"][0].DropoutPred)
}

func TestRun_PersistIsIdempotent(t *testing.T) {
	events := []attendance.Event{
		{StudentID: "1", Status: "present", Date: "2024-01-01"},
	}

	store := newFakeStore("1")
	runner := testRunner(store)

	_, err := runner.Run(context.Background(), "school-1", events)
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), "school-1", events)
	require.NoError(t, err)

	merges := store.merges["1"]
	require.Len(t, merges, 2)
	assert.Equal(t, merges[0], merges[1], "repeated runs merge identical values")
}

func TestRun_UnmatchedStudentIsNotAnError(t *testing.T) {
	events := []attendance.Event{
		{StudentID: "1", Status: "present", Date: "2024-01-01"},
		{StudentID: "stranger", Status: "absent", Date: "2024-01-01"},
	}

	store := newFakeStore("1") // "stranger" has no student record
	res, err := testRunner(store).Run(context.Background(), "school-1", events)

	require.NoError(t, err)
	assert.Equal(t, 2, res.StudentsScored)
	assert.Equal(t, 1, res.UpdatesApplied)
	assert.Equal(t, 1, res.UpdatesUnmatched)
}

func TestRun_DatelessEventsSkippedNotFatal(t *testing.T) {
	// Scenario D: the dateless event is dropped; its student had no other
	// events and so never reaches the store.
	events := []attendance.Event{
		{StudentID: "1", Status: "present", Date: "2024-01-01"},
		{StudentID: "2", Status: "present"},
	}

	store := newFakeStore("1", "2")
	res, err := testRunner(store).Run(context.Background(), "school-1", events)

	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsSkipped)
	assert.Equal(t, 1, res.StudentsScored)
	assert.NotContains(t, store.merges, "2")
}

func TestRun_SchemaMismatchFailsSchoolRun(t *testing.T) {
	clf := &fakeClassifier{schema: risk.FeatureSchema{Version: "v0", Columns: []string{"attendance_pct"}}}
	store := newFakeStore("1")
	runner := NewRunner(clf, store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	events := []attendance.Event{{StudentID: "1", Status: "present", Date: "2024-01-01"}}
	_, err := runner.Run(context.Background(), "school-1", events)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrSchemaMismatch))
	assert.Empty(t, store.merges, "no garbage scores may be persisted")
}

func TestRun_StoreFailurePropagates(t *testing.T) {
	store := newFakeStore("1")
	store.err = errors.New("connection reset")

	events := []attendance.Event{{StudentID: "1", Status: "present", Date: "2024-01-01"}}
	_, err := testRunner(store).Run(context.Background(), "school-1", events)

	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
}
