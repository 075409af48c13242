package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-attendance/dropout-radar/internal/application/pipeline"
	"github.com/smart-attendance/dropout-radar/internal/domain/attendance"
	"github.com/smart-attendance/dropout-radar/internal/domain/risk"
	"github.com/smart-attendance/dropout-radar/internal/infrastructure/persistence/redis"
)

type fakeEventRepo struct {
	events  map[string][]attendance.Event
	listErr map[string]error
}

func (r *fakeEventRepo) ListBySchool(_ context.Context, schoolID string) ([]attendance.Event, error) {
	if err := r.listErr[schoolID]; err != nil {
		return nil, err
	}
	return r.events[schoolID], nil
}

func (r *fakeEventRepo) ListSchoolIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(r.events))
	for id := range r.events {
		ids = append(ids, id)
	}
	for id := range r.listErr {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeClassifier struct{}

func (fakeClassifier) Schema() risk.FeatureSchema { return risk.SchemaV1 }

func (fakeClassifier) PredictProba(v risk.FeatureVector) (float64, error) {
	return 1 - v[0], nil
}

func (c fakeClassifier) Predict(v risk.FeatureVector) (int, error) {
	prob, _ := c.PredictProba(v)
	if prob >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

type fakeStore struct {
	mu     sync.Mutex
	merges map[string]int
	err    error
}

func (s *fakeStore) MergeRiskFields(_ context.Context, studentID string, _ risk.RiskUpdate) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.merges == nil {
		s.merges = make(map[string]int)
	}
	s.merges[studentID]++
	return true, nil
}

type fakeSummaries struct {
	mu        sync.Mutex
	summaries map[string]redis.SchoolRiskSummary
	err       error
}

func (f *fakeSummaries) SetSummary(_ context.Context, s redis.SchoolRiskSummary) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaries == nil {
		f.summaries = make(map[string]redis.SchoolRiskSummary)
	}
	f.summaries[s.SchoolID] = s
	return nil
}

func presentEvent(studentID, date string) attendance.Event {
	return attendance.Event{StudentID: studentID, Status: "Present", Date: date}
}

func absentEvent(studentID, date string) attendance.Event {
	return attendance.Event{StudentID: studentID, Status: "Absent", Date: date}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(repo *fakeEventRepo, store risk.StudentStore, summaries SummaryWriter) *ScoreAllSchoolsJob {
	runner := pipeline.NewRunner(fakeClassifier{}, store, discardLogger())
	return NewScoreAllSchoolsJob(repo, runner, summaries, discardLogger(), DefaultScoreAllSchoolsConfig())
}

func TestRun_ScoresAllSchools(t *testing.T) {
	repo := &fakeEventRepo{events: map[string][]attendance.Event{
		"school-1": {
			presentEvent("s1", "2024-01-01"),
			absentEvent("s2", "2024-01-01"),
		},
		"school-2": {
			presentEvent("s3", "2024-02-01"),
			presentEvent("s3", "2024-02-02"),
		},
	}}
	store := &fakeStore{}
	summaries := &fakeSummaries{}

	job := newJob(repo, store, summaries)
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 2, stats.SchoolsTotal)
	assert.Equal(t, 2, stats.SchoolsScored)
	assert.Zero(t, stats.SchoolsFailed)
	assert.Equal(t, 3, stats.StudentsScored)
	assert.Equal(t, 3, stats.UpdatesApplied)
	assert.Zero(t, stats.UpdatesUnmatched)

	// s2 missed the only school day, so it is the one flagged student.
	assert.Equal(t, 1, stats.StudentsFlagged)

	assert.Len(t, summaries.summaries, 2)
	assert.Equal(t, stats.RunID, summaries.summaries["school-1"].RunID)
	assert.Equal(t, 1, summaries.summaries["school-1"].HighRiskCount)
}

func TestRun_SchoolFailureDoesNotBlockOthers(t *testing.T) {
	repo := &fakeEventRepo{
		events: map[string][]attendance.Event{
			"school-ok": {presentEvent("s1", "2024-01-01")},
		},
		listErr: map[string]error{
			"school-broken": errors.New("connection reset"),
		},
	}
	store := &fakeStore{}

	job := newJob(repo, store, nil)
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SchoolsTotal)
	assert.Equal(t, 1, stats.SchoolsScored)
	assert.Equal(t, 1, stats.SchoolsFailed)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "school-broken", stats.Errors[0].SchoolID)
	assert.Equal(t, 1, store.merges["s1"])
}

func TestRun_EmptySchoolCountedSeparately(t *testing.T) {
	repo := &fakeEventRepo{events: map[string][]attendance.Event{
		"school-quiet":  {},
		"school-absent": {absentEvent("s1", "2024-01-01")},
	}}

	job := newJob(repo, &fakeStore{}, nil)
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SchoolsEmpty)
	assert.Zero(t, stats.SchoolsScored)
	assert.Zero(t, stats.SchoolsFailed)
}

func TestRun_MajorityFailuresFailTheJob(t *testing.T) {
	repo := &fakeEventRepo{
		listErr: map[string]error{
			"a": errors.New("down"),
			"b": errors.New("down"),
		},
	}

	job := newJob(repo, &fakeStore{}, nil)
	err := job.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than 50%")
}

func TestRun_SummaryFailureIsAdvisory(t *testing.T) {
	repo := &fakeEventRepo{events: map[string][]attendance.Event{
		"school-1": {presentEvent("s1", "2024-01-01")},
	}}
	store := &fakeStore{}
	summaries := &fakeSummaries{err: errors.New("redis down")}

	job := newJob(repo, store, summaries)
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.SchoolsScored)
	assert.Equal(t, 1, store.merges["s1"])
}
