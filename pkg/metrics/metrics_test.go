package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_RegistersOnCustomRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(
		WithNamespace("test"),
		WithSubsystem("scoring"),
		WithPrometheusRegistry(registry),
	)
	require.NotNil(t, m)

	m.eventsFetched.Add(3)
	m.schoolRuns.WithLabelValues("scored").Inc()

	assert.InDelta(t, 3, testutil.ToFloat64(m.eventsFetched), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.schoolRuns.WithLabelValues("scored")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(m.schoolRuns.WithLabelValues("failed")), 1e-9)
}

func TestGlobalRecorders(t *testing.T) {
	before := testutil.ToFloat64(globalManager.studentsScored)

	RecordEventsFetched(10)
	RecordEventsSkipped(2)
	RecordStudentsScored(5)
	RecordUpdatesApplied(4)
	RecordUpdatesUnmatched(1)
	RecordStudentsFlagged(2)
	RecordSchoolRun("no_events")
	RecordRunDuration(120 * time.Millisecond)
	RecordJobRun("completed")
	RecordJobDuration(3 * time.Second)
	UpdateLastJobRun(time.Unix(1700000000, 0))

	assert.InDelta(t, before+5, testutil.ToFloat64(globalManager.studentsScored), 1e-9)
	assert.InDelta(t, 1700000000, testutil.ToFloat64(globalManager.lastRunUnix), 1e-9)
}

func TestGetRegistry(t *testing.T) {
	require.NotNil(t, GetRegistry())

	families, err := GetRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
