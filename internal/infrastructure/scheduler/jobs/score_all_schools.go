// Package jobs contains implementations of scheduled jobs for the
// dropout-risk worker. Each job keeps risk scores fresh so that school staff
// see current numbers, not last week's.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smart-attendance/dropout-radar/internal/application/pipeline"
	"github.com/smart-attendance/dropout-radar/internal/domain/attendance"
	"github.com/smart-attendance/dropout-radar/internal/infrastructure/persistence/redis"
	"github.com/smart-attendance/dropout-radar/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE ALL SCHOOLS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SummaryWriter publishes per-school risk summaries after a run.
type SummaryWriter interface {
	SetSummary(ctx context.Context, s redis.SchoolRiskSummary) error
}

// ScoreAllSchoolsJob runs the dropout-risk pipeline for every school that has
// attendance events. Schools are independent: one school's failure never
// blocks the rest.
type ScoreAllSchoolsJob struct {
	// Dependencies
	eventRepo attendance.EventRepository
	runner    *pipeline.Runner
	summaries SummaryWriter // optional, nil when Redis is disabled
	logger    *slog.Logger

	// Configuration
	config ScoreAllSchoolsConfig

	// State (for metrics)
	lastRunStats atomic.Value // *ScoreStats
}

// ScoreAllSchoolsConfig contains configuration for the scoring job.
type ScoreAllSchoolsConfig struct {
	// Concurrency is the number of schools to score in parallel.
	Concurrency int

	// Timeout is the maximum duration for the entire job run.
	Timeout time.Duration

	// SchoolTimeout is the maximum duration for one school's run.
	SchoolTimeout time.Duration
}

// DefaultScoreAllSchoolsConfig returns sensible defaults.
func DefaultScoreAllSchoolsConfig() ScoreAllSchoolsConfig {
	return ScoreAllSchoolsConfig{
		Concurrency:   4,
		Timeout:       30 * time.Minute,
		SchoolTimeout: 5 * time.Minute,
	}
}

// ScoreStats contains statistics from one job run.
type ScoreStats struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration

	SchoolsTotal  int
	SchoolsScored int
	SchoolsEmpty  int // no events or no derivable features
	SchoolsFailed int

	EventsTotal      int
	EventsSkipped    int
	StudentsScored   int
	StudentsFlagged  int
	UpdatesApplied   int
	UpdatesUnmatched int

	Errors []SchoolError
}

// SchoolError represents one school's failure during a run.
type SchoolError struct {
	SchoolID   string
	Error      error
	OccurredAt time.Time
}

// NewScoreAllSchoolsJob creates a new scoring job.
func NewScoreAllSchoolsJob(
	eventRepo attendance.EventRepository,
	runner *pipeline.Runner,
	summaries SummaryWriter,
	logger *slog.Logger,
	config ScoreAllSchoolsConfig,
) *ScoreAllSchoolsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	return &ScoreAllSchoolsJob{
		eventRepo: eventRepo,
		runner:    runner,
		summaries: summaries,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *ScoreAllSchoolsJob) Name() string {
	return "score_all_schools"
}

// Description returns a human-readable description.
func (j *ScoreAllSchoolsJob) Description() string {
	return "Scores dropout risk for every school with attendance events"
}

// Run executes the scoring job.
func (j *ScoreAllSchoolsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ScoreStats{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
		Errors:    make([]SchoolError, 0),
	}
	log := j.logger.With("run_id", stats.RunID)

	log.Info("starting score_all_schools job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	schoolIDs, err := j.eventRepo.ListSchoolIDs(ctx)
	if err != nil {
		metrics.RecordJobRun("failed")
		return fmt.Errorf("failed to list schools: %w", err)
	}

	stats.SchoolsTotal = len(schoolIDs)
	log.Info("found schools to score", "count", stats.SchoolsTotal)

	if stats.SchoolsTotal == 0 {
		j.finalize(stats)
		return nil
	}

	j.scoreSchoolsConcurrently(ctx, schoolIDs, stats, log)

	j.finalize(stats)

	log.Info("score_all_schools job completed",
		"duration", stats.Duration.String(),
		"schools", stats.SchoolsTotal,
		"scored", stats.SchoolsScored,
		"empty", stats.SchoolsEmpty,
		"failed", stats.SchoolsFailed,
		"students_scored", stats.StudentsScored,
		"updates_applied", stats.UpdatesApplied,
		"updates_unmatched", stats.UpdatesUnmatched,
	)

	// Return error if too many failures
	failureRate := float64(stats.SchoolsFailed) / float64(stats.SchoolsTotal)
	if failureRate > 0.5 {
		metrics.RecordJobRun("failed")
		return fmt.Errorf("scoring failed for more than 50%% of schools (%d/%d)",
			stats.SchoolsFailed, stats.SchoolsTotal)
	}

	metrics.RecordJobRun("completed")
	return nil
}

// finalize completes the stats and records job-level metrics.
func (j *ScoreAllSchoolsJob) finalize(stats *ScoreStats) {
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)

	metrics.RecordJobDuration(stats.Duration)
	metrics.UpdateLastJobRun(stats.CompletedAt)
}

// scoreSchoolsConcurrently scores schools using a worker pool.
func (j *ScoreAllSchoolsJob) scoreSchoolsConcurrently(
	ctx context.Context,
	schoolIDs []string,
	stats *ScoreStats,
	log *slog.Logger,
) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, schoolID := range schoolIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{} // Acquire

		go func(id string) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			res, err := j.scoreSchool(ctx, id, stats.RunID)

			mu.Lock()
			defer mu.Unlock()

			stats.EventsTotal += res.EventsTotal
			stats.EventsSkipped += res.EventsSkipped
			stats.StudentsScored += res.StudentsScored
			stats.StudentsFlagged += res.HighRiskCount
			stats.UpdatesApplied += res.UpdatesApplied
			stats.UpdatesUnmatched += res.UpdatesUnmatched

			if err != nil {
				stats.SchoolsFailed++
				stats.Errors = append(stats.Errors, SchoolError{
					SchoolID:   id,
					Error:      err,
					OccurredAt: time.Now(),
				})
				log.Error("failed to score school",
					"school_id", id,
					"error", err,
				)
				return
			}

			switch res.Outcome {
			case pipeline.OutcomeScored:
				stats.SchoolsScored++
			default:
				stats.SchoolsEmpty++
			}
		}(schoolID)
	}

	wg.Wait()
}

// scoreSchool fetches one school's events, runs the pipeline, records metrics
// and publishes the risk summary.
func (j *ScoreAllSchoolsJob) scoreSchool(ctx context.Context, schoolID, runID string) (pipeline.Result, error) {
	if j.config.SchoolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.SchoolTimeout)
		defer cancel()
	}

	events, err := j.eventRepo.ListBySchool(ctx, schoolID)
	if err != nil {
		metrics.RecordSchoolRun("failed")
		return pipeline.Result{}, fmt.Errorf("failed to fetch events: %w", err)
	}
	metrics.RecordEventsFetched(len(events))

	res, err := j.runner.Run(ctx, schoolID, events)
	if err != nil {
		metrics.RecordSchoolRun("failed")
		return res, err
	}

	metrics.RecordSchoolRun(string(res.Outcome))
	metrics.RecordRunDuration(res.Duration)
	metrics.RecordEventsSkipped(res.EventsSkipped)
	metrics.RecordStudentsScored(res.StudentsScored)
	metrics.RecordStudentsFlagged(res.HighRiskCount)
	metrics.RecordUpdatesApplied(res.UpdatesApplied)
	metrics.RecordUpdatesUnmatched(res.UpdatesUnmatched)

	if j.summaries != nil && res.Outcome == pipeline.OutcomeScored {
		summary := redis.SchoolRiskSummary{
			SchoolID:         schoolID,
			RunID:            runID,
			StudentsScored:   res.StudentsScored,
			UpdatesApplied:   res.UpdatesApplied,
			UpdatesUnmatched: res.UpdatesUnmatched,
			HighRiskCount:    res.HighRiskCount,
			MeanDropoutRisk:  res.MeanDropoutRisk,
			ScoredAt:         time.Now(),
		}
		if err := j.summaries.SetSummary(ctx, summary); err != nil {
			// The cache is advisory; scores are already persisted.
			j.logger.Warn("failed to publish school risk summary",
				"school_id", schoolID,
				"error", err,
			)
		}
	}

	return res, nil
}

// LastRunStats returns statistics from the last job run.
func (j *ScoreAllSchoolsJob) LastRunStats() *ScoreStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ScoreStats)
}
