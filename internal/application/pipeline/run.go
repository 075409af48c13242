// Package pipeline composes the dropout-risk scoring pipeline for one school:
// raw attendance events -> presence matrix -> engineered features ->
// classifier scores -> persisted student updates.
//
// The pipeline is single-threaded and synchronous; parallelism, if any,
// happens across schools in the scheduler job. Nothing here retries: store
// failures propagate to the caller, degenerate inputs short-circuit.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smart-attendance/dropout-radar/internal/domain/attendance"
	"github.com/smart-attendance/dropout-radar/internal/domain/risk"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUNNER
// ══════════════════════════════════════════════════════════════════════════════

// Runner executes the scoring pipeline for one school at a time.
// The classifier is constructed once at process start and is read-only here.
type Runner struct {
	classifier risk.Classifier
	store      risk.StudentStore
	logger     *slog.Logger
}

// NewRunner creates a pipeline runner.
func NewRunner(classifier risk.Classifier, store risk.StudentStore, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		classifier: classifier,
		store:      store,
		logger:     logger,
	}
}

// Outcome describes how a school's run ended.
type Outcome string

const (
	// OutcomeScored means scores were produced and persistence was attempted.
	OutcomeScored Outcome = "scored"

	// OutcomeNoEvents means the school had no attendance events at all.
	OutcomeNoEvents Outcome = "no_events"

	// OutcomeNoFeatures means events existed but no school day had a single
	// presence, so no features could be derived.
	OutcomeNoFeatures Outcome = "no_features"
)

// Result contains counters from one school's run.
type Result struct {
	SchoolID string
	Outcome  Outcome

	// EventsTotal is the number of raw events fed in.
	EventsTotal int

	// EventsSkipped is the number of events dropped for lacking a usable date.
	EventsSkipped int

	// ValidDays is the number of school days in the presence matrix.
	ValidDays int

	// StudentsScored is the number of students the classifier scored.
	StudentsScored int

	// UpdatesApplied is the number of student records the store matched and
	// merged. Unmatched identifiers are store-level no-ops, counted below.
	UpdatesApplied int

	// UpdatesUnmatched is the number of scored students with no record in
	// the store. The merge never creates records; see risk.StudentStore.
	UpdatesUnmatched int

	// HighRiskCount is the number of students the classifier labeled 1.
	HighRiskCount int

	// MeanDropoutRisk is the mean predicted probability across scored
	// students, 0 when nobody was scored.
	MeanDropoutRisk float64

	Duration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// Run scores one school's attendance events and persists the results.
//
// Degenerate inputs (no events, no derivable features) end the run early with
// a diagnostic and zero persisted updates; they are not errors. Schema
// mismatch and store failures are returned to the caller and fail the
// school's run without affecting other schools.
func (r *Runner) Run(ctx context.Context, schoolID string, events []attendance.Event) (Result, error) {
	started := time.Now()
	log := r.logger.With("school_id", schoolID)

	res := Result{SchoolID: schoolID, EventsTotal: len(events)}

	if len(events) == 0 {
		res.Outcome = OutcomeNoEvents
		res.Duration = time.Since(started)
		log.Warn("no attendance events for school, skipping run")
		return res, nil
	}

	log.Info("running dropout predictions", "events", len(events))

	matrix, skipped := attendance.BuildMatrix(events)
	res.EventsSkipped = len(skipped)
	res.ValidDays = matrix.NumDays()
	for _, s := range skipped {
		log.Warn("skipping event with unusable date",
			"student_id", s.Event.StudentID,
			"reason", s.Reason.Error(),
		)
	}
	log.Info("built presence matrix",
		"valid_days", matrix.NumDays(),
		"students", matrix.NumStudents(),
	)

	features := risk.ExtractFeatures(matrix)
	if len(features) == 0 {
		res.Outcome = OutcomeNoFeatures
		res.Duration = time.Since(started)
		log.Warn("no features generated for school, skipping run")
		return res, nil
	}

	records, err := risk.Score(features, r.classifier, schoolID)
	if err != nil {
		res.Duration = time.Since(started)
		return res, fmt.Errorf("pipeline: score school %s: %w", schoolID, err)
	}
	res.StudentsScored = len(records)

	var riskSum float64
	for _, rec := range records {
		riskSum += rec.DropoutProb
		if rec.DropoutPred == 1 {
			res.HighRiskCount++
		}
	}
	res.MeanDropoutRisk = riskSum / float64(len(records))

	applied, unmatched, err := r.persist(ctx, records, log)
	res.UpdatesApplied = applied
	res.UpdatesUnmatched = unmatched
	if err != nil {
		res.Duration = time.Since(started)
		return res, fmt.Errorf("pipeline: persist school %s: %w", schoolID, err)
	}

	res.Outcome = OutcomeScored
	res.Duration = time.Since(started)
	log.Info("updated students with predictions",
		"updated", res.UpdatesApplied,
		"unmatched", res.UpdatesUnmatched,
	)
	return res, nil
}

// persist issues one independent, idempotent field-merge per scored student.
// The first store error aborts the loop; already-applied merges stay applied,
// which is safe because every merge is independently idempotent.
func (r *Runner) persist(ctx context.Context, records []risk.ScoredRecord, log *slog.Logger) (applied, unmatched int, err error) {
	for _, rec := range records {
		matched, err := r.store.MergeRiskFields(ctx, rec.StudentID, rec.Update())
		if err != nil {
			return applied, unmatched, fmt.Errorf("merge risk fields for student %s: %w", rec.StudentID, err)
		}
		if !matched {
			unmatched++
			log.Warn("no student record for scored identifier, update skipped",
				"student_id", rec.StudentID,
			)
			continue
		}
		applied++
	}
	return applied, unmatched, nil
}
