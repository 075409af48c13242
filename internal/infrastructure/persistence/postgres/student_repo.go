package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/smart-attendance/dropout-radar/internal/domain/risk"
)

// StudentRepository implements risk.StudentStore for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// MergeRiskFields merges the risk fields into the student row keyed by
// studentID. The statement is a plain UPDATE, never an INSERT: scored
// identifiers without a student record are reported as matched=false and the
// caller decides what to log. Re-applying the same update is idempotent.
func (r *StudentRepository) MergeRiskFields(ctx context.Context, studentID string, u risk.RiskUpdate) (bool, error) {
	query := `
		UPDATE students SET
			attendance_percentage = $1,
			max_consec_absences = $2,
			num_long_streaks = $3,
			dropout_risk = $4,
			dropout_pred = $5,
			risk_scored_at = $6,
			updated_at = NOW()
		WHERE id = $7
	`

	tag, err := r.conn.Exec(ctx, query,
		u.AttendancePercentage,
		u.MaxConsecAbsences,
		u.NumLongStreaks,
		u.DropoutRisk,
		u.DropoutPred,
		time.Now().UTC(),
		studentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to merge risk fields for student %s: %w", studentID, err)
	}

	return tag.RowsAffected() > 0, nil
}

// Exists reports whether a student record with the given key exists.
func (r *StudentRepository) Exists(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student %s: %w", studentID, err)
	}
	return exists, nil
}

// CountScoredBySchool returns how many students of a school carry a risk score.
func (r *StudentRepository) CountScoredBySchool(ctx context.Context, schoolID string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE school_id = $1 AND dropout_risk IS NOT NULL`,
		schoolID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count scored students for school %s: %w", schoolID, err)
	}
	return n, nil
}
