package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/smart-attendance/dropout-radar/internal/domain/attendance"
)

// AttendanceRepository implements attendance.EventRepository for PostgreSQL.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

// ListBySchool returns every attendance event recorded for the school.
//
// date_raw comes back as the raw string the app wrote, time_in as a typed
// timestamp; both are handed to the domain untouched so that date
// normalization stays a single, testable code path.
func (r *AttendanceRepository) ListBySchool(ctx context.Context, schoolID string) ([]attendance.Event, error) {
	query := `
		SELECT student_id, status, date_raw, time_in
		FROM attendance_events
		WHERE school_id = $1
	`

	rows, err := r.conn.Query(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance events for school %s: %w", schoolID, err)
	}
	defer rows.Close()

	var events []attendance.Event
	for rows.Next() {
		var (
			studentID string
			status    string
			dateRaw   *string
			timeIn    *time.Time
		)
		if err := rows.Scan(&studentID, &status, &dateRaw, &timeIn); err != nil {
			return nil, fmt.Errorf("failed to scan attendance event: %w", err)
		}

		e := attendance.Event{StudentID: studentID, Status: status}
		if dateRaw != nil {
			e.Date = *dateRaw
		}
		if timeIn != nil {
			e.TimeIn = *timeIn
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// ListSchoolIDs enumerates the distinct schools present in the event feed.
func (r *AttendanceRepository) ListSchoolIDs(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT school_id FROM attendance_events ORDER BY school_id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list school ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan school id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
