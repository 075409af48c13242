// Package postgres implements the PostgreSQL persistence layer for Dropout Radar.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

-- Student records owned by the attendance platform. The primary key is the
-- identifier the mobile app stamps on attendance events; the risk pipeline
-- relies on that equality when merging fields.
CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    school_id TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    class_name TEXT NOT NULL DEFAULT '',

    -- Risk fields merged in by the scoring pipeline. NULL = never scored.
    attendance_percentage DOUBLE PRECISION,
    max_consec_absences INTEGER,
    num_long_streaks INTEGER,
    dropout_risk DOUBLE PRECISION,
    dropout_pred SMALLINT,
    risk_scored_at TIMESTAMP WITH TIME ZONE,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_attendance_percentage CHECK (
        attendance_percentage IS NULL OR (attendance_percentage >= 0 AND attendance_percentage <= 100)
    ),
    CONSTRAINT valid_dropout_risk CHECK (
        dropout_risk IS NULL OR (dropout_risk >= 0 AND dropout_risk <= 1)
    ),
    CONSTRAINT valid_dropout_pred CHECK (
        dropout_pred IS NULL OR dropout_pred IN (0, 1)
    ),
    CONSTRAINT valid_max_consec_absences CHECK (
        max_consec_absences IS NULL OR max_consec_absences >= 0
    ),
    CONSTRAINT valid_num_long_streaks CHECK (
        num_long_streaks IS NULL OR num_long_streaks >= 0
    )
);

CREATE INDEX IF NOT EXISTS idx_students_school_id ON students(school_id);
CREATE INDEX IF NOT EXISTS idx_students_dropout_risk ON students(dropout_risk DESC)
    WHERE dropout_risk IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_students_school_risk ON students(school_id, dropout_risk DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ATTENDANCE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create attendance_events table
-- Version: 002

-- Raw per-event attendance feed as written by the mobile app. Legacy app
-- versions wrote free-form ISO date strings into date_raw; newer versions
-- write a typed check-in timestamp into time_in. Either may be missing,
-- which is why the pipeline normalizes rather than trusting the schema.
CREATE TABLE IF NOT EXISTS attendance_events (
    id BIGSERIAL PRIMARY KEY,
    school_id TEXT NOT NULL,
    student_id TEXT NOT NULL,
    status TEXT NOT NULL,
    date_raw TEXT,
    time_in TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_attendance_events_school ON attendance_events(school_id);
CREATE INDEX IF NOT EXISTS idx_attendance_events_student ON attendance_events(student_id);
CREATE INDEX IF NOT EXISTS idx_attendance_events_school_student
    ON attendance_events(school_id, student_id);
`

const migration002Down = `
DROP TABLE IF EXISTS attendance_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_attendance_events",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
