package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format for attendance dates.
// Attendance is tracked per calendar day in UTC, no time component.
const DateLayout = "2006-01-02"

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
)

// AttendanceRecord is one check-in. At most one record exists per
// (identity, date) pair; the store enforces this with a unique constraint.
type AttendanceRecord struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	IdentityID uuid.UUID        `json:"identity_id" db:"identity_id"`
	Date       time.Time        `json:"-" db:"attended_on"`
	Status     AttendanceStatus `json:"status" db:"status"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EnrollTask is the message published to NATS for async enrollment.
// The worker loads the image from MinIO, extracts the embedding and
// stores the enrollment record.
type EnrollTask struct {
	TaskID     uuid.UUID `json:"task_id"`
	IdentityID uuid.UUID `json:"identity_id"`
	ImageKey   string    `json:"image_key"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CheckinEvent is published after a successful check-in for downstream
// consumers (live feed, audit).
type CheckinEvent struct {
	RecordID   uuid.UUID        `json:"record_id"`
	IdentityID uuid.UUID        `json:"identity_id"`
	Date       string           `json:"date"` // YYYY-MM-DD
	Status     AttendanceStatus `json:"status"`
	Confidence float64          `json:"confidence"`
	CreatedAt  time.Time        `json:"created_at"`
}
