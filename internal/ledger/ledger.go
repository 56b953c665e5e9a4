package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/models"
)

// ErrDuplicateCheckin means attendance for the identity on that date is
// already recorded. The first record always wins; repeats are rejected.
var ErrDuplicateCheckin = errors.New("attendance already recorded for this date")

// Store is the persistence surface the ledger needs. The
// insert-if-absent contract is what makes concurrent duplicate
// check-ins safe: exactly one caller observes inserted=true.
type Store interface {
	InsertAttendanceIfAbsent(ctx context.Context, identityID uuid.UUID, date time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, bool, error)
	SelectAttendance(ctx context.Context, identityID uuid.UUID, date time.Time) (*models.AttendanceRecord, error)
	SelectAttendanceHistory(ctx context.Context, identityID uuid.UUID) ([]models.AttendanceRecord, error)
}

// Ledger enforces the one-check-in-per-identity-per-day rule.
type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Record marks the identity present on the calendar day of at. If a
// record for that day already exists, it returns ErrDuplicateCheckin.
func (l *Ledger) Record(ctx context.Context, identityID uuid.UUID, at time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	rec, inserted, err := l.store.InsertAttendanceIfAbsent(ctx, identityID, at, status)
	if err != nil {
		return nil, fmt.Errorf("record attendance: %w", err)
	}
	if !inserted {
		return nil, ErrDuplicateCheckin
	}
	return rec, nil
}

// Lookup returns the attendance record for the identity on the calendar
// day of at, or nil if none exists.
func (l *Ledger) Lookup(ctx context.Context, identityID uuid.UUID, at time.Time) (*models.AttendanceRecord, error) {
	return l.store.SelectAttendance(ctx, identityID, at)
}

// History returns all attendance records for the identity, newest first.
func (l *Ledger) History(ctx context.Context, identityID uuid.UUID) ([]models.AttendanceRecord, error) {
	return l.store.SelectAttendanceHistory(ctx, identityID)
}
