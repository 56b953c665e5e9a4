package dto

import "github.com/google/uuid"

// CheckinRequest identifies a face and marks attendance. The embedding
// may come as a plain vector or textual form; an image goes through the
// multipart endpoint instead. Date is optional (YYYY-MM-DD) and
// defaults to today.
type CheckinRequest struct {
	Vector    []float64 `json:"vector"`
	Embedding string    `json:"embedding"`
	Date      string    `json:"date"`
}

// VerifyRequest identifies a face without writing attendance. When
// IdentityID is set the face is verified against that identity's
// enrollments only (1:1); otherwise against the full gallery (1:N).
type VerifyRequest struct {
	Vector     []float64  `json:"vector"`
	Embedding  string     `json:"embedding"`
	IdentityID *uuid.UUID `json:"identity_id"`
}

type CheckinResponse struct {
	RecordID   uuid.UUID `json:"record_id"`
	IdentityID uuid.UUID `json:"identity_id"`
	Name       string    `json:"name,omitempty"`
	Date       string    `json:"date"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
}

// VerifyResponse reports identification without touching the ledger.
// IdentityID is nil when nothing cleared the threshold; Confidence
// still carries the best similarity seen.
type VerifyResponse struct {
	Matched      bool       `json:"matched"`
	IdentityID   *uuid.UUID `json:"identity_id,omitempty"`
	EnrollmentID *uuid.UUID `json:"enrollment_id,omitempty"`
	Confidence   float64    `json:"confidence"`
}

type AttendanceRecordResponse struct {
	ID         uuid.UUID `json:"id"`
	IdentityID uuid.UUID `json:"identity_id"`
	Date       string    `json:"date"`
	Status     string    `json:"status"`
	CreatedAt  string    `json:"created_at"`
}

// WSEvent is the frame sent to WebSocket subscribers on a successful
// check-in.
type WSEvent struct {
	Type       string          `json:"type"`
	IdentityID uuid.UUID       `json:"identity_id"`
	Data       CheckinResponse `json:"data"`
}
