package dto

import "github.com/google/uuid"

// CreateEnrollmentRequest carries an already-computed embedding, either
// as a plain vector or in its textual form (JSON array literal or
// comma-separated floats). Exactly one should be set; Vector wins if
// both are.
type CreateEnrollmentRequest struct {
	Vector    []float64 `json:"vector"`
	Embedding string    `json:"embedding"`
}

type EnrollmentResponse struct {
	ID         uuid.UUID `json:"id"`
	IdentityID uuid.UUID `json:"identity_id"`
	SourceKey  string    `json:"source_key,omitempty"`
	CreatedAt  string    `json:"created_at"`
}

// EnrollTaskResponse acknowledges an async image enrollment. The
// extraction happens on a worker; poll the enrollments list to see the
// result.
type EnrollTaskResponse struct {
	TaskID     uuid.UUID `json:"task_id"`
	IdentityID uuid.UUID `json:"identity_id"`
	ImageKey   string    `json:"image_key"`
	Status     string    `json:"status"`
}
