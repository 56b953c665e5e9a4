package models

import (
	"time"

	"github.com/google/uuid"
)

type Identity struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ExternalRef string    `json:"external_ref,omitempty" db:"external_ref"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// EnrollmentRecord binds one face embedding to an identity. Records are
// immutable; an identity may own any number of them and all participate
// in matching.
type EnrollmentRecord struct {
	ID         uuid.UUID `json:"id" db:"id"`
	IdentityID uuid.UUID `json:"identity_id" db:"identity_id"`
	Embedding  []float64 `json:"-" db:"embedding"`
	SourceKey  string    `json:"source_key,omitempty" db:"source_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
