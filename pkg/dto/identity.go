package dto

import "github.com/google/uuid"

type CreateIdentityRequest struct {
	Name        string `json:"name" binding:"required"`
	ExternalRef string `json:"external_ref"`
}

type IdentityResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	ExternalRef     string    `json:"external_ref,omitempty"`
	EnrollmentCount int       `json:"enrollment_count"`
	CreatedAt       string    `json:"created_at"`
}
