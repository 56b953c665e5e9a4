package gallery

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/models"
	"github.com/your-org/facecheck/internal/observability"
)

// Store loads enrollment records from persistence. Both methods must
// return records in stable enrollment order (oldest first); the
// matcher's tie-break depends on it.
type Store interface {
	SelectAllEnrollments(ctx context.Context) ([]models.EnrollmentRecord, error)
	SelectEnrollmentsByIdentity(ctx context.Context, identityID uuid.UUID) ([]models.EnrollmentRecord, error)
}

// Cache is an optional read-through layer in front of Store. A nil
// Cache is valid: every load goes to the store.
type Cache interface {
	GetAll(ctx context.Context) ([]models.EnrollmentRecord, bool)
	SetAll(ctx context.Context, records []models.EnrollmentRecord)
	GetForIdentity(ctx context.Context, identityID uuid.UUID) ([]models.EnrollmentRecord, bool)
	SetForIdentity(ctx context.Context, identityID uuid.UUID, records []models.EnrollmentRecord)
	Invalidate(ctx context.Context, identityID uuid.UUID)
}

// Gallery is the read path for enrollment embeddings.
type Gallery struct {
	store Store
	cache Cache
}

func New(store Store, cache Cache) *Gallery {
	return &Gallery{store: store, cache: cache}
}

// LoadAll returns every enrollment record, cache first.
func (g *Gallery) LoadAll(ctx context.Context) ([]models.EnrollmentRecord, error) {
	if g.cache != nil {
		if records, ok := g.cache.GetAll(ctx); ok {
			return records, nil
		}
	}

	records, err := g.store.SelectAllEnrollments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}
	observability.GallerySize.Set(float64(len(records)))

	if g.cache != nil {
		g.cache.SetAll(ctx, records)
	}
	return records, nil
}

// LoadForIdentity returns one identity's enrollment records, cache first.
func (g *Gallery) LoadForIdentity(ctx context.Context, identityID uuid.UUID) ([]models.EnrollmentRecord, error) {
	if g.cache != nil {
		if records, ok := g.cache.GetForIdentity(ctx, identityID); ok {
			return records, nil
		}
	}

	records, err := g.store.SelectEnrollmentsByIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("load identity gallery: %w", err)
	}

	if g.cache != nil {
		g.cache.SetForIdentity(ctx, identityID, records)
	}
	return records, nil
}

// Invalidate drops cached entries after an enrollment write.
func (g *Gallery) Invalidate(ctx context.Context, identityID uuid.UUID) {
	if g.cache != nil {
		g.cache.Invalidate(ctx, identityID)
	}
}
