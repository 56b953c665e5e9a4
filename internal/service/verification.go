package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/embedding"
	"github.com/your-org/facecheck/internal/ledger"
	"github.com/your-org/facecheck/internal/match"
	"github.com/your-org/facecheck/internal/models"
	"github.com/your-org/facecheck/internal/observability"
)

var (
	// ErrNoFaceRecognized means the submitted embedding was valid but no
	// gallery identity cleared the acceptance threshold.
	ErrNoFaceRecognized = errors.New("no matching identity found")

	// ErrIdentityNotFound marks an operation against an unknown identity.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrEnrollmentNotFound marks a removal of an enrollment that does
	// not exist (or belongs to a different identity).
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

// GalleryLoader is the gallery read path plus cache invalidation.
type GalleryLoader interface {
	LoadAll(ctx context.Context) ([]models.EnrollmentRecord, error)
	LoadForIdentity(ctx context.Context, identityID uuid.UUID) ([]models.EnrollmentRecord, error)
	Invalidate(ctx context.Context, identityID uuid.UUID)
}

// Store is the persistence surface for enrollment writes.
type Store interface {
	GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	InsertEnrollment(ctx context.Context, identityID uuid.UUID, emb []float64, sourceKey string) (*models.EnrollmentRecord, error)
	DeleteEnrollment(ctx context.Context, identityID, enrollmentID uuid.UUID) (string, bool, error)
	DeleteEnrollmentsByIdentity(ctx context.Context, identityID uuid.UUID) ([]string, error)
}

// Blobs removes stored source photographs. May be nil; blob cleanup is
// best effort either way.
type Blobs interface {
	DeleteObject(ctx context.Context, key string) error
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// EventPublisher fans successful check-ins out to live subscribers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, identityID string, data interface{}) error
}

// Verification orchestrates enrollment, identification and check-in.
// Input resolution always happens before any gallery or ledger access,
// so malformed input fails fast without touching storage.
type Verification struct {
	codec   *embedding.Codec
	gallery GalleryLoader
	matcher *match.Matcher
	ledger  *ledger.Ledger
	store   Store
	blobs   Blobs          // may be nil
	events  EventPublisher // may be nil
	now     func() time.Time
}

func NewVerification(codec *embedding.Codec, gal GalleryLoader, matcher *match.Matcher, led *ledger.Ledger, store Store, blobs Blobs, events EventPublisher) *Verification {
	return &Verification{
		codec:   codec,
		gallery: gal,
		matcher: matcher,
		ledger:  led,
		store:   store,
		blobs:   blobs,
		events:  events,
		now:     time.Now,
	}
}

// Enroll resolves the source into an embedding and stores it for the
// identity. The identity must already exist.
func (v *Verification) Enroll(ctx context.Context, identityID uuid.UUID, src embedding.Source, sourceKey string) (*models.EnrollmentRecord, error) {
	emb, err := v.codec.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}

	ident, err := v.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	if ident == nil {
		return nil, ErrIdentityNotFound
	}

	rec, err := v.store.InsertEnrollment(ctx, identityID, emb, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}

	v.gallery.Invalidate(ctx, identityID)
	observability.EnrollmentsCreated.Inc()
	slog.Info("enrollment created", "identity", identityID, "enrollment", rec.ID)
	return rec, nil
}

// RemoveEnrollment deletes one enrollment record, drops the cached
// gallery so the face stops matching immediately, and removes the
// stored source photo if one exists.
func (v *Verification) RemoveEnrollment(ctx context.Context, identityID, enrollmentID uuid.UUID) error {
	sourceKey, found, err := v.store.DeleteEnrollment(ctx, identityID, enrollmentID)
	if err != nil {
		return fmt.Errorf("remove enrollment: %w", err)
	}
	if !found {
		return ErrEnrollmentNotFound
	}

	v.gallery.Invalidate(ctx, identityID)

	if v.blobs != nil && sourceKey != "" {
		if err := v.blobs.DeleteObject(ctx, sourceKey); err != nil {
			slog.Warn("delete enrollment photo", "key", sourceKey, "error", err)
		}
	}

	slog.Info("enrollment removed", "identity", identityID, "enrollment", enrollmentID)
	return nil
}

// RemoveAllEnrollments deletes every enrollment of the identity and
// returns how many were removed. The identity's whole photo prefix is
// swept, which also collects uploads whose extraction never finished.
func (v *Verification) RemoveAllEnrollments(ctx context.Context, identityID uuid.UUID) (int, error) {
	ident, err := v.store.GetIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("remove enrollments: %w", err)
	}
	if ident == nil {
		return 0, ErrIdentityNotFound
	}

	keys, err := v.store.DeleteEnrollmentsByIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("remove enrollments: %w", err)
	}

	v.gallery.Invalidate(ctx, identityID)

	if v.blobs != nil {
		prefix := "faces/" + identityID.String() + "/"
		objects, err := v.blobs.ListObjects(ctx, prefix)
		if err != nil {
			slog.Warn("list enrollment photos", "prefix", prefix, "error", err)
		} else {
			for _, key := range objects {
				if err := v.blobs.DeleteObject(ctx, key); err != nil {
					slog.Warn("delete enrollment photo", "key", key, "error", err)
				}
			}
		}
	}

	slog.Info("enrollments removed", "identity", identityID, "count", len(keys))
	return len(keys), nil
}

// Verify identifies the submitted face without touching the attendance
// ledger. With identityID set the scan is scoped to that identity's
// enrollments (1:1 verification); otherwise the full gallery is
// searched (1:N). The result carries the best confidence even when
// nothing is accepted.
func (v *Verification) Verify(ctx context.Context, src embedding.Source, identityID *uuid.UUID) (match.Result, error) {
	query, err := v.codec.Resolve(ctx, src)
	if err != nil {
		return match.Result{}, err
	}

	var records []models.EnrollmentRecord
	if identityID != nil {
		records, err = v.gallery.LoadForIdentity(ctx, *identityID)
	} else {
		records, err = v.gallery.LoadAll(ctx)
	}
	if err != nil {
		return match.Result{}, fmt.Errorf("verify: %w", err)
	}

	start := time.Now()
	res, err := v.matcher.FindBest(query, records)
	observability.MatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return match.Result{}, err
	}
	return res, nil
}

// CheckIn identifies the submitted face against the full gallery and, on
// acceptance, records attendance for the matched identity. date is
// optional and defaults to today. A repeat check-in for the same day
// returns ledger.ErrDuplicateCheckin together with the match result, so
// the caller can still tell the user who was recognized.
func (v *Verification) CheckIn(ctx context.Context, src embedding.Source, date *time.Time) (*models.AttendanceRecord, match.Result, error) {
	res, err := v.Verify(ctx, src, nil)
	if err != nil {
		if errors.Is(err, embedding.ErrInvalidFormat) {
			observability.CheckinAttempts.WithLabelValues("invalid").Inc()
		} else {
			observability.CheckinAttempts.WithLabelValues("error").Inc()
		}
		return nil, match.Result{}, err
	}

	if !res.Accepted {
		observability.CheckinAttempts.WithLabelValues("unrecognized").Inc()
		slog.Info("check-in rejected", "confidence", res.Confidence)
		return nil, res, ErrNoFaceRecognized
	}

	at := v.now()
	if date != nil {
		at = *date
	}

	rec, err := v.ledger.Record(ctx, *res.IdentityID, at, models.StatusPresent)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateCheckin) {
			observability.CheckinAttempts.WithLabelValues("duplicate").Inc()
			return nil, res, err
		}
		observability.CheckinAttempts.WithLabelValues("error").Inc()
		return nil, res, err
	}

	observability.CheckinAttempts.WithLabelValues("ok").Inc()
	slog.Info("check-in recorded", "identity", rec.IdentityID, "date", rec.Date.Format(models.DateLayout), "confidence", res.Confidence)

	if v.events != nil {
		event := models.CheckinEvent{
			RecordID:   rec.ID,
			IdentityID: rec.IdentityID,
			Date:       rec.Date.Format(models.DateLayout),
			Status:     rec.Status,
			Confidence: res.Confidence,
			CreatedAt:  rec.CreatedAt,
		}
		if err := v.events.PublishEvent(ctx, rec.IdentityID.String(), event); err != nil {
			// The check-in is already durable; the live feed is best effort.
			slog.Warn("publish check-in event", "error", err)
		}
	}

	return rec, res, nil
}
