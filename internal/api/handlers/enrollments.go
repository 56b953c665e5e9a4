package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/embedding"
	"github.com/your-org/facecheck/internal/models"
	"github.com/your-org/facecheck/internal/service"
	"github.com/your-org/facecheck/internal/storage"
	"github.com/your-org/facecheck/internal/vision"
	"github.com/your-org/facecheck/pkg/dto"
)

// Enroller is the slice of the verification service this handler needs.
// Removal goes through the service too, so the gallery cache and stored
// photos stay consistent with the database.
type Enroller interface {
	Enroll(ctx context.Context, identityID uuid.UUID, src embedding.Source, sourceKey string) (*models.EnrollmentRecord, error)
	RemoveEnrollment(ctx context.Context, identityID, enrollmentID uuid.UUID) error
	RemoveAllEnrollments(ctx context.Context, identityID uuid.UUID) (int, error)
}

// TaskPublisher enqueues async enrollment tasks.
type TaskPublisher interface {
	PublishEnrollTask(ctx context.Context, identityID string, data interface{}) error
}

type EnrollmentHandler struct {
	svc      Enroller
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer TaskPublisher
}

func NewEnrollmentHandler(svc Enroller, db *storage.PostgresStore, minio *storage.MinIOStore, producer TaskPublisher) *EnrollmentHandler {
	return &EnrollmentHandler{svc: svc, db: db, minio: minio, producer: producer}
}

// Create enrolls an already-computed embedding inline. Images go through
// Upload instead.
func (h *EnrollmentHandler) Create(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	var req dto.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var src embedding.Source
	switch {
	case len(req.Vector) > 0:
		src = embedding.FromVector(req.Vector)
	default:
		src = embedding.FromText(req.Embedding)
	}

	rec, err := h.svc.Enroll(c.Request.Context(), identityID, src, "")
	if err != nil {
		writeEnrollError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.EnrollmentResponse{
		ID:         rec.ID,
		IdentityID: rec.IdentityID,
		SourceKey:  rec.SourceKey,
		CreatedAt:  rec.CreatedAt.Format(timeLayout),
	})
}

// Upload accepts a multipart face photograph, stores it and enqueues an
// extraction task for the worker. Responds 202; the enrollment record
// appears once the worker finishes.
func (h *EnrollmentHandler) Upload(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), identityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	taskID := uuid.New()
	imageKey := "faces/" + identityID.String() + "/" + taskID.String() + "_" + header.Filename
	if err := h.minio.PutObject(c.Request.Context(), imageKey, imageData, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
		return
	}

	task := models.EnrollTask{
		TaskID:     taskID,
		IdentityID: identityID,
		ImageKey:   imageKey,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.producer.PublishEnrollTask(c.Request.Context(), identityID.String(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue enrollment failed"})
		return
	}

	c.JSON(http.StatusAccepted, dto.EnrollTaskResponse{
		TaskID:     taskID,
		IdentityID: identityID,
		ImageKey:   imageKey,
		Status:     "queued",
	})
}

func (h *EnrollmentHandler) List(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	records, err := h.db.SelectEnrollmentsByIdentity(c.Request.Context(), identityID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EnrollmentResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, dto.EnrollmentResponse{
			ID:         rec.ID,
			IdentityID: rec.IdentityID,
			SourceKey:  rec.SourceKey,
			CreatedAt:  rec.CreatedAt.Format(timeLayout),
		})
	}

	c.JSON(http.StatusOK, gin.H{"enrollments": resp, "total": len(resp)})
}

func (h *EnrollmentHandler) Delete(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}
	enrollmentID, err := uuid.Parse(c.Param("enrollmentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enrollment id"})
		return
	}

	if err := h.svc.RemoveEnrollment(c.Request.Context(), identityID, enrollmentID); err != nil {
		if errors.Is(err, service.ErrEnrollmentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "enrollment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// DeleteAll removes every enrollment of the identity.
func (h *EnrollmentHandler) DeleteAll(c *gin.Context) {
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	count, err := h.svc.RemoveAllEnrollments(c.Request.Context(), identityID)
	if err != nil {
		if errors.Is(err, service.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "deleted": count})
}

func writeEnrollError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrIdentityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
	case errors.Is(err, embedding.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, embedding.ErrNoExtractor):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, vision.ErrNoFaceDetected), errors.Is(err, vision.ErrMultipleFacesDetected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
