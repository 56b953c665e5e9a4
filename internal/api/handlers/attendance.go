package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/embedding"
	"github.com/your-org/facecheck/internal/ledger"
	"github.com/your-org/facecheck/internal/match"
	"github.com/your-org/facecheck/internal/models"
	"github.com/your-org/facecheck/internal/service"
	"github.com/your-org/facecheck/internal/vision"
	"github.com/your-org/facecheck/pkg/dto"
)

// Verifier is the slice of the verification service this handler needs.
type Verifier interface {
	Verify(ctx context.Context, src embedding.Source, identityID *uuid.UUID) (match.Result, error)
	CheckIn(ctx context.Context, src embedding.Source, date *time.Time) (*models.AttendanceRecord, match.Result, error)
}

type AttendanceHandler struct {
	svc Verifier
}

func NewAttendanceHandler(svc Verifier) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

// CheckIn identifies the submitted face and marks attendance, for today
// unless an explicit date (YYYY-MM-DD) is given. Accepts either a JSON
// body with an embedding or a multipart image.
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var src embedding.Source
	var dateStr string

	if isMultipart(c) {
		var ok bool
		src, ok = readImageSource(c)
		if !ok {
			return
		}
		dateStr = c.PostForm("date")
	} else {
		var req dto.CheckinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		src = embeddingSource(req.Vector, req.Embedding)
		dateStr = req.Date
	}

	var date *time.Time
	if dateStr != "" {
		d, err := time.Parse(models.DateLayout, dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		date = &d
	}

	rec, res, err := h.svc.CheckIn(c.Request.Context(), src, date)
	if err != nil {
		h.writeCheckinError(c, res, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CheckinResponse{
		RecordID:   rec.ID,
		IdentityID: rec.IdentityID,
		Date:       rec.Date.Format(models.DateLayout),
		Status:     string(rec.Status),
		Confidence: res.Confidence,
	})
}

// Verify identifies the submitted face without writing attendance. An
// identity_id scopes the comparison to that identity's enrollments.
func (h *AttendanceHandler) Verify(c *gin.Context) {
	var src embedding.Source
	var identityID *uuid.UUID

	if isMultipart(c) {
		var ok bool
		src, ok = readImageSource(c)
		if !ok {
			return
		}
		if idStr := c.PostForm("identity_id"); idStr != "" {
			id, err := uuid.Parse(idStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity_id"})
				return
			}
			identityID = &id
		}
	} else {
		var req dto.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		src = embeddingSource(req.Vector, req.Embedding)
		identityID = req.IdentityID
	}

	res, err := h.svc.Verify(c.Request.Context(), src, identityID)
	if err != nil {
		h.writeCheckinError(c, res, err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyResponse{
		Matched:      res.Accepted,
		IdentityID:   res.IdentityID,
		EnrollmentID: res.EnrollmentID,
		Confidence:   res.Confidence,
	})
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// readImageSource pulls the multipart "image" file. On failure it
// writes the error response and returns ok=false.
func readImageSource(c *gin.Context) (embedding.Source, bool) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return embedding.Source{}, false
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return embedding.Source{}, false
	}
	return embedding.FromImage(imageData), true
}

func embeddingSource(vector []float64, text string) embedding.Source {
	if len(vector) > 0 {
		return embedding.FromVector(vector)
	}
	return embedding.FromText(text)
}

func (h *AttendanceHandler) writeCheckinError(c *gin.Context, res match.Result, err error) {
	switch {
	case errors.Is(err, embedding.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, embedding.ErrNoExtractor):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, vision.ErrNoFaceDetected), errors.Is(err, vision.ErrMultipleFacesDetected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoFaceRecognized):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "no matching identity found",
			"confidence": res.Confidence,
		})
	case errors.Is(err, ledger.ErrDuplicateCheckin):
		body := gin.H{"error": "attendance already recorded for this date"}
		if res.IdentityID != nil {
			body["identity_id"] = res.IdentityID
			body["confidence"] = res.Confidence
		}
		c.JSON(http.StatusConflict, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
