package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/models"
	"github.com/your-org/facecheck/internal/storage"
	"github.com/your-org/facecheck/pkg/dto"
)

const timeLayout = "2006-01-02T15:04:05Z"

type IdentityHandler struct {
	db *storage.PostgresStore
}

func NewIdentityHandler(db *storage.PostgresStore) *IdentityHandler {
	return &IdentityHandler{db: db}
}

func (h *IdentityHandler) Create(c *gin.Context) {
	var req dto.CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ident, err := h.db.CreateIdentity(c.Request.Context(), req.Name, req.ExternalRef)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto.IdentityResponse{
		ID:          ident.ID,
		Name:        ident.Name,
		ExternalRef: ident.ExternalRef,
		CreatedAt:   ident.CreatedAt.Format(timeLayout),
	})
}

func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.db.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(identities))
	for _, ident := range identities {
		count, _ := h.db.CountEnrollments(c.Request.Context(), ident.ID)
		resp = append(resp, dto.IdentityResponse{
			ID:              ident.ID,
			Name:            ident.Name,
			ExternalRef:     ident.ExternalRef,
			EnrollmentCount: count,
			CreatedAt:       ident.CreatedAt.Format(timeLayout),
		})
	}

	c.JSON(http.StatusOK, gin.H{"identities": resp, "total": len(resp)})
}

func (h *IdentityHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}

	count, _ := h.db.CountEnrollments(c.Request.Context(), id)

	c.JSON(http.StatusOK, dto.IdentityResponse{
		ID:              ident.ID,
		Name:            ident.Name,
		ExternalRef:     ident.ExternalRef,
		EnrollmentCount: count,
		CreatedAt:       ident.CreatedAt.Format(timeLayout),
	})
}

// AttendanceHistory lists the identity's attendance records, newest first.
func (h *IdentityHandler) AttendanceHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity id"})
		return
	}

	ident, err := h.db.GetIdentity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
		return
	}

	records, err := h.db.SelectAttendanceHistory(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AttendanceRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, dto.AttendanceRecordResponse{
			ID:         rec.ID,
			IdentityID: rec.IdentityID,
			Date:       rec.Date.Format(models.DateLayout),
			Status:     string(rec.Status),
			CreatedAt:  rec.CreatedAt.Format(timeLayout),
		})
	}

	c.JSON(http.StatusOK, gin.H{"records": resp, "total": len(resp)})
}
