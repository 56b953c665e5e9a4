package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/embedding"
	"github.com/your-org/facecheck/internal/ledger"
	"github.com/your-org/facecheck/internal/match"
	"github.com/your-org/facecheck/internal/models"
	"github.com/your-org/facecheck/internal/service"
)

type fakeVerifier struct {
	rec *models.AttendanceRecord
	res match.Result
	err error

	gotIdentityID *uuid.UUID
	gotDate       *time.Time
}

func (f *fakeVerifier) Verify(_ context.Context, _ embedding.Source, identityID *uuid.UUID) (match.Result, error) {
	f.gotIdentityID = identityID
	return f.res, f.err
}

func (f *fakeVerifier) CheckIn(_ context.Context, _ embedding.Source, date *time.Time) (*models.AttendanceRecord, match.Result, error) {
	f.gotDate = date
	return f.rec, f.res, f.err
}

func newTestRouter(svc Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAttendanceHandler(svc)
	r.POST("/attendance/check-in", h.CheckIn)
	r.POST("/verify", h.Verify)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckInSuccess(t *testing.T) {
	identityID := uuid.New()
	enrollmentID := uuid.New()
	rec := &models.AttendanceRecord{
		ID:         uuid.New(),
		IdentityID: identityID,
		Date:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:     models.StatusPresent,
	}
	svc := &fakeVerifier{
		rec: rec,
		res: match.Result{IdentityID: &identityID, EnrollmentID: &enrollmentID, Confidence: 0.92, Accepted: true},
	}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/attendance/check-in", `{"embedding":"0.1,0.2"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["identity_id"] != identityID.String() {
		t.Errorf("identity_id = %v, want %v", resp["identity_id"], identityID)
	}
	if resp["date"] != "2024-03-15" {
		t.Errorf("date = %v, want 2024-03-15", resp["date"])
	}
	if resp["status"] != "present" {
		t.Errorf("status = %v, want present", resp["status"])
	}
	if svc.gotDate != nil {
		t.Errorf("no date in request must reach the service as nil, got %v", svc.gotDate)
	}
}

func TestCheckInWithExplicitDate(t *testing.T) {
	identityID := uuid.New()
	svc := &fakeVerifier{
		rec: &models.AttendanceRecord{
			ID:         uuid.New(),
			IdentityID: identityID,
			Date:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Status:     models.StatusPresent,
		},
		res: match.Result{IdentityID: &identityID, Confidence: 0.9, Accepted: true},
	}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/attendance/check-in", `{"embedding":"0.1","date":"2025-01-01"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if svc.gotDate == nil {
		t.Fatal("date must be passed through to the service")
	}
	if got := svc.gotDate.Format(models.DateLayout); got != "2025-01-01" {
		t.Errorf("date = %s, want 2025-01-01", got)
	}
}

func TestCheckInBadDate(t *testing.T) {
	svc := &fakeVerifier{}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/attendance/check-in", `{"embedding":"0.1","date":"01/02/2025"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if svc.gotDate != nil {
		t.Error("malformed date must not reach the service")
	}
}

func TestCheckInInvalidEmbedding(t *testing.T) {
	svc := &fakeVerifier{err: embedding.ErrInvalidFormat}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/attendance/check-in", `{"embedding":"garbage"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCheckInUnrecognized(t *testing.T) {
	svc := &fakeVerifier{
		res: match.Result{Confidence: 0.31},
		err: service.ErrNoFaceRecognized,
	}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/attendance/check-in", `{"embedding":"0.1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["confidence"] != 0.31 {
		t.Errorf("confidence = %v, want 0.31", resp["confidence"])
	}
}

func TestCheckInDuplicate(t *testing.T) {
	identityID := uuid.New()
	svc := &fakeVerifier{
		res: match.Result{IdentityID: &identityID, Confidence: 0.88, Accepted: true},
		err: ledger.ErrDuplicateCheckin,
	}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/attendance/check-in", `{"embedding":"0.1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["identity_id"] != identityID.String() {
		t.Errorf("duplicate response must name the matched identity, got %v", resp["identity_id"])
	}
}

func TestCheckInMalformedJSON(t *testing.T) {
	r := newTestRouter(&fakeVerifier{})

	w := postJSON(t, r, "/attendance/check-in", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestVerifyMatched(t *testing.T) {
	identityID := uuid.New()
	svc := &fakeVerifier{
		res: match.Result{IdentityID: &identityID, Confidence: 0.95, Accepted: true},
	}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/verify", `{"embedding":"0.1,0.2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["matched"] != true {
		t.Error("matched must be true")
	}
	if resp["identity_id"] != identityID.String() {
		t.Errorf("identity_id = %v, want %v", resp["identity_id"], identityID)
	}
	if svc.gotIdentityID != nil {
		t.Errorf("no identity_id in request must reach the service as nil, got %v", svc.gotIdentityID)
	}
}

func TestVerifyScopedToIdentity(t *testing.T) {
	target := uuid.New()
	svc := &fakeVerifier{
		res: match.Result{IdentityID: &target, Confidence: 0.9, Accepted: true},
	}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/verify", `{"embedding":"0.1","identity_id":"`+target.String()+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if svc.gotIdentityID == nil || *svc.gotIdentityID != target {
		t.Errorf("identity_id must be passed through to the service, got %v", svc.gotIdentityID)
	}
}

func TestVerifyNoMatchStillReportsConfidence(t *testing.T) {
	svc := &fakeVerifier{res: match.Result{Confidence: 0.42}}
	r := newTestRouter(svc)

	w := postJSON(t, r, "/verify", `{"embedding":"0.1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["matched"] != false {
		t.Error("matched must be false")
	}
	if resp["confidence"] != 0.42 {
		t.Errorf("confidence = %v, want 0.42", resp["confidence"])
	}
	if _, ok := resp["identity_id"]; ok {
		t.Error("identity_id must be omitted when nothing matched")
	}
}
