package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/models"
)

// fakeStore implements insert-if-absent with an in-memory map, mirroring
// the UNIQUE (identity_id, attended_on) constraint.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*models.AttendanceRecord
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.AttendanceRecord)}
}

func key(id uuid.UUID, date time.Time) string {
	return id.String() + "/" + models.Day(date).Format(models.DateLayout)
}

func (f *fakeStore) InsertAttendanceIfAbsent(_ context.Context, identityID uuid.UUID, date time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(identityID, date)
	if _, ok := f.records[k]; ok {
		return nil, false, nil
	}
	rec := &models.AttendanceRecord{
		ID:         uuid.New(),
		IdentityID: identityID,
		Date:       models.Day(date),
		Status:     status,
		CreatedAt:  time.Now(),
	}
	f.records[k] = rec
	return rec, true, nil
}

func (f *fakeStore) SelectAttendance(_ context.Context, identityID uuid.UUID, date time.Time) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[key(identityID, date)], nil
}

func (f *fakeStore) SelectAttendanceHistory(_ context.Context, identityID uuid.UUID) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AttendanceRecord
	for _, rec := range f.records {
		if rec.IdentityID == identityID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func TestRecordFirstCheckin(t *testing.T) {
	l := New(newFakeStore())
	id := uuid.New()
	at := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	rec, err := l.Record(context.Background(), id, at, models.StatusPresent)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if rec.IdentityID != id {
		t.Errorf("identity = %v, want %v", rec.IdentityID, id)
	}
	if !rec.Date.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date not truncated to day: %v", rec.Date)
	}
	if rec.Status != models.StatusPresent {
		t.Errorf("status = %v, want present", rec.Status)
	}
}

func TestRecordDuplicateSameDay(t *testing.T) {
	l := New(newFakeStore())
	id := uuid.New()
	morning := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 15, 19, 0, 0, 0, time.UTC)

	if _, err := l.Record(context.Background(), id, morning, models.StatusPresent); err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	_, err := l.Record(context.Background(), id, evening, models.StatusPresent)
	if !errors.Is(err, ErrDuplicateCheckin) {
		t.Fatalf("expected ErrDuplicateCheckin, got %v", err)
	}
}

func TestRecordNextDayAllowed(t *testing.T) {
	l := New(newFakeStore())
	id := uuid.New()

	if _, err := l.Record(context.Background(), id, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), models.StatusPresent); err != nil {
		t.Fatalf("day one failed: %v", err)
	}
	if _, err := l.Record(context.Background(), id, time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC), models.StatusPresent); err != nil {
		t.Fatalf("day two must be a fresh check-in: %v", err)
	}
}

func TestRecordDifferentIdentitiesSameDay(t *testing.T) {
	l := New(newFakeStore())
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	if _, err := l.Record(context.Background(), uuid.New(), at, models.StatusPresent); err != nil {
		t.Fatalf("first identity failed: %v", err)
	}
	if _, err := l.Record(context.Background(), uuid.New(), at, models.StatusPresent); err != nil {
		t.Fatalf("second identity must not collide: %v", err)
	}
}

func TestRecordConcurrentDuplicates(t *testing.T) {
	l := New(newFakeStore())
	id := uuid.New()
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.Record(context.Background(), id, at, models.StatusPresent)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateCheckin):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("exactly one concurrent check-in must win, got %d", ok)
	}
	if dup != n-1 {
		t.Errorf("losers = %d, want %d", dup, n-1)
	}
}

func TestRecordStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	l := New(store)

	_, err := l.Record(context.Background(), uuid.New(), time.Now(), models.StatusPresent)
	if err == nil || errors.Is(err, ErrDuplicateCheckin) {
		t.Fatalf("store failure must surface as an error, got %v", err)
	}
}
