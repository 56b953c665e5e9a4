package gallery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/models"
)

type fakeStore struct {
	all    []models.EnrollmentRecord
	calls  int
	failed bool
}

func (f *fakeStore) SelectAllEnrollments(context.Context) ([]models.EnrollmentRecord, error) {
	f.calls++
	if f.failed {
		return nil, errors.New("db down")
	}
	return f.all, nil
}

func (f *fakeStore) SelectEnrollmentsByIdentity(_ context.Context, identityID uuid.UUID) ([]models.EnrollmentRecord, error) {
	f.calls++
	if f.failed {
		return nil, errors.New("db down")
	}
	var out []models.EnrollmentRecord
	for _, rec := range f.all {
		if rec.IdentityID == identityID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeCache struct {
	all       []models.EnrollmentRecord
	hasAll    bool
	byID      map[uuid.UUID][]models.EnrollmentRecord
	dropCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{byID: make(map[uuid.UUID][]models.EnrollmentRecord)}
}

func (f *fakeCache) GetAll(context.Context) ([]models.EnrollmentRecord, bool) {
	return f.all, f.hasAll
}

func (f *fakeCache) SetAll(_ context.Context, records []models.EnrollmentRecord) {
	f.all = records
	f.hasAll = true
}

func (f *fakeCache) GetForIdentity(_ context.Context, id uuid.UUID) ([]models.EnrollmentRecord, bool) {
	records, ok := f.byID[id]
	return records, ok
}

func (f *fakeCache) SetForIdentity(_ context.Context, id uuid.UUID, records []models.EnrollmentRecord) {
	f.byID[id] = records
}

func (f *fakeCache) Invalidate(_ context.Context, id uuid.UUID) {
	f.dropCalls++
	f.hasAll = false
	f.all = nil
	delete(f.byID, id)
}

func sampleRecords(n int) []models.EnrollmentRecord {
	out := make([]models.EnrollmentRecord, n)
	for i := range out {
		out[i] = models.EnrollmentRecord{ID: uuid.New(), IdentityID: uuid.New()}
	}
	return out
}

func TestLoadAllWithoutCache(t *testing.T) {
	store := &fakeStore{all: sampleRecords(3)}
	g := New(store, nil)

	records, err := g.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestLoadAllPopulatesAndUsesCache(t *testing.T) {
	store := &fakeStore{all: sampleRecords(2)}
	cache := newFakeCache()
	g := New(store, cache)

	if _, err := g.LoadAll(context.Background()); err != nil {
		t.Fatalf("first LoadAll failed: %v", err)
	}
	if _, err := g.LoadAll(context.Background()); err != nil {
		t.Fatalf("second LoadAll failed: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("store hit %d times, want 1 (second load must be served by cache)", store.calls)
	}
}

func TestLoadForIdentityFiltersAndCaches(t *testing.T) {
	id := uuid.New()
	records := sampleRecords(2)
	records[0].IdentityID = id
	store := &fakeStore{all: records}
	cache := newFakeCache()
	g := New(store, cache)

	got, err := g.LoadForIdentity(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadForIdentity failed: %v", err)
	}
	if len(got) != 1 || got[0].IdentityID != id {
		t.Fatalf("wrong records returned: %+v", got)
	}

	store.failed = true
	if _, err := g.LoadForIdentity(context.Background(), id); err != nil {
		t.Errorf("cached load must not touch the failing store: %v", err)
	}
}

func TestInvalidateDropsCachedEntries(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{all: sampleRecords(1)}
	cache := newFakeCache()
	g := New(store, cache)

	if _, err := g.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	g.Invalidate(context.Background(), id)
	if cache.dropCalls != 1 {
		t.Errorf("Invalidate calls = %d, want 1", cache.dropCalls)
	}
	if cache.hasAll {
		t.Error("full gallery entry must be dropped")
	}
}

func TestLoadAllStoreError(t *testing.T) {
	g := New(&fakeStore{failed: true}, nil)
	if _, err := g.LoadAll(context.Background()); err == nil {
		t.Fatal("store failure must surface")
	}
}
