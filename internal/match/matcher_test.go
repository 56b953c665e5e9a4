package match

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/embedding"
	"github.com/your-org/facecheck/internal/models"
)

func vec(vals ...float64) []float64 {
	v := make([]float64, embedding.Dim)
	copy(v, vals)
	return v
}

func record(identity uuid.UUID, emb []float64) models.EnrollmentRecord {
	return models.EnrollmentRecord{
		ID:         uuid.New(),
		IdentityID: identity,
		Embedding:  emb,
	}
}

func TestFindBestEmptyGallery(t *testing.T) {
	m := NewMatcher(0)
	res, err := m.FindBest(vec(), nil)
	if err != nil {
		t.Fatalf("empty gallery must not error: %v", err)
	}
	if res.Accepted {
		t.Error("empty gallery must not accept")
	}
	if res.IdentityID != nil {
		t.Error("empty gallery must not name an identity")
	}
}

func TestFindBestSelfMatch(t *testing.T) {
	m := NewMatcher(0)
	id := uuid.New()
	e := vec(0.1, 0.2, 0.3)
	gallery := []models.EnrollmentRecord{
		record(uuid.New(), vec(5)),
		record(id, e),
	}

	res, err := m.FindBest(e, gallery)
	if err != nil {
		t.Fatalf("FindBest failed: %v", err)
	}
	if !res.Accepted {
		t.Fatal("self match must be accepted")
	}
	if res.IdentityID == nil || *res.IdentityID != id {
		t.Errorf("matched wrong identity: %v", res.IdentityID)
	}
	if res.Confidence != 1.0 {
		t.Errorf("distance to self must be 0, got confidence %v", res.Confidence)
	}
}

func TestFindBestThresholdBoundary(t *testing.T) {
	// 0.5 and 0.25 are exactly representable, so the boundary comparison
	// is deterministic.
	m := NewMatcher(0.5)
	input := vec()

	t.Run("exactly at threshold is rejected", func(t *testing.T) {
		gallery := []models.EnrollmentRecord{record(uuid.New(), vec(0.5))}
		res, err := m.FindBest(input, gallery)
		if err != nil {
			t.Fatalf("FindBest failed: %v", err)
		}
		if res.Accepted {
			t.Error("similarity equal to threshold must be rejected (strict >)")
		}
		if res.IdentityID != nil {
			t.Error("rejected result must not name an identity")
		}
		if res.Confidence != 0.5 {
			t.Errorf("confidence = %v, want 0.5", res.Confidence)
		}
	})

	t.Run("just above threshold is accepted", func(t *testing.T) {
		gallery := []models.EnrollmentRecord{record(uuid.New(), vec(0.25))}
		res, err := m.FindBest(input, gallery)
		if err != nil {
			t.Fatalf("FindBest failed: %v", err)
		}
		if !res.Accepted {
			t.Error("similarity above threshold must be accepted")
		}
		if res.Confidence != 0.75 {
			t.Errorf("confidence = %v, want 0.75", res.Confidence)
		}
	})
}

func TestFindBestTieKeepsFirst(t *testing.T) {
	m := NewMatcher(0)
	first := uuid.New()
	second := uuid.New()
	e := vec(0.1)
	gallery := []models.EnrollmentRecord{
		record(first, vec(0.1)),
		record(second, vec(0.1)),
	}

	res, err := m.FindBest(e, gallery)
	if err != nil {
		t.Fatalf("FindBest failed: %v", err)
	}
	if res.IdentityID == nil || *res.IdentityID != first {
		t.Errorf("tie must keep the first record encountered, got %v", res.IdentityID)
	}
}

func TestFindBestBelowThresholdReportsConfidence(t *testing.T) {
	m := NewMatcher(0.6)
	// Distance 2 gives similarity -1; it stays visible, not clamped.
	gallery := []models.EnrollmentRecord{record(uuid.New(), vec(2))}
	res, err := m.FindBest(vec(), gallery)
	if err != nil {
		t.Fatalf("FindBest failed: %v", err)
	}
	if res.Accepted {
		t.Error("must not accept")
	}
	if res.Confidence != -1 {
		t.Errorf("confidence = %v, want -1 (unclamped)", res.Confidence)
	}
}

func TestFindBestRejectsMalformedInput(t *testing.T) {
	m := NewMatcher(0)

	if _, err := m.FindBest([]float64{1, 2, 3}, nil); !errors.Is(err, embedding.ErrInvalidFormat) {
		t.Errorf("short input: expected ErrInvalidFormat, got %v", err)
	}

	bad := vec()
	bad[7] = math.NaN()
	if _, err := m.FindBest(bad, nil); !errors.Is(err, embedding.ErrInvalidFormat) {
		t.Errorf("NaN input: expected ErrInvalidFormat, got %v", err)
	}

	gallery := []models.EnrollmentRecord{{ID: uuid.New(), IdentityID: uuid.New(), Embedding: []float64{1}}}
	if _, err := m.FindBest(vec(), gallery); !errors.Is(err, embedding.ErrInvalidFormat) {
		t.Errorf("malformed gallery row: expected ErrInvalidFormat, got %v", err)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", vec(0.5, 0.5), vec(0.5, 0.5), 0},
		{"unit apart", vec(1), vec(), 1},
		{"pythagorean", vec(3, 4), vec(), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Distance = %v, want %v", got, tt.want)
			}
		})
	}
}
