package match

import (
	"math"

	"github.com/google/uuid"

	"github.com/your-org/facecheck/internal/embedding"
	"github.com/your-org/facecheck/internal/models"
)

// DefaultThreshold is the similarity a candidate must strictly exceed to
// be accepted. Similarity is 1 - Euclidean distance; for the 128-d
// descriptor family used here the distance is empirically bounded in
// roughly [0, 1.2], so similarity is not clamped — an out-of-range score
// is informative and must not be silently corrected.
const DefaultThreshold = 0.6

// Result is the ephemeral outcome of one matching pass. Accepted is true
// iff Confidence strictly exceeds the threshold and at least one
// candidate existed.
type Result struct {
	IdentityID   *uuid.UUID `json:"identity_id,omitempty"`
	EnrollmentID *uuid.UUID `json:"enrollment_id,omitempty"`
	Confidence   float64    `json:"confidence"`
	Accepted     bool       `json:"accepted"`
}

// Matcher selects the best-matching enrollment for an input embedding.
type Matcher struct {
	threshold float64
}

func NewMatcher(threshold float64) *Matcher {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// FindBest scans the gallery and returns the single highest-similarity
// candidate. On ties the first record encountered wins; gallery order is
// the store's enrollment order and the tie-break is deliberate. An empty
// gallery is a normal no-match outcome, never an error. The input is
// re-validated here; the matcher does not trust upstream decoding.
func (m *Matcher) FindBest(input []float64, gallery []models.EnrollmentRecord) (Result, error) {
	if err := embedding.Validate(input); err != nil {
		return Result{}, err
	}

	best := Result{}
	for i := range gallery {
		rec := &gallery[i]
		if err := embedding.Validate(rec.Embedding); err != nil {
			return Result{}, err
		}

		sim := 1 - Distance(input, rec.Embedding)
		// Strict > keeps the first candidate on equal similarity.
		if best.IdentityID == nil || sim > best.Confidence {
			id := rec.IdentityID
			eid := rec.ID
			best = Result{IdentityID: &id, EnrollmentID: &eid, Confidence: sim}
		}
	}

	if best.IdentityID == nil {
		return Result{}, nil
	}
	if best.Confidence > m.threshold {
		best.Accepted = true
	} else {
		best.IdentityID = nil
		best.EnrollmentID = nil
	}
	return best, nil
}

// Distance returns the Euclidean distance between two equal-length vectors.
func Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
