package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dim is the embedding dimensionality this service operates on. A vector
// of any other length is invalid input, not a degraded embedding.
const Dim = 128

// minElements is a cheap sanity floor applied before the full length check,
// so obviously-truncated client input fails with a clearer message.
const minElements = 10

var (
	// ErrInvalidFormat marks a malformed client-supplied embedding:
	// bad syntax, wrong dimensionality or non-finite values.
	ErrInvalidFormat = errors.New("invalid embedding format")

	// ErrNoExtractor is returned when an image source is given but no
	// extractor is configured (vision models unavailable).
	ErrNoExtractor = errors.New("image extraction unavailable")
)

// Extractor produces an embedding from raw image bytes.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) ([]float64, error)
}

// Source is the tagged input variant: an already-computed vector, its
// textual form, or a raw image. It is resolved exactly once at the codec
// boundary; downstream code never re-inspects which field was set.
type Source struct {
	vector []float64
	text   string
	image  []byte
}

func FromVector(v []float64) Source { return Source{vector: v} }
func FromText(s string) Source      { return Source{text: s} }
func FromImage(data []byte) Source  { return Source{image: data} }

// HasImage reports whether the source carries raw image bytes.
func (s Source) HasImage() bool { return len(s.image) > 0 && len(s.vector) == 0 && s.text == "" }

// Codec converts client input into validated embedding vectors.
type Codec struct {
	extractor Extractor
}

// NewCodec returns a codec. extractor may be nil, in which case image
// sources are rejected with ErrNoExtractor.
func NewCodec(extractor Extractor) *Codec {
	return &Codec{extractor: extractor}
}

// Resolve turns a Source into a validated vector. A client-supplied
// embedding is preferred over image extraction when both are present,
// since extraction is the expensive path. Both paths are equally
// authoritative once decoded.
func (c *Codec) Resolve(ctx context.Context, src Source) ([]float64, error) {
	switch {
	case len(src.vector) > 0:
		if err := Validate(src.vector); err != nil {
			return nil, err
		}
		out := make([]float64, Dim)
		copy(out, src.vector)
		return out, nil
	case src.text != "":
		return Decode(src.text)
	case len(src.image) > 0:
		if c.extractor == nil {
			return nil, ErrNoExtractor
		}
		return c.extractor.Extract(ctx, src.image)
	default:
		return nil, fmt.Errorf("%w: no embedding or image provided", ErrInvalidFormat)
	}
}

// Decode parses a textual embedding: either a JSON array literal or a
// comma-separated float list.
func Decode(text string) ([]float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	var vec []float64
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &vec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	} else {
		parts := strings.Split(trimmed, ",")
		vec = make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidFormat, strings.TrimSpace(p))
			}
			vec = append(vec, f)
		}
	}

	if len(vec) < minElements {
		return nil, fmt.Errorf("%w: got %d elements, want %d", ErrInvalidFormat, len(vec), Dim)
	}
	if err := Validate(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// Encode renders a vector in the canonical comma-separated form used for
// interchange with clients.
func Encode(vec []float64) string {
	parts := make([]string, len(vec))
	for i, f := range vec {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Validate checks dimensionality and finiteness.
func Validate(vec []float64) error {
	if len(vec) != Dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidFormat, len(vec), Dim)
	}
	for i, f := range vec {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidFormat, i)
		}
	}
	return nil
}
