package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func csv128(start, step float64) string {
	parts := make([]string, Dim)
	for i := range parts {
		parts[i] = fmt.Sprintf("%g", start+step*float64(i))
	}
	return strings.Join(parts, ",")
}

func json128() string {
	parts := make([]string, Dim)
	for i := range parts {
		parts[i] = fmt.Sprintf("%g", 0.01*float64(i))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"csv full length", csv128(0.03, 0.03), false},
		{"json array", json128(), false},
		{"json with whitespace", "  " + json128() + "  ", false},
		{"garbage", "not_a_valid_embedding", true},
		{"empty", "", true},
		{"too short csv", "0.1,0.2,0.3", true},
		{"too short json", "[0.1,0.2,0.3]", true},
		{"127 elements", strings.Join(strings.Split(csv128(0, 0.01), ",")[:127], ","), true},
		{"129 elements", csv128(0, 0.01) + ",0.5", true},
		{"non numeric element", strings.Replace(csv128(0, 0.01), "0.05", "abc", 1), true},
		{"malformed json", "[0.1, 0.2,", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, err := Decode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Decode(%q) expected error, got %d-dim vector", tt.input, len(vec))
				}
				if !errors.Is(err, ErrInvalidFormat) {
					t.Errorf("error should wrap ErrInvalidFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(vec) != Dim {
				t.Errorf("got %d dimensions, want %d", len(vec), Dim)
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	vec, err := Decode(csv128(0.03, 0.03))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	again, err := Decode(Encode(vec))
	if err != nil {
		t.Fatalf("Decode(Encode) failed: %v", err)
	}
	for i := range vec {
		if vec[i] != again[i] {
			t.Fatalf("round trip mismatch at %d: %v != %v", i, vec[i], again[i])
		}
	}
}

func TestValidate(t *testing.T) {
	good := make([]float64, Dim)
	if err := Validate(good); err != nil {
		t.Errorf("zero vector should validate: %v", err)
	}

	short := make([]float64, Dim-1)
	if err := Validate(short); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("short vector should fail with ErrInvalidFormat, got %v", err)
	}

	nan := make([]float64, Dim)
	nan[64] = math.NaN()
	if err := Validate(nan); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("NaN vector should fail with ErrInvalidFormat, got %v", err)
	}

	inf := make([]float64, Dim)
	inf[0] = math.Inf(1)
	if err := Validate(inf); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Inf vector should fail with ErrInvalidFormat, got %v", err)
	}
}

type stubExtractor struct {
	vec []float64
	err error
}

func (s stubExtractor) Extract(_ context.Context, _ []byte) ([]float64, error) {
	return s.vec, s.err
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	vec := make([]float64, Dim)
	for i := range vec {
		vec[i] = float64(i) * 0.01
	}

	t.Run("explicit vector", func(t *testing.T) {
		c := NewCodec(nil)
		got, err := c.Resolve(ctx, FromVector(vec))
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if &got[0] == &vec[0] {
			t.Error("resolved vector should be a copy, not an alias")
		}
	})

	t.Run("text", func(t *testing.T) {
		c := NewCodec(nil)
		got, err := c.Resolve(ctx, FromText(csv128(0.02, 0.02)))
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(got) != Dim {
			t.Errorf("got %d dimensions, want %d", len(got), Dim)
		}
	})

	t.Run("image goes through extractor", func(t *testing.T) {
		c := NewCodec(stubExtractor{vec: vec})
		got, err := c.Resolve(ctx, FromImage([]byte{0xff, 0xd8}))
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(got) != Dim {
			t.Errorf("got %d dimensions, want %d", len(got), Dim)
		}
	})

	t.Run("image without extractor", func(t *testing.T) {
		c := NewCodec(nil)
		if _, err := c.Resolve(ctx, FromImage([]byte{1})); !errors.Is(err, ErrNoExtractor) {
			t.Errorf("expected ErrNoExtractor, got %v", err)
		}
	})

	t.Run("empty source", func(t *testing.T) {
		c := NewCodec(nil)
		if _, err := c.Resolve(ctx, Source{}); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})

	t.Run("wrong-length explicit vector", func(t *testing.T) {
		c := NewCodec(nil)
		if _, err := c.Resolve(ctx, FromVector([]float64{1, 2, 3})); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})
}
