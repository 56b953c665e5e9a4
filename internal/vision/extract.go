package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"time"

	_ "image/png"

	"github.com/your-org/facecheck/internal/config"
	"github.com/your-org/facecheck/internal/observability"
)

var (
	// ErrNoFaceDetected means the image decoded fine but contained no face.
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrMultipleFacesDetected means more than one face was found. The
	// service refuses to guess which one is the subject; the caller must
	// resubmit an image with a single face.
	ErrMultipleFacesDetected = errors.New("multiple faces detected in image")
)

// Extractor turns a raw face photograph into a 128-d embedding:
// decode -> detect -> crop -> embed. Exactly one face must be present.
type Extractor struct {
	detector *Detector
	embedder *Embedder
}

// NewExtractor loads both ONNX models from cfg.ModelsDir.
func NewExtractor(cfg config.RecognitionConfig) (*Extractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "face_resnet_128.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading descriptor model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Extractor{detector: det, embedder: emb}, nil
}

// Extract implements embedding.Extractor.
func (x *Extractor) Extract(ctx context.Context, imageData []byte) ([]float64, error) {
	start := time.Now()
	img, err := jpeg.Decode(bytes.NewReader(imageData))
	if err != nil {
		// Try other registered formats
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
	}
	observability.ExtractionDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start = time.Now()
	detInput := preprocess(img, x.detector.inputW, x.detector.inputH,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
	detections, err := x.detector.Detect(detInput, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.ExtractionDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	switch {
	case len(detections) == 0:
		return nil, ErrNoFaceDetected
	case len(detections) > 1:
		return nil, fmt.Errorf("%w: found %d", ErrMultipleFacesDetected, len(detections))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	faceCrop := cropFace(img, detections[0].BBox)
	if faceCrop == nil {
		return nil, ErrNoFaceDetected
	}

	start = time.Now()
	embInput := preprocess(faceCrop, x.embedder.inputW, x.embedder.inputH,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
	descriptor, err := x.embedder.Embed(embInput)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	observability.ExtractionDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	return descriptor, nil
}

// Close releases both ONNX sessions.
func (x *Extractor) Close() {
	if x.detector != nil {
		x.detector.Close()
	}
	if x.embedder != nil {
		x.embedder.Close()
	}
}

// preprocess converts an image to CHW float32 format with normalization:
//
//	pixel = (pixel - mean) / std
func preprocess(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			// 16-bit to 8-bit
			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			idx := y*w + x
			data[0*h*w+idx] = (rf - mean[0]) / std[0]
			data[1*h*w+idx] = (gf - mean[1]) / std[1]
			data[2*h*w+idx] = (bf - mean[2]) / std[2]
		}
	}

	return data
}

// resizeImage performs nearest-neighbour resize (fast, good enough for ML input).
func resizeImage(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}

	return dst
}

// cropFace extracts a face region from the image, padded by 10% per side.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	x1 := int(bbox[0])
	y1 := int(bbox[1])
	x2 := int(bbox[2])
	y2 := int(bbox[3])

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}

	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return nil
	}

	padW := int(float32(w) * 0.1)
	padH := int(float32(h) * 0.1)
	x1 -= padW
	y1 -= padH
	x2 += padW
	y2 += padH

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}

	return crop
}
