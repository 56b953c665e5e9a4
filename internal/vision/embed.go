package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Embedder extracts 128-dimensional face descriptors from aligned face
// crops using a ResNet descriptor ONNX model.
type Embedder struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	embDim       int
}

// NewEmbedder loads the face descriptor ONNX model. The model expects a
// 150x150 face crop and produces a 128-d vector whose pairwise Euclidean
// distances fall roughly in [0, 1.2] for real faces.
func NewEmbedder(modelPath string) (*Embedder, error) {
	inputW, inputH := 150, 150
	embDim := 128

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(embDim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"descriptor"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &Embedder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
		embDim:       embDim,
	}, nil
}

// Embed runs descriptor extraction on a face crop.
// faceData is CHW format [3, 150, 150], normalized.
func (e *Embedder) Embed(faceData []float32) ([]float64, error) {
	inputSlice := e.inputTensor.GetData()
	copy(inputSlice, faceData)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}

	outputData := e.outputTensor.GetData()

	descriptor := make([]float64, e.embDim)
	for i := 0; i < e.embDim; i++ {
		descriptor[i] = float64(outputData[i])
	}
	return descriptor, nil
}

func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}
