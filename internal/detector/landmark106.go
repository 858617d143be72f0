package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/inference"
)

// Landmark106 detects 106 facial landmarks using insightface's 2d106det model
type Landmark106 struct {
	session   *inference.Session
	inputSize int
	inputMean float64
	inputStd  float64
}

// NewLandmark106 creates a new 106-point landmark detector
func NewLandmark106(modelPath string) (*Landmark106, error) {
	session, err := inference.NewSession(modelPath, []string{"data"}, []string{"fc1"})
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark session: %w", err)
	}

	return &Landmark106{
		session:   session,
		inputSize: 192,
		inputMean: 127.5,
		inputStd:  128.0,
	}, nil
}

// Detect fills face.Landmarks106 for a detected face
func (l *Landmark106) Detect(img gocv.Mat, face *Face) error {
	bbox := face.BoundingBox
	maxDim := max(bbox.Width(), bbox.Height())
	if maxDim <= 0 {
		return fmt.Errorf("degenerate face box %+v", bbox)
	}

	// 1.5x expansion like insightface
	center := bbox.Center()
	scale := float32(l.inputSize) / (maxDim * 1.5)

	M := l.cropTransform(center, scale)
	defer M.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, image.Pt(l.inputSize, l.inputSize))

	// (x - mean) / std, BGR to RGB, HWC to NCHW
	blob := gocv.BlobFromImage(aligned, 1.0/l.inputStd, image.Pt(l.inputSize, l.inputSize),
		gocv.NewScalar(l.inputMean, l.inputMean, l.inputMean, 0), true, false)
	defer blob.Close()

	floatData, err := blob.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("failed to read input blob: %w", err)
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(l.inputSize), int64(l.inputSize)}, floatData)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// 106 landmarks * 2 coords
	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 212})
	if err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := l.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return fmt.Errorf("landmark inference failed: %w", err)
	}

	landmarks := l.postprocess(outputTensor.GetData(), center, scale)
	face.Landmarks106 = &landmarks
	return nil
}

// cropTransform scales around the face centre into the model input, no rotation
func (l *Landmark106) cropTransform(center Point, scale float32) gocv.Mat {
	half := float64(l.inputSize) / 2

	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	M.SetDoubleAt(0, 0, float64(scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, half-float64(center.X*scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(scale))
	M.SetDoubleAt(1, 2, half-float64(center.Y*scale))
	return M
}

// postprocess maps model output in [-1, 1] back to image coordinates
func (l *Landmark106) postprocess(output []float32, center Point, scale float32) Landmarks106 {
	var landmarks Landmarks106
	half := float32(l.inputSize) / 2

	for i := range landmarks {
		x := (output[i*2] + 1) * half
		y := (output[i*2+1] + 1) * half
		landmarks[i] = Point{
			X: (x-half)/scale + center.X,
			Y: (y-half)/scale + center.Y,
		}
	}
	return landmarks
}

// Close releases detector resources
func (l *Landmark106) Close() error {
	return l.session.Destroy()
}
