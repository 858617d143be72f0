package detector

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/inference"
)

// SCRFDConfig configures the SCRFD face detector
type SCRFDConfig struct {
	ModelPath     string  `yaml:"model_path" validate:"required"`
	InputSize     int     `yaml:"input_size" validate:"gt=0"`
	ConfThreshold float32 `yaml:"conf_threshold" validate:"gt=0,lt=1"`
	NMSThreshold  float32 `yaml:"nms_threshold" validate:"gt=0,lt=1"`
}

// DefaultSCRFDConfig returns the settings used with det_10g.onnx
func DefaultSCRFDConfig(modelPath string) SCRFDConfig {
	return SCRFDConfig{
		ModelPath:     modelPath,
		InputSize:     640,
		ConfThreshold: 0.5,
		NMSThreshold:  0.4,
	}
}

// SCRFD implements the SCRFD face detector
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(cfg SCRFDConfig) (*SCRFD, error) {
	// SCRFD has 1 input and 9 outputs (3 levels × 3 outputs each: score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(cfg.ModelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      cfg.InputSize,
		confThreshold:  cfg.ConfThreshold,
		nmsThreshold:   cfg.NMSThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2,
	}, nil
}

// Detect finds faces in an image, highest score first
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	inputBlob, scale := s.preprocess(img)
	defer inputBlob.Close()

	floatData, err := inputBlob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read input blob: %w", err)
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(s.inputSize), int64(s.inputSize)}, floatData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 0, 9)
	defer func() {
		for _, t := range outputTensors {
			t.Destroy()
		}
	}()

	widths := []int64{1, 4, 10} // score, bbox, kps
	for kind, width := range widths {
		for level, stride := range s.featureStrides {
			fm := s.inputSize / stride
			numAnchors := int64(fm * fm * s.numAnchors)

			t, err := inference.CreateEmptyTensor[float32]([]int64{numAnchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[kind*3+level] = t
			outputTensors = append(outputTensors, t)
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	faces := s.postprocess(outputTensors, scale, img.Cols(), img.Rows())
	return nms(faces, s.nmsThreshold), nil
}

// preprocess letterboxes the image into the model input and normalizes it
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()

	scale := float32(s.inputSize) / float32(max(height, width))

	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)
	defer resized.Close()

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	// (x - 127.5) / 128, BGR to RGB, HWC to NCHW
	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)

	return blob, scale
}

// postprocess decodes model outputs to faces
func (s *SCRFD) postprocess(outputs []*ort.Tensor[float32], scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level].GetData()
		bboxData := outputs[level+3].GetData()
		kpsData := outputs[level+6].GetData()

		decode := func(cx, cy float32, k int) Point {
			return Point{(cx + kpsData[k]*st) / scale, (cy + kpsData[k+1]*st) / scale}
		}

		anchorIdx := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					// det_10g exports probabilities, older exports raw logits
					score := scoreData[anchorIdx]
					if score < 0 || score > 1 {
						score = sigmoid(score)
					}

					if score > s.confThreshold {
						cx := (float32(x) + 0.5) * st
						cy := (float32(y) + 0.5) * st

						b := anchorIdx * 4
						box := BoundingBox{
							X1: clamp((cx-bboxData[b]*st)/scale, 0, float32(origWidth)),
							Y1: clamp((cy-bboxData[b+1]*st)/scale, 0, float32(origHeight)),
							X2: clamp((cx+bboxData[b+2]*st)/scale, 0, float32(origWidth)),
							Y2: clamp((cy+bboxData[b+3]*st)/scale, 0, float32(origHeight)),
						}

						k := anchorIdx * 10
						faces = append(faces, Face{
							BoundingBox: box,
							Landmarks: Landmarks{
								LeftEye:    decode(cx, cy, k),
								RightEye:   decode(cx, cy, k+2),
								Nose:       decode(cx, cy, k+4),
								LeftMouth:  decode(cx, cy, k+6),
								RightMouth: decode(cx, cy, k+8),
							},
							Score: score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}
