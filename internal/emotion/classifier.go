package emotion

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/inference"
	"github.com/dudu/interviewlens/internal/log"
)

// Classifier produces a raw emotion distribution for a face crop
type Classifier interface {
	Predict(crop gocv.Mat) (Vector, error)
	Close() error
}

// ClassifierConfig describes an ONNX facial expression model
type ClassifierConfig struct {
	ModelPath    string   `yaml:"model_path" validate:"required"`
	InputName    string   `yaml:"input_name" validate:"required"`
	OutputName   string   `yaml:"output_name" validate:"required"`
	InputSize    int      `yaml:"input_size" validate:"gt=0"`
	Grayscale    bool     `yaml:"grayscale"`
	Labels       []string `yaml:"labels" validate:"required,min=1"`
	ApplySoftmax bool     `yaml:"apply_softmax"`
	Mean         float64  `yaml:"mean"`
	Std          float64  `yaml:"std" validate:"gte=0"`
}

// DefaultClassifierConfig matches the FER+ style 64x64 grayscale models
func DefaultClassifierConfig(modelPath string) ClassifierConfig {
	return ClassifierConfig{
		ModelPath:    modelPath,
		InputName:    "Input3",
		OutputName:   "Plus692_Output_0",
		InputSize:    64,
		Grayscale:    true,
		Labels:       []string{"neutral", "happiness", "surprise", "sadness", "anger", "disgust", "fear", "contempt"},
		ApplySoftmax: true,
		Mean:         0,
		Std:          1,
	}
}

// ONNXClassifier runs an expression model through ONNX Runtime
type ONNXClassifier struct {
	session *inference.Session
	cfg     ClassifierConfig
	// index into Classes for each model output, -1 if the label is dropped
	mapping []int
}

// NewONNXClassifier loads the model described by cfg
func NewONNXClassifier(cfg ClassifierConfig) (*ONNXClassifier, error) {
	mapping, err := labelMapping(cfg.Labels)
	if err != nil {
		return nil, err
	}

	session, err := inference.NewSession(cfg.ModelPath, []string{cfg.InputName}, []string{cfg.OutputName})
	if err != nil {
		return nil, fmt.Errorf("failed to create emotion session: %w", err)
	}

	return &ONNXClassifier{
		session: session,
		cfg:     cfg,
		mapping: mapping,
	}, nil
}

func labelMapping(labels []string) ([]int, error) {
	mapping := make([]int, len(labels))
	known := 0
	for i, l := range labels {
		c, ok := ParseClass(l)
		if !ok {
			log.Debug(log.Fields{"label": l}, "classifier label has no emotion class, dropping")
			mapping[i] = -1
			continue
		}
		mapping[i] = int(c)
		known++
	}
	if known == 0 {
		return nil, fmt.Errorf("no classifier label maps to an emotion class")
	}
	return mapping, nil
}

// Predict returns the normalized emotion distribution for a BGR face crop
func (c *ONNXClassifier) Predict(crop gocv.Mat) (Vector, error) {
	if crop.Empty() {
		return Vector{}, fmt.Errorf("empty face crop")
	}

	channels := 3
	if c.cfg.Grayscale {
		channels = 1
	}
	size := c.cfg.InputSize

	inputData, err := c.preprocess(crop)
	if err != nil {
		return Vector{}, err
	}

	inputTensor, err := inference.CreateTensor([]int64{1, int64(channels), int64(size), int64(size)}, inputData)
	if err != nil {
		return Vector{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, int64(len(c.mapping))})
	if err != nil {
		return Vector{}, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := c.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return Vector{}, fmt.Errorf("inference failed: %w", err)
	}

	return c.toVector(outputTensor.GetData()), nil
}

func (c *ONNXClassifier) preprocess(crop gocv.Mat) ([]float32, error) {
	src := gocv.NewMat()
	defer src.Close()
	if c.cfg.Grayscale {
		gocv.CvtColor(crop, &src, gocv.ColorBGRToGray)
	} else {
		gocv.CvtColor(crop, &src, gocv.ColorBGRToRGB)
	}

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	if c.cfg.Grayscale {
		src.ConvertTo(&floatImg, gocv.MatTypeCV32FC1)
	} else {
		src.ConvertTo(&floatImg, gocv.MatTypeCV32FC3)
	}

	scale := 1.0
	if c.cfg.Std > 0 {
		scale = 1.0 / c.cfg.Std
	}
	mean := c.cfg.Mean

	// HWC to NCHW, (x - mean) / std
	blob := gocv.BlobFromImage(floatImg, scale, image.Pt(c.cfg.InputSize, c.cfg.InputSize),
		gocv.NewScalar(mean, mean, mean, 0), false, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (c *ONNXClassifier) toVector(raw []float32) Vector {
	scores := make([]float64, len(c.mapping))
	for i := range scores {
		if i < len(raw) {
			scores[i] = float64(raw[i])
		}
	}
	if c.cfg.ApplySoftmax {
		softmax(scores)
	}

	var v Vector
	for i, idx := range c.mapping {
		if idx >= 0 {
			v[idx] += scores[i]
		}
	}
	return v.Normalize()
}

func softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	maxV := x[0]
	for _, v := range x[1:] {
		maxV = math.Max(maxV, v)
	}
	var sum float64
	for i, v := range x {
		x[i] = math.Exp(v - maxV)
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
}

// Close releases classifier resources
func (c *ONNXClassifier) Close() error {
	return c.session.Destroy()
}
