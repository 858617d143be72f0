// Package provider locates the candidate's face, landmarks and gaze
// direction in a frame.
package provider

import (
	"errors"
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/detector"
	"github.com/dudu/interviewlens/internal/log"
)

var (
	// ErrNoFaceDetected means the frame holds no usable face
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrGazeEstimation means a face was found but its gaze could not be estimated
	ErrGazeEstimation = errors.New("gaze estimation failed")
)

// Provider finds a face and estimates where it is looking
type Provider interface {
	// Detect returns the most prominent face, or ErrNoFaceDetected
	Detect(frame gocv.Mat) (*detector.Face, error)
	// EstimateGaze returns a unit gaze vector in camera coordinates
	// (x right, y down, looking into the camera is -z)
	EstimateGaze(frame gocv.Mat, face *detector.Face) (r3.Vector, error)
	Close() error
}

// Config configures the default face provider
type Config struct {
	Detector      detector.SCRFDConfig `yaml:"detector"`
	LandmarkModel string               `yaml:"landmark_model" validate:"required"`
	PuplocCascade string               `yaml:"puploc_cascade" validate:"required"`
	Gaze          GazeConfig           `yaml:"gaze"`
}

// FaceProvider combines SCRFD detection, 106-point landmarks and pigo
// pupil localization
type FaceProvider struct {
	scrfd     *detector.SCRFD
	landmarks *detector.Landmark106
	pupils    *pigo.PuplocCascade
	gaze      GazeConfig
}

// Open loads every model. On failure anything already loaded is released.
func Open(cfg Config) (*FaceProvider, error) {
	p := &FaceProvider{gaze: cfg.Gaze}
	if p.gaze == (GazeConfig{}) {
		p.gaze = DefaultGazeConfig()
	}

	var err error
	p.scrfd, err = detector.NewSCRFD(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create face detector: %w", err)
	}

	p.landmarks, err = detector.NewLandmark106(cfg.LandmarkModel)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create landmark detector: %w", err)
	}

	p.pupils, err = loadPuploc(cfg.PuplocCascade)
	if err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

func loadPuploc(path string) (*pigo.PuplocCascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read puploc cascade: %w", err)
	}
	plc, err := pigo.NewPuplocCascade().UnpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack puploc cascade: %w", err)
	}
	return plc, nil
}

// Detect returns the largest face with its 106 landmarks. A landmark
// failure still returns the face; only the expression signals are lost.
func (p *FaceProvider) Detect(frame gocv.Mat) (*detector.Face, error) {
	faces, err := p.scrfd.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFaceDetected, err)
	}

	face := detector.Largest(faces)
	if face == nil {
		return nil, ErrNoFaceDetected
	}

	if err := p.landmarks.Detect(frame, face); err != nil {
		log.Debug(log.Fields{"error": err.Error()}, "landmarks unavailable")
	}
	return face, nil
}

// EstimateGaze localizes both pupils inside the landmark eye outlines and
// combines their offsets with head rotation
func (p *FaceProvider) EstimateGaze(frame gocv.Mat, face *detector.Face) (r3.Vector, error) {
	if face == nil || face.Landmarks106 == nil {
		return r3.Vector{}, fmt.Errorf("%w: landmarks missing", ErrGazeEstimation)
	}
	l := face.Landmarks106

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	img := pigo.ImageParams{
		Pixels: gray.ToBytes(),
		Rows:   gray.Rows(),
		Cols:   gray.Cols(),
		Dim:    gray.Cols(),
	}

	var eyes [2]Eye
	for i, outline := range [][]detector.Point{l.RightEye(), l.LeftEye()} {
		eye := NewEye(outline)
		pupil := p.pupils.RunDetector(eye.Hint(), img, 0.0, false)
		if pupil == nil || pupil.Row <= 0 || pupil.Col <= 0 {
			return r3.Vector{}, fmt.Errorf("%w: pupil not found", ErrGazeEstimation)
		}
		eye.Pupil = detector.Point{X: float32(pupil.Col), Y: float32(pupil.Row)}
		eyes[i] = eye
	}

	v, ok := p.gaze.Vector(eyes, l)
	if !ok {
		return r3.Vector{}, fmt.Errorf("%w: degenerate eye geometry", ErrGazeEstimation)
	}
	return v, nil
}

// Close releases all models
func (p *FaceProvider) Close() error {
	var errs []error
	if p.scrfd != nil {
		errs = append(errs, p.scrfd.Close())
		p.scrfd = nil
	}
	if p.landmarks != nil {
		errs = append(errs, p.landmarks.Close())
		p.landmarks = nil
	}
	p.pupils = nil
	return errors.Join(errs...)
}
