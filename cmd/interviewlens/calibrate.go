package main

import (
	"errors"
	"flag"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/interviewlens/internal/camera"
	"github.com/dudu/interviewlens/internal/config"
	"github.com/dudu/interviewlens/internal/inference"
	"github.com/dudu/interviewlens/internal/log"
	"github.com/dudu/interviewlens/internal/provider"
	"github.com/dudu/interviewlens/internal/session"
	"github.com/dudu/interviewlens/internal/store"
	"github.com/dudu/interviewlens/internal/ui"
)

func runCalibrate(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	cameraIndex := fs.Int("camera", 0, "Camera device index")
	grid := fs.Int("grid", cfg.Calibration.Grid, "Targets per side: 3, 4 or 5")
	perTarget := fs.Int("per-target", cfg.Calibration.PerTarget, "Captures per target")
	average := fs.Bool("average", cfg.Calibration.Fit.AverageByTarget, "Fit on per-target mean angles")
	fs.Parse(args)

	if *grid < 3 || *grid > 5 {
		return fmt.Errorf("invalid grid %d (use 3, 4 or 5)", *grid)
	}
	opts := cfg.Calibration.Fit
	opts.AverageByTarget = *average
	window := cfg.Session.Window

	if err := inference.Initialize(cfg.Models.ORTLibrary); err != nil {
		return fmt.Errorf("failed to initialize inference: %w", err)
	}
	defer inference.Shutdown()

	fmt.Println("Loading models...")
	prov, err := provider.Open(cfg.Models.Provider)
	if err != nil {
		return fmt.Errorf("failed to open face provider: %w", err)
	}
	defer prov.Close()

	cam, err := camera.NewCapture(*cameraIndex, 30)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer cam.Close()
	fmt.Printf("Camera opened: %dx%d\n", cam.Width(), cam.Height())

	win := ui.NewWindow("interviewlens calibration", window)
	defer win.Close()

	cal := session.NewCalibrator(prov, window, *grid, *perTarget)
	canvas := gocv.NewMat()
	defer canvas.Close()

	fmt.Printf("\nLook at the red target and press space to capture (%d per target). Esc aborts.\n", *perTarget)

	status := ""
	guard := camera.NewGuard(cfg.Session.MaxReadFailures)
	for !cal.Done() {
		f, err := guard.Read(cam)
		if errors.Is(err, camera.ErrSourceFailed) {
			return err
		}
		if err != nil {
			log.Debug(log.Fields{"error": err.Error()}, "frame read failed")
			if key := win.WaitKey(10); key == ui.KeyEsc || key == 'q' {
				return errors.New("calibration aborted")
			}
			continue
		}

		gocv.Resize(f.Mat, &canvas, image.Pt(window.Width, window.Height), 0, 0, gocv.InterpolationLinear)
		target, _ := cal.Current()
		index, captured := cal.Progress()
		ui.DrawTarget(&canvas, target, captured, *perTarget)
		ui.DrawStatus(&canvas, fmt.Sprintf("Target %d/%d", index+1, len(cal.Targets())), status)
		win.Show(&canvas)

		key := win.WaitKey(10)
		switch key {
		case ui.KeyEsc, 'q':
			f.Close()
			return errors.New("calibration aborted")
		case ui.KeySpace:
			if _, err := cal.CaptureFrame(f.Mat); err != nil {
				status = "No gaze: " + err.Error()
			} else {
				status = ""
			}
		}
		f.Close()
	}

	profile, err := cal.Fit(opts, cfg.Calibration.Screen)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	path, err := store.NewProfileStore(cfg.Calibration.ProfileDir).Save(profile)
	if err != nil {
		return err
	}
	fmt.Printf("\nCalibration saved to %s (%s, mean error %.1f px over %d samples)\n",
		path, profile.Method, profile.MeanError, len(profile.Samples))
	return nil
}
