package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/dudu/interviewlens/internal/camera"
	"github.com/dudu/interviewlens/internal/config"
	"github.com/dudu/interviewlens/internal/log"
	"github.com/dudu/interviewlens/internal/session"
	"github.com/dudu/interviewlens/internal/store"
	"github.com/dudu/interviewlens/internal/ui"
)

func runVideo(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("video", flag.ExitOnError)
	profile := fs.String("profile", "", "Calibration profile (default: latest in the profile dir)")
	jsonDir := fs.String("json", "", "Directory for JSON reports")
	workers := fs.Int("workers", cfg.Video.Workers, "Files analyzed concurrently")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		return errors.New("no video files given")
	}

	cfg, err := cfg.WithMode(session.ModeVideo)
	if err != nil {
		return err
	}
	model, err := loadModel(cfg, *profile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, *workers))

	for _, path := range files {
		g.Go(func() error {
			src, err := camera.OpenFile(path)
			if err != nil {
				return err
			}
			defer src.Close()

			s, err := session.Open(cfg.Models, model, cfg.Session)
			if err != nil {
				return err
			}
			defer s.Close()
			st.attach(s)

			log.Info(log.Fields{"file": path, "frames": src.FrameCount(), "fps": src.FPS()}, "analyzing video")
			report, err := s.Run(ctx, path, src)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			st.save(ctx, report)
			printReport(report)
			if *jsonDir != "" {
				if err := writeReport(*jsonDir, report); err != nil {
					return fmt.Errorf("%s: write report: %w", path, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func runLive(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("live", flag.ExitOnError)
	cameraIndex := fs.Int("camera", 0, "Camera device index")
	targetFPS := fs.Int("fps", 30, "Target frames per second")
	profile := fs.String("profile", "", "Calibration profile (default: latest in the profile dir)")
	preview := fs.Bool("preview", true, "Show preview window")
	jsonDir := fs.String("json", "", "Directory for the JSON report")
	fs.Parse(args)

	cfg, err := cfg.WithMode(session.ModeWebcam)
	if err != nil {
		return err
	}
	model, err := loadModel(cfg, *profile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Println("Loading models...")
	s, err := session.Open(cfg.Models, model, cfg.Session)
	if err != nil {
		return err
	}
	defer s.Close()
	st.attach(s)

	fmt.Printf("Opening camera %d...\n", *cameraIndex)
	cam, err := camera.NewCapture(*cameraIndex, *targetFPS)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer cam.Close()
	fmt.Printf("Camera opened: %dx%d\n", cam.Width(), cam.Height())

	if *preview {
		win := ui.NewWindow("interviewlens", cfg.Session.Window)
		defer win.Close()

		canvas := gocv.NewMat()
		defer canvas.Close()
		s.OnFrame(previewHook(s, win, &canvas, cfg.Session.Window.Width, cfg.Session.Window.Height, cancel))
	}

	fmt.Println("\nRunning... Press 'q' to stop")
	report, err := s.Run(ctx, fmt.Sprintf("camera %d", *cameraIndex), cam)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	saveCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	st.save(saveCtx, report)
	printReport(report)
	if *jsonDir != "" {
		return writeReport(*jsonDir, report)
	}
	return nil
}

// previewHook draws the tracking state onto a window-sized copy of every
// frame and stops the run on q or Esc
func previewHook(s *session.Session, win *ui.Window, canvas *gocv.Mat, width, height int, stop func()) func(camera.Frame, session.FrameResult) {
	return func(f camera.Frame, res session.FrameResult) {
		gocv.Resize(f.Mat, canvas, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		ui.DrawHeatmap(canvas, s.Grid(), 0.35)

		if res.Face != nil {
			sx := float64(width) / float64(f.Mat.Cols())
			sy := float64(height) / float64(f.Mat.Rows())
			r := res.Face.BoundingBox.Rect()
			ui.DrawFace(canvas, image.Rect(
				int(float64(r.Min.X)*sx), int(float64(r.Min.Y)*sy),
				int(float64(r.Max.X)*sx), int(float64(r.Max.Y)*sy)))
		}
		if res.Gaze != nil {
			ui.DrawGaze(canvas, *res.Gaze)
		}

		label := "-"
		if res.Labeled {
			label = res.Label.String()
		}
		t := s.LastTiming()
		lines := []string{
			fmt.Sprintf("%s  label: %s", s.State(), label),
			fmt.Sprintf("D:%.0fms G:%.0fms E:%.0fms T:%.0fms",
				float64(t.Detection.Milliseconds()), float64(t.Gaze.Milliseconds()),
				float64(t.Emotion.Milliseconds()), float64(t.Total.Milliseconds())),
		}
		if res.Err != nil {
			lines = append(lines, res.Err.Error())
		}
		ui.DrawStatus(canvas, lines...)
		win.Show(canvas)

		// WaitKey must be called to process window events on macOS
		if key := win.WaitKey(1); key == 'q' || key == ui.KeyEsc {
			stop()
		}
	}
}

func runResults(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("results", flag.ExitOnError)
	limit := fs.Int("n", 20, "Number of results")
	id := fs.Int64("id", 0, "Print the full report of one result")
	live := fs.String("live", "", "Print the latest live snapshot of a running session")
	fs.Parse(args)

	ctx := context.Background()

	if *live != "" {
		if cfg.Storage.Redis.Addr == "" {
			return errors.New("no redis configured (storage.redis.addr or INTERVIEWLENS_REDIS_ADDR)")
		}
		snapshots := store.NewSnapshotPublisher(cfg.Storage.Redis)
		defer snapshots.Close()

		snap, err := snapshots.Latest(ctx, *live)
		if err != nil {
			return err
		}
		printSnapshot(snap)
		return nil
	}

	if cfg.Storage.DSN == "" {
		return errors.New("no database configured (storage.dsn or INTERVIEWLENS_DB_DSN)")
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if *id > 0 {
		res, err := st.results.GetResult(ctx, *id)
		if err != nil {
			return err
		}
		report, err := res.Decode()
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	}

	results, err := st.results.ListRecent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%5d  %s  %-7s %-30s %4d/%-5d %-9s %-12s conf %3.0f\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Mode, r.Source,
			r.AnalyzedFrames, r.TotalFrames, r.FinalLabel, r.Focus, r.Confidence)
	}
	return nil
}
