// Command interviewlens calibrates gaze mapping and analyzes interview
// footage for eye contact, expression and tension.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/dudu/interviewlens/internal/config"
	"github.com/dudu/interviewlens/internal/log"
)

func init() {
	// Lock the main goroutine to the main OS thread.
	// This is required on macOS for OpenCV's highgui (window creation).
	runtime.LockOSThread()
}

type command struct {
	name  string
	usage string
	run   func(cfg *config.Config, args []string) error
}

var commands = []command{
	{"calibrate", "Calibrate gaze mapping against an on-screen target grid", runCalibrate},
	{"video", "Analyze one or more recorded interview files", runVideo},
	{"live", "Analyze the webcam feed with a preview window", runLive},
	{"results", "List stored analysis results", runResults},
}

func usage() {
	fmt.Fprintf(os.Stderr, "interviewlens - interview readiness analysis\n\n")
	fmt.Fprintf(os.Stderr, "Usage: interviewlens [-config file] <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  interviewlens calibrate -grid 4\n")
	fmt.Fprintf(os.Stderr, "  interviewlens video -json reports/ answer1.mp4 answer2.mp4\n")
	fmt.Fprintf(os.Stderr, "  interviewlens live -camera 1\n")
	fmt.Fprintf(os.Stderr, "  interviewlens results -live <session-id>\n")
}

func main() {
	configPath := flag.String("config", "", "Config file (default config.yaml or $INTERVIEWLENS_CONFIG)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.Log)

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(cfg, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", name)
	usage()
	os.Exit(1)
}
