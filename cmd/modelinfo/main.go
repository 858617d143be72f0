// Command modelinfo prints the inputs and outputs of the configured ONNX
// models and checks the names the emotion classifier expects.
package main

import (
	"flag"
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/interviewlens/internal/config"
	"github.com/dudu/interviewlens/internal/inference"
)

func main() {
	configPath := flag.String("config", "", "Config file (default config.yaml or $INTERVIEWLENS_CONFIG)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modelinfo [-config file] [model.onnx ...]\n\n")
		fmt.Fprintf(os.Stderr, "Without arguments the detector, landmark and emotion models from the config are inspected.\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{
			cfg.Models.Provider.Detector.ModelPath,
			cfg.Models.Provider.LandmarkModel,
			cfg.Models.Classifier.ModelPath,
		}
	}

	if err := inference.Initialize(cfg.Models.ORTLibrary); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "\nSet models.ort_library or INTERVIEWLENS_ORT_LIB to the onnxruntime shared library.")
		os.Exit(1)
	}
	defer inference.Shutdown()

	failed := false
	for _, p := range paths {
		if err := describe(p); err != nil {
			fmt.Printf("  error: %v\n\n", err)
			failed = true
			continue
		}
		if p == cfg.Models.Classifier.ModelPath {
			if err := checkClassifier(p, cfg.Models.Classifier.InputName, cfg.Models.Classifier.OutputName, len(cfg.Models.Classifier.Labels)); err != nil {
				fmt.Printf("  classifier mismatch: %v\n\n", err)
				failed = true
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}

func describe(path string) error {
	fmt.Printf("%s\n", path)
	if _, err := os.Stat(path); err != nil {
		return err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("read model info: %w", err)
	}

	fmt.Printf("  inputs (%d):\n", len(inputs))
	for _, info := range inputs {
		fmt.Printf("    %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}
	fmt.Printf("  outputs (%d):\n", len(outputs))
	for _, info := range outputs {
		fmt.Printf("    %s: shape=%v, type=%v\n", info.Name, info.Dimensions, info.DataType)
	}

	metadata, err := ort.GetModelMetadata(path)
	if err != nil {
		fmt.Printf("  (could not read metadata: %v)\n", err)
	} else {
		if producer, err := metadata.GetProducerName(); err == nil {
			fmt.Printf("  producer: %s\n", producer)
		}
		if version, err := metadata.GetVersion(); err == nil {
			fmt.Printf("  version: %d\n", version)
		}
		metadata.Destroy()
	}
	fmt.Println()
	return nil
}

// checkClassifier verifies the configured tensor names and that the output
// has one score per configured label
func checkClassifier(path, input, output string, labels int) error {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return err
	}

	found := false
	for _, info := range inputs {
		if info.Name == input {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("input %q not in model", input)
	}

	for _, info := range outputs {
		if info.Name != output {
			continue
		}
		dims := info.Dimensions
		if len(dims) == 0 {
			return fmt.Errorf("output %q has no shape", output)
		}
		if n := dims[len(dims)-1]; n > 0 && int(n) != labels {
			return fmt.Errorf("output %q has %d scores, config lists %d labels", output, n, labels)
		}
		return nil
	}
	return fmt.Errorf("output %q not in model", output)
}
