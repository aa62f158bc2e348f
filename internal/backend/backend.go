// Package backend builds the face detector selected in the configuration.
package backend

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	facecropper "github.com/menta2k/face-cropper"
	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/pkg/detection"
	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/llamacpp"
	"github.com/menta2k/face-cropper/pkg/ollama"
	"github.com/menta2k/face-cropper/pkg/onnx"
	"github.com/menta2k/face-cropper/pkg/vision"
)

// Factory creates a loader for one backend. Nothing heavy happens here; the
// loader runs on first use.
type Factory func(cfg *config.Config) (detector.Loader, error)

var registry = map[string]Factory{
	config.BackendPigo: func(cfg *config.Config) (detector.Loader, error) {
		pc := cfg.PigoConfig()
		if err := pc.Validate(); err != nil {
			return nil, err
		}
		return vision.NewLoader(pc), nil
	},
	config.BackendONNX: func(cfg *config.Config) (detector.Loader, error) {
		return onnx.NewLoader(cfg.ONNXConfig()), nil
	},
	config.BackendOllama:   visionLoader,
	config.BackendLlamaCpp: visionLoader,
}

func visionLoader(cfg *config.Config) (detector.Loader, error) {
	d, err := NewVisionDetector(cfg)
	if err != nil {
		return nil, err
	}
	return d.Loader(), nil
}

// NewVisionDetector returns the vision model detector of the ollama and
// llamacpp backends
func NewVisionDetector(cfg *config.Config) (*detection.Detector, error) {
	switch cfg.Backend.Name {
	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.Backend.Ollama.URL)
		if err != nil {
			return nil, err
		}
		return detection.NewDetector(c, cfg.Backend.Ollama.Options()), nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.Backend.LlamaCpp.URL)
		if err != nil {
			return nil, err
		}
		return detection.NewDetector(c, cfg.Backend.LlamaCpp.Options()), nil
	default:
		return nil, fmt.Errorf("backend %q does not use a vision model", cfg.Backend.Name)
	}
}

// Names returns the registered backend names in order
func Names() []string {
	names := maps.Keys(registry)
	slices.Sort(names)
	return names
}

// NewLoader returns the loader of the configured backend
func NewLoader(cfg *config.Config) (detector.Loader, error) {
	factory, ok := registry[cfg.Backend.Name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", cfg.Backend.Name, Names())
	}
	loader, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", cfg.Backend.Name, err)
	}
	return loader, nil
}

// NewFaceCropper builds a FaceCropper for the configured backend
func NewFaceCropper(cfg *config.Config) (*facecropper.FaceCropper, error) {
	loader, err := NewLoader(cfg)
	if err != nil {
		return nil, err
	}
	fcc := cfg.FaceCropperConfig()
	fcc.Name = cfg.Backend.Name
	return facecropper.NewWithConfig(loader, fcc)
}
