//go:build gocv

package backend

import (
	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/opencv"
)

func init() {
	registry[config.BackendOpenCV] = func(cfg *config.Config) (detector.Loader, error) {
		oc := cfg.OpenCVConfig()
		if err := oc.Validate(); err != nil {
			return nil, err
		}
		return opencv.NewLoader(oc), nil
	}
}
