//go:build !gocv

package backend

import (
	"errors"

	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/pkg/detector"
)

func init() {
	registry[config.BackendOpenCV] = func(*config.Config) (detector.Loader, error) {
		return nil, errors.New("opencv support not built (build with -tags gocv)")
	}
}
