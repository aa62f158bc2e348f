//go:build !gocv

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/face-cropper/internal/config"
)

func TestOpenCVNeedsBuildTag(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Name = config.BackendOpenCV

	_, err := NewLoader(cfg)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "-tags gocv")
	}
}
