package backend

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	facecropper "github.com/menta2k/face-cropper"
	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/pkg/types"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"llamacpp", "ollama", "onnx", "opencv", "pigo"}, Names())
}

func TestNewLoaderUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Name = "tensorflow"

	_, err := NewLoader(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestNewLoaderRejectsBadSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Pigo.ScaleFactor = 0.5
	_, err := NewLoader(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Backend.Name = config.BackendOllama
	cfg.Backend.Ollama.URL = "localhost"
	_, err = NewLoader(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Backend.Name = config.BackendLlamaCpp
	cfg.Backend.LlamaCpp.URL = "ftp://example.com"
	_, err = NewLoader(cfg)
	assert.Error(t, err)
}

func TestMissingModelFailsOnFirstUse(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{config.BackendPigo, config.BackendONNX} {
		cfg := config.Default()
		cfg.Backend.Name = name
		cfg.Backend.Pigo.CascadePath = filepath.Join(dir, "facefinder")
		cfg.Backend.ONNX.ModelPath = filepath.Join(dir, "mtcnn.onnx")

		fc, err := NewFaceCropper(cfg)
		require.NoError(t, err, name)
		assert.False(t, fc.Ready(), name)

		err = fc.Init(context.Background())
		assert.ErrorIs(t, err, facecropper.ErrInitialization, name)

		var initErr *types.InitError
		require.ErrorAs(t, err, &initErr, name)
		assert.Equal(t, name, initErr.Backend)
	}
}

func TestLlamaCppEndToEnd(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"faces":[{"confidence":0.9,"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5}}],"description":"one face"}`,
				},
			}},
		})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Backend.Name = config.BackendLlamaCpp
	cfg.Backend.LlamaCpp.URL = server.URL

	fc, err := NewFaceCropper(cfg)
	require.NoError(t, err)

	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	faces, err := fc.CropFacesFromImage(context.Background(), img, nil)
	require.NoError(t, err)
	require.Len(t, faces, 1)

	assert.Equal(t, types.BoundingBox{XMin: 34, YMin: 34, XMax: 166, YMax: 166}, faces[0].Box)
	assert.InDelta(t, 0.9, faces[0].Confidence, 1e-9)
	assert.Equal(t, 160, faces[0].Image.Bounds().Dx())
	assert.Equal(t, int32(1), requests.Load())
}

func TestNewVisionDetector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": "a white square"},
			}},
		})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Backend.Name = config.BackendLlamaCpp
	cfg.Backend.LlamaCpp.URL = server.URL

	d, err := NewVisionDetector(cfg)
	require.NoError(t, err)
	reply, err := d.TestVision(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "a white square", reply)

	cfg.Backend.Name = config.BackendPigo
	_, err = NewVisionDetector(cfg)
	assert.Error(t, err)
}
