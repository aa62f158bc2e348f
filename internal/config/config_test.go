package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Detector.MinFaceSize)
	assert.Equal(t, [3]float32{0.6, 0.7, 0.7}, cfg.Detector.Thresholds)
	assert.Equal(t, float32(0.709), cfg.Detector.ScaleFactor)
	assert.Equal(t, 32, cfg.Cropper.Margin)
	assert.Equal(t, 160, cfg.Cropper.ThumbnailSize)
	assert.Equal(t, BackendPigo, cfg.Backend.Name)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Cropper.Margin = 44
	cfg.Backend.Name = BackendONNX
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 44, loaded.Cropper.Margin)
	assert.Equal(t, BackendONNX, loaded.Backend.Name)
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cropper":{"margin":10}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Cropper.Margin)
	assert.Equal(t, 160, cfg.Cropper.ThumbnailSize)
	assert.Equal(t, 20, cfg.Detector.MinFaceSize)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cropper":`), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min face size", func(c *Config) { c.Detector.MinFaceSize = 0 }},
		{"threshold", func(c *Config) { c.Detector.Thresholds[2] = 1.5 }},
		{"scale factor", func(c *Config) { c.Detector.ScaleFactor = 1 }},
		{"face limit", func(c *Config) { c.Detector.FaceLimit = -1 }},
		{"margin", func(c *Config) { c.Cropper.Margin = -2 }},
		{"thumbnail", func(c *Config) { c.Cropper.ThumbnailSize = 0 }},
		{"backend", func(c *Config) { c.Backend.Name = "dlib" }},
		{"format", func(c *Config) { c.Output.DefaultFormat = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 101 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"shutdown", func(c *Config) { c.Server.ShutdownSeconds = -1 }},
	}

	for _, test := range tests {
		cfg := Default()
		test.mutate(cfg)
		assert.Error(t, cfg.Validate(), test.name)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FACECROP_BACKEND", "ollama")
	t.Setenv("FACECROP_OLLAMA_MODEL", "llava:13b")
	t.Setenv("FACECROP_MARGIN", "12")
	t.Setenv("FACECROP_FACE_LIMIT", "3")
	t.Setenv("FACECROP_THRESHOLD", "0.9")
	t.Setenv("FACECROP_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, BackendOllama, cfg.Backend.Name)
	assert.Equal(t, "llava:13b", cfg.Backend.Ollama.Model)
	assert.Equal(t, 12, cfg.Cropper.Margin)
	assert.Equal(t, 3, cfg.Detector.FaceLimit)
	assert.InDelta(t, 0.9, cfg.Detector.Thresholds[2], 1e-6)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("FACECROP_MARGIN", "wide")
	assert.Error(t, Default().ApplyEnv())
}

func TestLoadWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FACECROP_THUMBNAIL_SIZE=96\n"), 0644))

	// godotenv writes into the process environment
	t.Setenv("FACECROP_THUMBNAIL_SIZE", "")
	os.Unsetenv("FACECROP_THUMBNAIL_SIZE")

	cfg, err := Load("", filepath.Join(dir, "missing.env"), envFile)
	require.NoError(t, err)
	assert.Equal(t, 96, cfg.Cropper.ThumbnailSize)
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("FACECROP_BACKEND", "dlib")
	_, err := Load("")
	assert.Error(t, err)
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Detector.FaceLimit = 2
	cfg.Backend.Ollama.MaxDim = 512

	fc := cfg.FaceCropperConfig()
	assert.Equal(t, 2, fc.Detection.FaceLimit)
	assert.Equal(t, 160, fc.Crop.ThumbnailSize)

	assert.Equal(t, cfg.Backend.Pigo.CascadePath, cfg.PigoConfig().CascadePath)
	assert.NoError(t, cfg.PigoConfig().Validate())
	assert.Equal(t, cfg.Backend.ONNX.ModelPath, cfg.ONNXConfig().ModelPath)
	assert.NoError(t, cfg.OpenCVConfig().Validate())

	opts := cfg.Backend.Ollama.Options()
	assert.Equal(t, "llava", opts.Model)
	assert.Equal(t, 512, opts.MaxDim)
	assert.NotEmpty(t, opts.Prompt)
}

func TestResolvePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, "custom.json", ResolvePath("custom.json"))
	assert.Equal(t, "", ResolvePath(""))

	path := filepath.Join(home, ".config", "face-cropper", "config.json")
	require.Equal(t, path, GetConfigPath())
	require.NoError(t, Default().SaveToFile(path))
	assert.Equal(t, path, ResolvePath(""))
}
