package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "FACECROP_"

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from FACECROP_* variables
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"BACKEND":        &c.Backend.Name,
		"PIGO_CASCADE":   &c.Backend.Pigo.CascadePath,
		"ONNX_MODEL":     &c.Backend.ONNX.ModelPath,
		"ONNX_LIBRARY":   &c.Backend.ONNX.SharedLibraryPath,
		"OLLAMA_URL":     &c.Backend.Ollama.URL,
		"OLLAMA_MODEL":   &c.Backend.Ollama.Model,
		"LLAMACPP_URL":   &c.Backend.LlamaCpp.URL,
		"LLAMACPP_MODEL": &c.Backend.LlamaCpp.Model,
		"OPENCV_CASCADE": &c.Backend.OpenCV.CascadePath,
		"OUTPUT_DIR":     &c.Output.OutputDir,
		"OUTPUT_FORMAT":  &c.Output.DefaultFormat,
		"LISTEN_ADDR":    &c.Server.ListenAddr,
		"BODY_LIMIT":     &c.Server.BodyLimit,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
		"LOG_FILE":       &c.Log.File,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MIN_FACE_SIZE":  &c.Detector.MinFaceSize,
		"FACE_LIMIT":     &c.Detector.FaceLimit,
		"MARGIN":         &c.Cropper.Margin,
		"THUMBNAIL_SIZE": &c.Cropper.ThumbnailSize,
		"OUTPUT_QUALITY": &c.Output.Quality,
		"ONNX_THREADS":   &c.Backend.ONNX.Threads,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("%sTHRESHOLD: %w", EnvPrefix, err)
		}
		c.Detector.Thresholds[2] = float32(f)
	}

	return nil
}
