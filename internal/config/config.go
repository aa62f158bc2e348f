package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	facecropper "github.com/menta2k/face-cropper"
	"github.com/menta2k/face-cropper/pkg/cropper"
	"github.com/menta2k/face-cropper/pkg/detection"
	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/onnx"
	"github.com/menta2k/face-cropper/pkg/opencv"
	"github.com/menta2k/face-cropper/pkg/vision"
)

// Backend names accepted in backend.name
const (
	BackendPigo     = "pigo"
	BackendONNX     = "onnx"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendOpenCV   = "opencv"
)

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Cropper  CropperConfig  `json:"cropper"`
	Backend  BackendConfig  `json:"backend"`
	Output   OutputConfig   `json:"output"`
	Server   ServerConfig   `json:"server"`
	Log      LogConfig      `json:"log"`
}

// DetectorConfig holds the fixed detection parameters
type DetectorConfig struct {
	MinFaceSize int        `json:"min_face_size"`
	Thresholds  [3]float32 `json:"thresholds"`
	ScaleFactor float32    `json:"scale_factor"`
	FaceLimit   int        `json:"face_limit"`
}

// CropperConfig holds configuration for box post-processing
type CropperConfig struct {
	Margin        int `json:"margin"`
	ThumbnailSize int `json:"thumbnail_size"`
}

// BackendConfig selects and configures the face detector
type BackendConfig struct {
	Name     string       `json:"name"`
	Pigo     PigoConfig   `json:"pigo"`
	ONNX     ONNXConfig   `json:"onnx"`
	Ollama   VisionLLM    `json:"ollama"`
	LlamaCpp VisionLLM    `json:"llamacpp"`
	OpenCV   OpenCVConfig `json:"opencv"`
}

// PigoConfig configures the pure Go cascade
type PigoConfig struct {
	CascadePath  string  `json:"cascade_path"`
	ShiftFactor  float64 `json:"shift_factor"`
	ScaleFactor  float64 `json:"scale_factor"`
	IoUThreshold float64 `json:"iou_threshold"`
	QualityHalf  float64 `json:"quality_half"`
}

// ONNXConfig configures the onnxruntime MTCNN graph
type ONNXConfig struct {
	ModelPath         string `json:"model_path"`
	SharedLibraryPath string `json:"shared_library_path"`
	Threads           int    `json:"threads"`
}

// VisionLLM configures a vision model server
type VisionLLM struct {
	URL     string `json:"url"`
	Model   string `json:"model"`
	MaxDim  int    `json:"max_dim"`
	Quality int    `json:"quality"`
}

// OpenCVConfig configures the Haar cascade
type OpenCVConfig struct {
	CascadePath  string  `json:"cascade_path"`
	ScaleFactor  float64 `json:"scale_factor"`
	MinNeighbors int     `json:"min_neighbors"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
	Prefix        string `json:"prefix"`
	Suffix        string `json:"suffix"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
}

// ServerConfig holds configuration for the HTTP service
type ServerConfig struct {
	ListenAddr      string `json:"listen_addr"`
	BodyLimit       string `json:"body_limit"`
	ShutdownSeconds int    `json:"shutdown_seconds"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	det := detector.DefaultConfig()
	crop := cropper.DefaultConfig()
	pg := vision.DefaultConfig()
	cv := opencv.DefaultConfig()
	llm := detection.DefaultOptions("")

	return &Config{
		Detector: DetectorConfig{
			MinFaceSize: det.MinFaceSize,
			Thresholds:  det.Thresholds,
			ScaleFactor: det.ScaleFactor,
			FaceLimit:   det.FaceLimit,
		},
		Cropper: CropperConfig{
			Margin:        crop.Margin,
			ThumbnailSize: crop.ThumbnailSize,
		},
		Backend: BackendConfig{
			Name: BackendPigo,
			Pigo: PigoConfig{
				CascadePath:  "./cascade/facefinder",
				ShiftFactor:  pg.ShiftFactor,
				ScaleFactor:  pg.ScaleFactor,
				IoUThreshold: pg.IoUThreshold,
				QualityHalf:  pg.QualityHalf,
			},
			ONNX: ONNXConfig{
				ModelPath: "./models/mtcnn.onnx",
			},
			Ollama: VisionLLM{
				URL:     "http://localhost:11434",
				Model:   "llava",
				MaxDim:  llm.MaxDim,
				Quality: llm.Quality,
			},
			LlamaCpp: VisionLLM{
				URL:     "http://localhost:8080",
				Model:   "default",
				MaxDim:  llm.MaxDim,
				Quality: llm.Quality,
			},
			OpenCV: OpenCVConfig{
				CascadePath:  "./cascade/haarcascade_frontalface_default.xml",
				ScaleFactor:  cv.ScaleFactor,
				MinNeighbors: cv.MinNeighbors,
			},
		},
		Output: OutputConfig{
			DefaultFormat: "jpg",
			OutputDir:     "./output",
			Suffix:        "_face",
			Quality:       90,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			BodyLimit:       "10M",
			ShutdownSeconds: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load builds the configuration from defaults, an optional JSON file, an
// optional .env file and FACECROP_* environment variables, in that order.
func Load(filename string, envFiles ...string) (*Config, error) {
	config := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.DetectorConfig().Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.CropperConfig().Validate(); err != nil {
		return fmt.Errorf("cropper: %w", err)
	}

	switch c.Backend.Name {
	case BackendPigo, BackendONNX, BackendOllama, BackendLlamaCpp, BackendOpenCV:
	default:
		return fmt.Errorf("backend.name %q is not one of pigo, onnx, ollama, llamacpp, opencv", c.Backend.Name)
	}

	switch strings.ToLower(c.Output.DefaultFormat) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.default_format must be jpg, png or webp")
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	if c.Server.ShutdownSeconds < 0 {
		return errors.New("server.shutdown_seconds must not be negative")
	}

	return nil
}

// DetectorConfig converts the detector section
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MinFaceSize: c.Detector.MinFaceSize,
		Thresholds:  c.Detector.Thresholds,
		ScaleFactor: c.Detector.ScaleFactor,
		FaceLimit:   c.Detector.FaceLimit,
	}
}

// CropperConfig converts the cropper section
func (c *Config) CropperConfig() cropper.CropConfig {
	return cropper.CropConfig{
		Margin:        c.Cropper.Margin,
		ThumbnailSize: c.Cropper.ThumbnailSize,
	}
}

// FaceCropperConfig returns the library configuration
func (c *Config) FaceCropperConfig() facecropper.Config {
	return facecropper.Config{
		Detection: c.DetectorConfig(),
		Crop:      c.CropperConfig(),
	}
}

// PigoConfig converts the pigo backend section
func (c *Config) PigoConfig() vision.Config {
	p := c.Backend.Pigo
	return vision.Config{
		CascadePath:  p.CascadePath,
		ShiftFactor:  p.ShiftFactor,
		ScaleFactor:  p.ScaleFactor,
		IoUThreshold: p.IoUThreshold,
		QualityHalf:  p.QualityHalf,
	}
}

// ONNXConfig converts the onnx backend section
func (c *Config) ONNXConfig() onnx.Config {
	return onnx.Config{
		ModelPath:         c.Backend.ONNX.ModelPath,
		SharedLibraryPath: c.Backend.ONNX.SharedLibraryPath,
		IntraOpThreads:    c.Backend.ONNX.Threads,
	}
}

// OpenCVConfig converts the opencv backend section
func (c *Config) OpenCVConfig() opencv.Config {
	return opencv.Config{
		CascadePath:  c.Backend.OpenCV.CascadePath,
		ScaleFactor:  c.Backend.OpenCV.ScaleFactor,
		MinNeighbors: c.Backend.OpenCV.MinNeighbors,
	}
}

// Options converts a vision model section
func (v VisionLLM) Options() detection.Options {
	opts := detection.DefaultOptions(v.Model)
	if v.MaxDim > 0 {
		opts.MaxDim = v.MaxDim
	}
	if v.Quality > 0 {
		opts.Quality = v.Quality
	}
	return opts
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "face-cropper", "config.json")
}

// ResolvePath returns explicit when set, otherwise GetConfigPath when that
// file exists, otherwise "" (defaults only).
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if info, err := os.Stat(GetConfigPath()); err == nil && !info.IsDir() {
		return GetConfigPath()
	}
	return ""
}
