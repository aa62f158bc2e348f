package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	facecropper "github.com/menta2k/face-cropper"
	"github.com/menta2k/face-cropper/internal/backend"
	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/internal/logging"
	"github.com/menta2k/face-cropper/internal/utils"
	"github.com/menta2k/face-cropper/pkg/processing"
	"github.com/menta2k/face-cropper/pkg/types"
)

const pipeName = "-"

// manifestEntry records the outcome for one input
type manifestEntry struct {
	Input string      `json:"input"`
	Faces []savedFace `json:"faces,omitempty"`
	Error string      `json:"error,omitempty"`
}

type savedFace struct {
	Path       string            `json:"path"`
	Box        types.BoundingBox `json:"box"`
	Confidence float64           `json:"confidence"`
}

type options struct {
	configPath string
	envFile    string
	backend    string
	url        string
	model      string
	in         string
	out        string
	ext        string
	quality    int
	lossless   bool
	prefix     string
	suffix     string
	single     bool
	threshold  float64
	limit      int
	manifest   string
	verbose    bool
	version    bool
	testVision bool
}

func main() {
	var o options

	flag.StringVar(&o.configPath, "config", "", "JSON configuration file (default "+config.GetConfigPath()+" when present)")
	flag.StringVar(&o.envFile, "env", ".env", "dotenv file with FACECROP_* variables (ignored when missing)")
	flag.StringVar(&o.backend, "backend", "", "face detector: "+strings.Join(backend.Names(), "|"))
	flag.StringVar(&o.url, "url", "", "server URL for the ollama and llamacpp backends")
	flag.StringVar(&o.model, "model", "", "model name for the ollama and llamacpp backends")

	flag.StringVar(&o.in, "in", "", "input image path, URL, directory or - for stdin")
	flag.StringVar(&o.out, "out", "", "output directory, or - to write the first face as PNG to stdout")
	flag.StringVar(&o.ext, "ext", "", "output format for faces: jpg|png|webp")
	flag.IntVar(&o.quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&o.lossless, "lossless", false, "WebP output lossless mode")
	flag.StringVar(&o.prefix, "prefix", "", "output filename prefix")
	flag.StringVar(&o.suffix, "suffix", "", "output filename suffix")

	flag.BoolVar(&o.single, "single", false, "crop only the first detected face")
	flag.Float64Var(&o.threshold, "threshold", 0, "final stage confidence threshold (0 keeps the configured one)")
	flag.IntVar(&o.limit, "limit", 0, "maximum number of faces per image (0 keeps the configured limit)")
	flag.StringVar(&o.manifest, "manifest", "", "write a JSON manifest of the cropped faces to this file")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.BoolVar(&o.version, "version", false, "print the version and exit")
	flag.BoolVar(&o.testVision, "test-vision", false, "ask the vision model to describe -in and exit (ollama and llamacpp)")

	flag.Parse()
	if o.version {
		fmt.Println(facecropper.GetVersion())
		return
	}
	if o.in == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -in input.jpg|URL|dir|- [-out dir|-] [-backend %s] [-single] [-threshold 0.9] [-limit n]\n",
			filepath.Base(os.Args[0]), strings.Join(backend.Names(), "|"))
		os.Exit(2)
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options) error {
	cfg, err := config.Load(config.ResolvePath(o.configPath), o.envFile)
	if err != nil {
		return err
	}
	if err := o.apply(cfg); err != nil {
		return err
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if o.testVision {
		return testVision(ctx, cfg, o.in)
	}

	fc, err := backend.NewFaceCropper(cfg)
	if err != nil {
		return err
	}
	fc.SetLogger(log)

	opts := &facecropper.CropOptions{Threshold: float32(o.threshold), FaceLimit: o.limit}
	if o.single {
		opts.FaceLimit = 1
	}

	if o.out == pipeName {
		return cropToStdout(ctx, fc, o.in, opts)
	}

	inputs, err := collectInputs(o.in)
	if err != nil {
		return err
	}

	out := types.ProcessingOptions{
		OutputDir: cfg.Output.OutputDir,
		Format:    cfg.Output.DefaultFormat,
		Quality:   cfg.Output.Quality,
		Lossless:  cfg.Output.Lossless,
		Prefix:    cfg.Output.Prefix,
		Suffix:    cfg.Output.Suffix,
	}
	if err := utils.EnsureDir(out.OutputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	entries := make([]manifestEntry, 0, len(inputs))
	failed := 0
	for _, input := range inputs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry := processOne(ctx, log, fc, input, out, opts)
		if entry.Error != "" {
			failed++
		}
		entries = append(entries, entry)
	}

	if o.manifest != "" {
		if err := writeManifest(o.manifest, entries); err != nil {
			return err
		}
		log.WithField("path", o.manifest).Info("manifest written")
	}

	if failed == len(inputs) {
		return fmt.Errorf("no faces cropped from %d input(s)", len(inputs))
	}
	return nil
}

// apply overrides the loaded configuration with command line flags
func (o options) apply(cfg *config.Config) error {
	if o.backend != "" {
		cfg.Backend.Name = o.backend
	}
	switch cfg.Backend.Name {
	case config.BackendOllama:
		setIfNotEmpty(&cfg.Backend.Ollama.URL, o.url)
		setIfNotEmpty(&cfg.Backend.Ollama.Model, o.model)
	case config.BackendLlamaCpp:
		setIfNotEmpty(&cfg.Backend.LlamaCpp.URL, o.url)
		setIfNotEmpty(&cfg.Backend.LlamaCpp.Model, o.model)
	}

	if o.out != "" && o.out != pipeName {
		cfg.Output.OutputDir = o.out
	}
	setIfNotEmpty(&cfg.Output.DefaultFormat, o.ext)
	setIfNotEmpty(&cfg.Output.Prefix, o.prefix)
	setIfNotEmpty(&cfg.Output.Suffix, o.suffix)
	if o.quality > 0 {
		cfg.Output.Quality = o.quality
	}
	if o.lossless {
		cfg.Output.Lossless = true
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if o.threshold < 0 || o.threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %v", o.threshold)
	}
	if o.limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", o.limit)
	}
	return cfg.Validate()
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// collectInputs expands a directory into its image files
func collectInputs(in string) ([]string, error) {
	if in == pipeName {
		return nil, errors.New("reading from stdin needs -out -")
	}
	if utils.IsURL(in) || !utils.DirExists(in) {
		return []string{in}, nil
	}

	files, err := utils.ListImageFiles(in)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", in, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files found in %s", in)
	}
	return files, nil
}

func processOne(ctx context.Context, log logrus.FieldLogger, fc *facecropper.FaceCropper, input string, out types.ProcessingOptions, opts *facecropper.CropOptions) manifestEntry {
	entry := manifestEntry{Input: input}
	l := log.WithField("input", input)

	saved, err := fc.ProcessImageFile(ctx, input, out, opts)
	if err != nil {
		entry.Error = err.Error()
		if errors.Is(err, facecropper.ErrNoFaceFound) {
			l.Warn("no face found")
		} else {
			l.WithError(err).Error("processing failed")
		}
		return entry
	}

	for _, s := range saved {
		size := int64(0)
		if info, err := os.Stat(s.Path); err == nil {
			size = info.Size()
		}
		l.WithFields(logrus.Fields{
			"path":       s.Path,
			"confidence": fmt.Sprintf("%.3f", s.Confidence),
			"size":       utils.FormatFileSize(size),
		}).Info("wrote face")
		entry.Faces = append(entry.Faces, savedFace{Path: s.Path, Box: s.Box, Confidence: s.Confidence})
	}
	return entry
}

// cropToStdout writes the first face of one input to stdout as PNG
func cropToStdout(ctx context.Context, fc *facecropper.FaceCropper, in string, opts *facecropper.CropOptions) error {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("`-` should be used with a pipe for stdout")
	}

	proc := processing.NewProcessor()
	var (
		img image.Image
		err error
	)
	if in == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("`-` should be used with a pipe for stdin")
		}
		data, rerr := io.ReadAll(io.LimitReader(os.Stdin, processing.MaxDownloadSize))
		if rerr != nil {
			return fmt.Errorf("failed to read stdin: %w", rerr)
		}
		img, err = proc.DecodeImage(data)
	} else {
		img, err = proc.LoadImageSmart(in)
	}
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	face, err := fc.CropFaceFromImage(ctx, img, opts)
	if err != nil {
		return err
	}
	return proc.EncodeImage(os.Stdout, face.Image, "png", 0, false)
}

// testVision checks that the configured vision model can see images at all
func testVision(ctx context.Context, cfg *config.Config, in string) error {
	d, err := backend.NewVisionDetector(cfg)
	if err != nil {
		return err
	}

	proc := processing.NewProcessor()
	img, err := proc.LoadImageSmart(in)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	imgB64, err := proc.PrepareImageForModel(img, "jpg", 1024, 90)
	if err != nil {
		return err
	}

	reply, err := d.TestVision(ctx, imgB64)
	if err != nil {
		return fmt.Errorf("vision test failed: %w", err)
	}
	fmt.Println(strings.TrimSpace(reply))
	return nil
}

func writeManifest(path string, entries []manifestEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
