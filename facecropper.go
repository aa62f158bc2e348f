// Package facecropper crops faces out of images.
//
// A FaceCropper validates an input array, lazily builds its face detector on
// first use, runs detection with fixed cascade parameters and turns every
// detection into a padded, clipped and resized square thumbnail.
//
// The detector is injected as a detector.Loader. Backends live in
// pkg/vision (pigo), pkg/onnx (onnxruntime MTCNN graph), pkg/detection
// (Ollama or llama.cpp vision models) and pkg/opencv (Haar cascade, gocv
// build tag). Tests use detector.CascadeFunc doubles.
//
// Basic usage:
//
//	fc := facecropper.New(vision.NewLoader(cfg))
//	faces, err := fc.CropFacesFromImage(ctx, img, nil)
//	if errors.Is(err, facecropper.ErrNoFaceFound) {
//		// nothing to crop
//	}
//
// Errors are typed: ErrIncorrectImageDimensions, ErrNoFaceFound,
// ErrInitialization and ErrDegenerateCrop. Nothing is retried internally and
// there are no partial results.
package facecropper

import (
	"context"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/face-cropper/pkg/cropper"
	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/model"
	"github.com/menta2k/face-cropper/pkg/ndarray"
	"github.com/menta2k/face-cropper/pkg/preprocess"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Version of the face cropper library
const Version = "1.0.0"

var (
	ErrIncorrectImageDimensions = types.ErrIncorrectImageDimensions
	ErrNoFaceFound              = types.ErrNoFaceFound
	ErrInitialization           = types.ErrInitialization
	ErrDegenerateCrop           = types.ErrDegenerateCrop
)

type (
	CroppedFace = types.CroppedFace
	BoundingBox = types.BoundingBox
)

// Config holds the detection and crop parameters of a FaceCropper
type Config struct {
	// Name identifies the detector backend in logs and initialization errors.
	Name      string
	Detection detector.Config
	Crop      cropper.CropConfig
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Name:      "detector",
		Detection: detector.DefaultConfig(),
		Crop:      cropper.DefaultConfig(),
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Crop.Validate(); err != nil {
		return fmt.Errorf("crop: %w", err)
	}
	return nil
}

// CropOptions are per call overrides. Zero fields keep the configured value.
type CropOptions struct {
	// Threshold replaces the stage 3 threshold when positive.
	Threshold float32
	// FaceLimit caps the number of faces when positive.
	FaceLimit int
}

// FaceCropper crops faces using a lazily initialized detector
type FaceCropper struct {
	config       Config
	model        *model.Model
	preprocessor *preprocess.Preprocessor
	cropper      *cropper.Cropper
	log          logrus.FieldLogger
}

// New creates a FaceCropper with default configuration
func New(loader detector.Loader) *FaceCropper {
	fc, _ := NewWithConfig(loader, DefaultConfig())
	return fc
}

// NewWithConfig creates a FaceCropper with custom configuration
func NewWithConfig(loader detector.Loader, config Config) (*FaceCropper, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Name == "" {
		config.Name = "detector"
	}

	return &FaceCropper{
		config:       config,
		model:        model.New(config.Name, loader),
		preprocessor: preprocess.New(),
		cropper:      cropper.NewWithConfig(config.Crop),
		log:          logrus.StandardLogger(),
	}, nil
}

// SetLogger replaces the logger
func (fc *FaceCropper) SetLogger(log logrus.FieldLogger) {
	fc.log = log
	fc.model.SetLogger(log)
}

// Config returns the configuration
func (fc *FaceCropper) Config() Config {
	return fc.config
}

// Ready reports whether the detector has been initialized
func (fc *FaceCropper) Ready() bool {
	return fc.model.Ready()
}

// Init initializes the detector ahead of the first crop. Calling it is optional.
func (fc *FaceCropper) Init(ctx context.Context) error {
	_, err := fc.model.Ensure(ctx)
	return err
}

// CropFace crops the first detected face of src
func (fc *FaceCropper) CropFace(ctx context.Context, src ndarray.Array, opts *CropOptions) (types.CroppedFace, error) {
	img, size, err := fc.preprocessor.Preprocess(src)
	if err != nil {
		return types.CroppedFace{}, err
	}
	return fc.single(ctx, img, size, opts)
}

// CropFaces crops every detected face of src, up to the face limit, in
// detection order.
func (fc *FaceCropper) CropFaces(ctx context.Context, src ndarray.Array, opts *CropOptions) ([]types.CroppedFace, error) {
	img, size, err := fc.preprocessor.Preprocess(src)
	if err != nil {
		return nil, err
	}
	return fc.crop(ctx, img, size, fc.threshold(opts), fc.faceLimit(opts))
}

// CropFaceFromImage is CropFace for a decoded image
func (fc *FaceCropper) CropFaceFromImage(ctx context.Context, img image.Image, opts *CropOptions) (types.CroppedFace, error) {
	nrgba, size, err := fc.preprocessor.PreprocessImage(img)
	if err != nil {
		return types.CroppedFace{}, err
	}
	return fc.single(ctx, nrgba, size, opts)
}

// CropFacesFromImage is CropFaces for a decoded image
func (fc *FaceCropper) CropFacesFromImage(ctx context.Context, img image.Image, opts *CropOptions) ([]types.CroppedFace, error) {
	nrgba, size, err := fc.preprocessor.PreprocessImage(img)
	if err != nil {
		return nil, err
	}
	return fc.crop(ctx, nrgba, size, fc.threshold(opts), fc.faceLimit(opts))
}

func (fc *FaceCropper) single(ctx context.Context, img *image.NRGBA, size image.Point, opts *CropOptions) (types.CroppedFace, error) {
	faces, err := fc.crop(ctx, img, size, fc.threshold(opts), 1)
	if err != nil {
		return types.CroppedFace{}, err
	}
	return faces[0], nil
}

func (fc *FaceCropper) crop(ctx context.Context, img *image.NRGBA, size image.Point, threshold float32, limit int) ([]types.CroppedFace, error) {
	cascade, err := fc.model.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	raws, err := detector.Detect(ctx, cascade, img, fc.config.Detection.Params(threshold), limit)
	if err != nil {
		return nil, err
	}
	fc.log.WithFields(logrus.Fields{
		"faces":  len(raws),
		"width":  size.X,
		"height": size.Y,
	}).Debug("faces detected")

	faces := make([]types.CroppedFace, 0, len(raws))
	for i, raw := range raws {
		face, err := fc.cropper.ToCroppedFace(raw, img, size)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		fc.log.WithFields(logrus.Fields{
			"face":       i,
			"box":        face.Box,
			"confidence": face.Confidence,
		}).Debug("face cropped")
		faces = append(faces, face)
	}
	return faces, nil
}

func (fc *FaceCropper) threshold(opts *CropOptions) float32 {
	if opts == nil {
		return 0
	}
	return opts.Threshold
}

func (fc *FaceCropper) faceLimit(opts *CropOptions) int {
	if opts != nil && opts.FaceLimit != 0 {
		return opts.FaceLimit
	}
	return fc.config.Detection.FaceLimit
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
