// Package detector defines the boundary to pretrained face detectors and the
// detection call made against them.
package detector

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/face-cropper/pkg/types"
)

// Params are the knobs handed to a cascade on every call.
type Params struct {
	// MinFaceSize is the smallest face side, in pixels, worth searching for.
	MinFaceSize int
	// Thresholds are the per-stage acceptance scores of a three stage cascade.
	Thresholds [3]float32
	// ScaleFactor is the ratio between consecutive levels of the image pyramid.
	ScaleFactor float32
}

// Cascade is an initialized detector. Detect returns boxes in the order the
// detector produced them.
type Cascade interface {
	Detect(ctx context.Context, img *image.NRGBA, p Params) ([]types.RawDetection, error)
}

// Loader constructs a Cascade. It is expensive (graph and weight loading) and
// is expected to run once per process.
type Loader interface {
	Load(ctx context.Context) (Cascade, error)
}

// CascadeFunc adapts a function to the Cascade interface
type CascadeFunc func(ctx context.Context, img *image.NRGBA, p Params) ([]types.RawDetection, error)

func (f CascadeFunc) Detect(ctx context.Context, img *image.NRGBA, p Params) ([]types.RawDetection, error) {
	return f(ctx, img, p)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context) (Cascade, error)

func (f LoaderFunc) Load(ctx context.Context) (Cascade, error) {
	return f(ctx)
}

// NoLimit keeps every detection.
const NoLimit = 0

// Config holds the fixed detection parameters
type Config struct {
	MinFaceSize int
	Thresholds  [3]float32
	ScaleFactor float32
	// FaceLimit caps the number of faces kept per image; NoLimit keeps all.
	FaceLimit int
}

// DefaultConfig returns the parameters the MTCNN weights were tuned with
func DefaultConfig() Config {
	return Config{
		MinFaceSize: 20,
		Thresholds:  [3]float32{0.6, 0.7, 0.7},
		ScaleFactor: 0.709,
		FaceLimit:   NoLimit,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MinFaceSize < 1 {
		return fmt.Errorf("min face size must be positive")
	}
	for i, t := range c.Thresholds {
		if t < 0 || t > 1 {
			return fmt.Errorf("stage %d threshold must be between 0 and 1", i+1)
		}
	}
	if c.ScaleFactor <= 0 || c.ScaleFactor >= 1 {
		return fmt.Errorf("scale factor must be between 0 and 1 (exclusive)")
	}
	if c.FaceLimit < 0 {
		return fmt.Errorf("face limit must not be negative")
	}
	return nil
}

// Params builds the call parameters. A positive thirdThreshold replaces the
// configured stage 3 threshold; the first two stages are never overridden.
func (c Config) Params(thirdThreshold float32) Params {
	p := Params{
		MinFaceSize: c.MinFaceSize,
		Thresholds:  c.Thresholds,
		ScaleFactor: c.ScaleFactor,
	}
	if thirdThreshold > 0 {
		p.Thresholds[2] = thirdThreshold
	}
	return p
}

// Detect runs cascade over img and applies the face limit.
// An empty result is reported as types.ErrNoFaceFound. A positive faceLimit
// truncates the detections without reordering them.
func Detect(ctx context.Context, cascade Cascade, img *image.NRGBA, p Params, faceLimit int) ([]types.RawDetection, error) {
	if faceLimit < 0 {
		return nil, fmt.Errorf("face limit must not be negative, got %d", faceLimit)
	}

	boxes, err := cascade.Detect(ctx, img, p)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(boxes) == 0 {
		return nil, types.ErrNoFaceFound
	}

	if faceLimit != NoLimit && len(boxes) > faceLimit {
		boxes = boxes[:faceLimit]
	}
	return boxes, nil
}
