package cropper

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/face-cropper/pkg/types"
)

// Cropper turns raw detections into padded, clipped and resized face thumbnails
type Cropper struct {
	config CropConfig
}

// CropConfig holds configuration for face cropping
type CropConfig struct {
	// Margin is the total padding in pixels added around a detection,
	// half of it on each side.
	Margin int
	// ThumbnailSize is the side of the square output image.
	ThumbnailSize int
}

// DefaultConfig returns the default crop configuration
func DefaultConfig() CropConfig {
	return CropConfig{
		Margin:        32,
		ThumbnailSize: 160,
	}
}

// Validate checks if the configuration is valid
func (c CropConfig) Validate() error {
	if c.Margin < 0 {
		return fmt.Errorf("margin must not be negative")
	}
	if c.ThumbnailSize < 1 {
		return fmt.Errorf("thumbnail size must be positive")
	}
	return nil
}

// New creates a new Cropper with default configuration
func New() *Cropper {
	return &Cropper{config: DefaultConfig()}
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig) *Cropper {
	return &Cropper{config: config}
}

// Config returns the crop configuration
func (c *Cropper) Config() CropConfig {
	return c.config
}

// Box pads raw by half the margin on every side and clips it to size
// (X = width, Y = height). Coordinates are truncated to whole pixels.
// A box left without area after clipping yields types.ErrDegenerateCrop.
func (c *Cropper) Box(raw types.RawDetection, size image.Point) (types.BoundingBox, error) {
	for _, v := range []float64{raw.X1, raw.Y1, raw.X2, raw.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return types.BoundingBox{}, fmt.Errorf("%w: non-finite coordinates %+v", types.ErrDegenerateCrop, raw)
		}
	}

	// clamp before truncating, int() of an out of range float is implementation specific
	half := float64(c.config.Margin) / 2
	w, h := float64(size.X), float64(size.Y)
	box := types.BoundingBox{
		XMin: int(clamp(raw.X1-half, 0, w)),
		YMin: int(clamp(raw.Y1-half, 0, h)),
		XMax: int(clamp(raw.X2+half, 0, w)),
		YMax: int(clamp(raw.Y2+half, 0, h)),
	}

	if box.Empty() {
		return types.BoundingBox{}, fmt.Errorf("%w: detection %.1f,%.1f,%.1f,%.1f clips to %dx%d in a %dx%d image",
			types.ErrDegenerateCrop, raw.X1, raw.Y1, raw.X2, raw.Y2, box.Width(), box.Height(), size.X, size.Y)
	}
	return box, nil
}

// ToCroppedFace cuts the padded box out of img and resizes it to the square
// thumbnail size with bilinear interpolation (imaging.Linear).
func (c *Cropper) ToCroppedFace(raw types.RawDetection, img *image.NRGBA, size image.Point) (types.CroppedFace, error) {
	box, err := c.Box(raw, size)
	if err != nil {
		return types.CroppedFace{}, err
	}

	rect := box.Rect().Add(img.Bounds().Min)
	cropped := imaging.Crop(img, rect)
	thumb := imaging.Resize(cropped, c.config.ThumbnailSize, c.config.ThumbnailSize, imaging.Linear)

	return types.CroppedFace{
		Box:        box,
		Image:      thumb,
		Confidence: clamp(raw.Score, 0, 1),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
