// Package vision provides a pure Go face cascade backed by pigo.
//
// pigo grows its detection window from MinFaceSize by ScaleFactor instead of
// shrinking the image, so the MTCNN scale factor and the first two stage
// thresholds do not apply. Detection quality is mapped to a confidence in
// (0,1) with Q/(Q+QualityHalf) and filtered with the stage-3 threshold.
package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sort"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Config holds configuration for the pigo cascade
type Config struct {
	CascadePath  string
	MaxSize      int     // largest window side, 0 uses the longest image side
	ShiftFactor  float64 // window step as a fraction of its size
	ScaleFactor  float64 // window growth per scale, must be > 1
	IoUThreshold float64 // clustering overlap
	Angle        float64 // cascade rotation, 0..1 of a full turn
	QualityHalf  float64 // detection quality that maps to confidence 0.5
}

// DefaultConfig returns the default pigo configuration
func DefaultConfig() Config {
	return Config{
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		QualityHalf:  40,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.ShiftFactor <= 0 || c.ShiftFactor > 1 {
		return fmt.Errorf("shift factor must be in (0,1], got %v", c.ShiftFactor)
	}
	if c.ScaleFactor <= 1 {
		return fmt.Errorf("scale factor must be greater than 1, got %v", c.ScaleFactor)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IoU threshold must be in [0,1], got %v", c.IoUThreshold)
	}
	if c.QualityHalf <= 0 {
		return fmt.Errorf("quality half point must be positive, got %v", c.QualityHalf)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("max size must not be negative")
	}
	return nil
}

// FaceDetector runs an unpacked pigo classifier. It only reads the
// classifier, so Detect may be called concurrently.
type FaceDetector struct {
	classifier *pigo.Pigo
	config     Config
}

// Unpack parses a pigo cascade file
func Unpack(cascade []byte, config Config) (d *FaceDetector, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(cascade) < 16 {
		return nil, fmt.Errorf("cascade file too short (%d bytes)", len(cascade))
	}

	// pigo indexes into the packet without bounds checks
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("error unpacking the cascade file: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %w", err)
	}
	return &FaceDetector{classifier: classifier, config: config}, nil
}

// NewLoader returns a detector.Loader reading config.CascadePath
func NewLoader(config Config) detector.Loader {
	return detector.LoaderFunc(func(context.Context) (detector.Cascade, error) {
		if config.CascadePath == "" {
			return nil, fmt.Errorf("no pigo cascade file configured")
		}
		data, err := os.ReadFile(config.CascadePath)
		if err != nil {
			return nil, fmt.Errorf("error reading the cascade file: %w", err)
		}
		return Unpack(data, config)
	})
}

// LoaderFromBytes returns a detector.Loader for an in-memory cascade
func LoaderFromBytes(cascade []byte, config Config) detector.Loader {
	return detector.LoaderFunc(func(context.Context) (detector.Cascade, error) {
		return Unpack(cascade, config)
	})
}

// Detect implements detector.Cascade
func (d *FaceDetector) Detect(ctx context.Context, img *image.NRGBA, p detector.Params) ([]types.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// RgbToGrayscale assumes the image starts at the origin
	if !img.Rect.Min.Eq(image.Point{}) {
		img = imaging.Clone(img)
	}
	cols, rows := img.Rect.Dx(), img.Rect.Dy()

	maxSize := d.config.MaxSize
	if maxSize == 0 {
		maxSize = max(cols, rows)
	}
	minSize := max(p.MinFaceSize, 1)
	if minSize > maxSize {
		return nil, nil
	}

	params := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, d.config.Angle)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	out := make([]types.RawDetection, 0, len(dets))
	for _, det := range dets {
		raw := ToRawDetection(det, d.config.QualityHalf)
		if raw.Score < float64(p.Thresholds[2]) {
			continue
		}
		out = append(out, raw)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// ToRawDetection converts a pigo detection centred at (Col, Row) into a
// corner box with a confidence in (0,1).
func ToRawDetection(det pigo.Detection, qualityHalf float64) types.RawDetection {
	half := float64(det.Scale) / 2
	col, row := float64(det.Col), float64(det.Row)
	return types.RawDetection{
		X1:    col - half,
		Y1:    row - half,
		X2:    col + half,
		Y2:    row + half,
		Score: Confidence(det.Q, qualityHalf),
	}
}

// Confidence maps an unbounded pigo quality score onto [0,1)
func Confidence(q float32, qualityHalf float64) float64 {
	v := float64(q)
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return v / (v + qualityHalf)
}
