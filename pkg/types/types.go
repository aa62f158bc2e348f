package types

import (
	"fmt"
	"image"
)

// BoundingBox is a face region in pixel coordinates of the source image.
// Max coordinates are exclusive, matching image.Rectangle.
type BoundingBox struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// Rect returns the box as an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Width returns the horizontal extent of the box
func (b BoundingBox) Width() int {
	return b.XMax - b.XMin
}

// Height returns the vertical extent of the box
func (b BoundingBox) Height() int {
	return b.YMax - b.YMin
}

// Empty reports whether the box has no area
func (b BoundingBox) Empty() bool {
	return b.XMax <= b.XMin || b.YMax <= b.YMin
}

// CroppedFace is one detected face: its box in the source image, the
// fixed-size thumbnail cut from that box and the detector confidence.
type CroppedFace struct {
	Box        BoundingBox  `json:"box"`
	Image      *image.NRGBA `json:"-"`
	Confidence float64      `json:"confidence"`
}

// RawDetection is a box as produced by a cascade, before padding and clipping.
type RawDetection struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Score float64 `json:"score"`
}

// RawDetectionFromSlice converts the [x1, y1, x2, y2, score] layout used by
// MTCNN style detectors. Extra trailing values (landmarks) are ignored.
func RawDetectionFromSlice(v []float64) (RawDetection, error) {
	if len(v) < 5 {
		return RawDetection{}, fmt.Errorf("raw detection needs 5 values, got %d", len(v))
	}
	return RawDetection{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], Score: v[4]}, nil
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FaceLocation is a single face reported by a vision model
type FaceLocation struct {
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FaceLocations contains the complete reply of a vision model asked to locate faces
type FaceLocations struct {
	Faces       []FaceLocation `json:"faces"`
	Description string         `json:"description"`
}

// ProcessingOptions contains options for batch processing of image files
type ProcessingOptions struct {
	OutputDir string
	Format    string
	Quality   int
	Lossless  bool
	Prefix    string
	Suffix    string
}
