package preprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/face-cropper/pkg/ndarray"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Preprocessor validates source arrays and turns them into opaque RGB images
type Preprocessor struct{}

// New creates a new Preprocessor
func New() *Preprocessor {
	return &Preprocessor{}
}

// Preprocess checks the dimensionality of a, normalizes it to three colour
// channels and returns it as an opaque NRGBA image together with its size
// (X = width, Y = height).
//
// Two dimensional arrays are treated as grayscale and replicated into each
// channel. For three dimensional arrays only the first three channels are
// kept and a single channel is replicated. Two channels cannot be mapped to
// RGB and are rejected.
func (p *Preprocessor) Preprocess(a ndarray.Array) (*image.NRGBA, image.Point, error) {
	if a.NDim() < 2 {
		return nil, image.Point{}, fmt.Errorf("%w: unable to align image, it has only %d dimension(s)",
			types.ErrIncorrectImageDimensions, a.NDim())
	}
	if a.NDim() > 3 {
		return nil, image.Point{}, fmt.Errorf("%w: expected 2 or 3 dimensions, got %d",
			types.ErrIncorrectImageDimensions, a.NDim())
	}

	shape := a.Shape()
	height, width := shape[0], shape[1]
	if height == 0 || width == 0 {
		return nil, image.Point{}, fmt.Errorf("%w: empty spatial extent %dx%d",
			types.ErrIncorrectImageDimensions, width, height)
	}
	if width > math.MaxInt/4/height {
		return nil, image.Point{}, fmt.Errorf("%w: extent %dx%d is too large",
			types.ErrIncorrectImageDimensions, width, height)
	}

	channels := 1
	if a.NDim() == 3 {
		channels = shape[2]
		if channels == 0 || channels == 2 {
			return nil, image.Point{}, fmt.Errorf("%w: cannot build 3 channels from %d",
				types.ErrIncorrectImageDimensions, channels)
		}
	}

	scale := 1.0
	if fs := a.FullScale(); fs > 0 {
		scale = 255 / fs
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var rgb [3]uint8
			for c := 0; c < 3; c++ {
				var v float64
				switch {
				case a.NDim() == 2:
					v = a.At(y, x)
				case c < channels && channels >= 3:
					v = a.At(y, x, c)
				default:
					v = a.At(y, x, 0)
				}
				rgb[c] = toByte(v * scale)
			}
			i := img.PixOffset(x, y)
			img.Pix[i+0] = rgb[0]
			img.Pix[i+1] = rgb[1]
			img.Pix[i+2] = rgb[2]
			img.Pix[i+3] = 0xff
		}
	}

	return img, image.Point{X: width, Y: height}, nil
}

// PreprocessImage runs Preprocess on a decoded image
func (p *Preprocessor) PreprocessImage(img image.Image) (*image.NRGBA, image.Point, error) {
	if img == nil {
		return nil, image.Point{}, fmt.Errorf("%w: nil image", types.ErrIncorrectImageDimensions)
	}
	return p.Preprocess(ndarray.FromImage(img))
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
