// Package ndarray holds in-memory pixel arrays of arbitrary numeric type and rank.
package ndarray

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/exp/constraints"
)

// Number is any element type an Array can be built from.
type Number interface {
	constraints.Integer | constraints.Float
}

// Array is a row-major n-dimensional array of pixel intensities.
// Images use the [height, width] or [height, width, channels] layout.
type Array struct {
	shape     []int
	data      []float64
	fullScale float64
}

// New copies data into an Array of the given shape.
// The full-scale intensity is inferred from T: 255 for uint8, 65535 for
// uint16, 1.0 for floats and 255 for any other integer type.
func New[T Number](shape []int, data []T) (Array, error) {
	n := 1
	for i, d := range shape {
		if d < 0 {
			return Array{}, fmt.Errorf("negative extent %d on axis %d", d, i)
		}
		if d != 0 && n > math.MaxInt/d {
			return Array{}, fmt.Errorf("shape %v overflows the element count", shape)
		}
		n *= d
	}
	if n != len(data) {
		return Array{}, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}

	values := make([]float64, len(data))
	for i, v := range data {
		values[i] = float64(v)
	}

	return Array{
		shape:     append([]int(nil), shape...),
		data:      values,
		fullScale: fullScaleOf[T](),
	}, nil
}

func fullScaleOf[T Number]() float64 {
	var zero T
	switch any(zero).(type) {
	case uint16:
		return 65535
	case float32, float64:
		return 1
	default:
		return 255
	}
}

// WithFullScale returns a copy of a whose intensities saturate at v.
func (a Array) WithFullScale(v float64) Array {
	a.fullScale = v
	return a
}

// FullScale returns the value that maps to full intensity
func (a Array) FullScale() float64 {
	return a.fullScale
}

// Shape returns a copy of the array extents
func (a Array) Shape() []int {
	return append([]int(nil), a.shape...)
}

// NDim returns the number of dimensions
func (a Array) NDim() int {
	return len(a.shape)
}

// Len returns the number of elements
func (a Array) Len() int {
	return len(a.data)
}

// At returns the element at the given index. It panics on an index that is
// out of range, like a slice access would.
func (a Array) At(idx ...int) float64 {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for %d dimensions", len(idx), len(a.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %d out of range [0,%d) on axis %d", v, a.shape[i], i))
		}
		off = off*a.shape[i] + v
	}
	return a.data[off]
}

// FromImage converts img to an Array with uint8 full scale. Gray images give
// a [height, width] array, anything else [height, width, 4] in RGBA order.
func FromImage(img image.Image) Array {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		data := make([]float64, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				data = append(data, float64(src.GrayAt(x, y).Y))
			}
		}
		return Array{shape: []int{h, w}, data: data, fullScale: 255}
	case *image.Gray16:
		data := make([]float64, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				data = append(data, float64(src.Gray16At(x, y).Y))
			}
		}
		return Array{shape: []int{h, w}, data: data, fullScale: 65535}
	}

	data := make([]float64, 0, w*h*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data = append(data, float64(c.R), float64(c.G), float64(c.B), float64(c.A))
		}
	}
	return Array{shape: []int{h, w, 4}, data: data, fullScale: 255}
}
