package ndarray

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, err := New([]int{2, 3}, []uint8{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, a.Shape())
	assert.Equal(t, 2, a.NDim())
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 255.0, a.FullScale())
	assert.Equal(t, 6.0, a.At(1, 2))
	assert.Equal(t, 2.0, a.At(0, 1))
}

func TestNewShapeMismatch(t *testing.T) {
	_, err := New([]int{2, 2}, []float32{1, 2, 3})
	assert.Error(t, err)

	_, err = New([]int{-1}, []int{})
	assert.Error(t, err)
}

func TestNewShapeOverflow(t *testing.T) {
	_, err := New([]int{math.MaxInt/2 + 1, 4}, []uint8{})
	assert.Error(t, err)

	_, err = New([]int{math.MaxInt, 2, 0}, []uint8{})
	assert.Error(t, err)

	// a zero extent after large ones is still a valid empty array
	a, err := New([]int{1 << 10, 1 << 10, 0}, []uint8{})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Len())
}

func TestFullScaleByType(t *testing.T) {
	u16, err := New([]int{1}, []uint16{7})
	require.NoError(t, err)
	assert.Equal(t, 65535.0, u16.FullScale())

	f64, err := New([]int{1}, []float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, 1.0, f64.FullScale())

	i32, err := New([]int{1}, []int32{12})
	require.NoError(t, err)
	assert.Equal(t, 255.0, i32.FullScale())

	assert.Equal(t, 100.0, f64.WithFullScale(100).FullScale())
	assert.Equal(t, 1.0, f64.FullScale(), "WithFullScale must not mutate the receiver")
}

func TestShapeIsCopied(t *testing.T) {
	shape := []int{1, 2}
	a, err := New(shape, []int{1, 2})
	require.NoError(t, err)

	shape[0] = 9
	a.Shape()[1] = 9
	assert.Equal(t, []int{1, 2}, a.Shape())
}

func TestAtPanicsOutOfRange(t *testing.T) {
	a, err := New([]int{2, 2}, []int{1, 2, 3, 4})
	require.NoError(t, err)

	assert.Panics(t, func() { a.At(2, 0) })
	assert.Panics(t, func() { a.At(0) })
}

func TestFromImageGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.SetGray(1, 2, color.Gray{Y: 200})

	a := FromImage(img)
	assert.Equal(t, []int{3, 4}, a.Shape())
	assert.Equal(t, 200.0, a.At(2, 1))
}

func TestFromImageColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 5, 2))
	img.Set(4, 1, color.RGBA{10, 20, 30, 255})

	a := FromImage(img)
	assert.Equal(t, []int{2, 5, 4}, a.Shape())
	assert.Equal(t, 10.0, a.At(1, 4, 0))
	assert.Equal(t, 30.0, a.At(1, 4, 2))
	assert.Equal(t, 255.0, a.At(1, 4, 3))
}
