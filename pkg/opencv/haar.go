//go:build gocv

package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Cascade wraps a gocv.CascadeClassifier. The classifier is not safe for
// concurrent use, calls are serialized.
type Cascade struct {
	config Config
	mu     sync.Mutex
	cls    gocv.CascadeClassifier
}

// NewLoader returns a detector.Loader reading the Haar cascade XML
func NewLoader(config Config) detector.Loader {
	return detector.LoaderFunc(func(context.Context) (detector.Cascade, error) {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		cls := gocv.NewCascadeClassifier()
		if !cls.Load(config.CascadePath) {
			cls.Close()
			return nil, fmt.Errorf("error loading haar cascade %s", config.CascadePath)
		}
		return &Cascade{config: config, cls: cls}, nil
	})
}

// Close releases the classifier
func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cls.Close()
}

// Detect implements detector.Cascade
func (c *Cascade) Detect(ctx context.Context, img *image.NRGBA, p detector.Params) ([]types.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("error converting image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("error converting to grayscale: %w", err)
	}

	minSize := image.Pt(p.MinFaceSize, p.MinFaceSize)

	c.mu.Lock()
	rects := c.cls.DetectMultiScaleWithParams(gray, c.config.ScaleFactor, c.config.MinNeighbors, 0, minSize, image.Point{})
	c.mu.Unlock()

	out := make([]types.RawDetection, 0, len(rects))
	for _, r := range rects {
		out = append(out, types.RawDetection{
			X1:    float64(r.Min.X),
			Y1:    float64(r.Min.Y),
			X2:    float64(r.Max.X),
			Y2:    float64(r.Max.Y),
			Score: 1,
		})
	}
	return out, nil
}
