// Package onnx runs an exported MTCNN graph with onnxruntime.
//
// The graph takes the pyramid and all three stages as one model with inputs
//
//	image      float32 [H, W, 3]   pixel values 0..255
//	min_size   float32 [1]
//	thresholds float32 [3]
//	factor     float32 [1]
//
// and a single output "boxes" float32 [N, 5] holding x1, y1, x2, y2, score.
// Extra columns (landmarks) are ignored.
package onnx

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Config holds configuration for the onnxruntime backend
type Config struct {
	ModelPath         string
	SharedLibraryPath string // empty uses the onnxruntime default lookup
	IntraOpThreads    int    // 0 uses runtime.NumCPU
}

var (
	inputNames  = []string{"image", "min_size", "thresholds", "factor"}
	outputNames = []string{"boxes"}

	envMu sync.Mutex
)

// initEnvironment initializes onnxruntime once per process. A failed attempt
// can be retried.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing onnxruntime: %w", err)
	}
	return nil
}

// Cascade runs detection on a dynamic onnxruntime session. Run is safe for
// concurrent use.
type Cascade struct {
	session *ort.DynamicAdvancedSession
}

// NewLoader returns a detector.Loader creating the onnxruntime session
func NewLoader(config Config) detector.Loader {
	return detector.LoaderFunc(func(context.Context) (detector.Cascade, error) {
		return newCascade(config)
	})
}

func newCascade(config Config) (*Cascade, error) {
	if config.ModelPath == "" {
		return nil, fmt.Errorf("no onnx model configured")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("error opening onnx model: %w", err)
	}

	if err := initEnvironment(config.SharedLibraryPath); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	threads := config.IntraOpThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(config.ModelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return &Cascade{session: session}, nil
}

// Detect implements detector.Cascade
func (c *Cascade) Detect(ctx context.Context, img *image.NRGBA, p detector.Params) ([]types.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := img.Bounds().Size()
	inputs := make([]ort.Value, 0, len(inputNames))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()

	add := func(shape ort.Shape, data []float32) error {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return fmt.Errorf("error creating input tensor: %w", err)
		}
		inputs = append(inputs, t)
		return nil
	}
	if err := add(ort.NewShape(int64(size.Y), int64(size.X), 3), ImageTensorData(img)); err != nil {
		return nil, err
	}
	if err := add(ort.NewShape(1), []float32{float32(p.MinFaceSize)}); err != nil {
		return nil, err
	}
	if err := add(ort.NewShape(3), p.Thresholds[:]); err != nil {
		return nil, err
	}
	if err := add(ort.NewShape(1), []float32{p.ScaleFactor}); err != nil {
		return nil, err
	}

	outputs := []ort.Value{nil}
	if err := c.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	defer outputs[0].Destroy()

	boxes, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	return BoxesFromOutput(boxes.GetShape(), boxes.GetData())
}

// Close releases the session
func (c *Cascade) Close() error {
	return c.session.Destroy()
}

// ImageTensorData lays img out as H x W x 3 float32 pixel values
func ImageTensorData(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			data = append(data, float32(px[0]), float32(px[1]), float32(px[2]))
		}
	}
	return data
}

// BoxesFromOutput converts an [N, 5+] output tensor into raw detections
func BoxesFromOutput(shape ort.Shape, data []float32) ([]types.RawDetection, error) {
	if len(shape) == 1 && shape[0] == 0 {
		return nil, nil
	}
	if len(shape) != 2 || shape[1] < 5 {
		return nil, fmt.Errorf("unexpected output shape %v, want [N, 5]", shape)
	}

	n, cols := int(shape[0]), int(shape[1])
	if len(data) != n*cols {
		return nil, fmt.Errorf("output has %d values for shape %v", len(data), shape)
	}

	out := make([]types.RawDetection, 0, n)
	row := make([]float64, cols)
	for i := 0; i < n; i++ {
		for j := 0; j < cols; j++ {
			row[j] = float64(data[i*cols+j])
		}
		raw, err := types.RawDetectionFromSlice(row)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
