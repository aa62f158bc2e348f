// Package detection turns a multimodal vision model into a face cascade.
//
// The model is prompted for normalized face boxes in JSON. Boxes are mapped
// to pixels of the image that was sent, then filtered with the stage-3
// threshold and the minimum face size. The model does not run a real
// proposal/refine/output pipeline, so the first two thresholds and the scale
// factor are ignored.
package detection

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/menta2k/face-cropper/pkg/client"
	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/processing"
	"github.com/menta2k/face-cropper/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks the model for every visible face
const DefaultPrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- One entry per visible human face, largest face first.
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top left corner.
- The box must tightly enclose the face from forehead to chin and ear to ear.
- confidence is your certainty in [0,1] that the box contains a human face.
- Do not guess real identities.
- If no face is visible, return {"faces": [], "description": "no face"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options configures a vision model cascade
type Options struct {
	Model   string
	Prompt  string
	MaxDim  int // longest side of the image sent to the model
	Quality int // JPEG quality of the image sent to the model
}

// DefaultOptions returns options for model
func DefaultOptions(model string) Options {
	return Options{
		Model:   model,
		Prompt:  DefaultPrompt,
		MaxDim:  1024,
		Quality: 90,
	}
}

// Detector locates faces using a vision model
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, opts Options) *Detector {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	return &Detector{
		client:    client,
		processor: processing.NewProcessor(),
		opts:      opts,
	}
}

// Loader returns a detector.Loader that checks the model name and hands
// out d as the cascade.
func (d *Detector) Loader() detector.Loader {
	return detector.LoaderFunc(func(context.Context) (detector.Cascade, error) {
		if d.client == nil {
			return nil, fmt.Errorf("no vision client configured")
		}
		if d.opts.Model == "" {
			return nil, fmt.Errorf("no vision model configured")
		}
		return d, nil
	})
}

// Detect implements detector.Cascade
func (d *Detector) Detect(ctx context.Context, img *image.NRGBA, p detector.Params) ([]types.RawDetection, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", d.opts.MaxDim, d.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	located, err := d.client.LocateFaces(ctx, d.opts.Model, d.opts.Prompt, imgB64)
	if err != nil {
		return nil, err
	}

	return ToRawDetections(located, img.Bounds().Size(), p), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, d.opts.Model, SimpleTestPrompt, imageB64)
}

// ToRawDetections maps normalized model boxes to pixel detections of an
// image of the given size. Faces under the stage-3 threshold or smaller than
// the minimum face size are dropped; the rest are ordered by confidence.
func ToRawDetections(located *types.FaceLocations, size image.Point, p detector.Params) []types.RawDetection {
	if located == nil {
		return nil
	}

	out := make([]types.RawDetection, 0, len(located.Faces))
	for _, face := range located.Faces {
		if face.Confidence < float64(p.Thresholds[2]) {
			continue
		}

		b := normalizeBox(face.Box)
		raw := types.RawDetection{
			X1:    b.X * float64(size.X),
			Y1:    b.Y * float64(size.Y),
			X2:    (b.X + b.W) * float64(size.X),
			Y2:    (b.Y + b.H) * float64(size.Y),
			Score: clamp(face.Confidence, 0, 1),
		}
		if raw.X2-raw.X1 < float64(p.MinFaceSize) || raw.Y2-raw.Y1 < float64(p.MinFaceSize) {
			continue
		}
		out = append(out, raw)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps box inside the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
