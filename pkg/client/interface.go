package client

import (
	"context"

	"github.com/menta2k/face-cropper/pkg/types"
)

// VisionClient is a multimodal model that can be asked about an image
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceLocations, error)
}
