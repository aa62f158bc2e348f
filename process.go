package facecropper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/face-cropper/pkg/processing"
	"github.com/menta2k/face-cropper/pkg/types"
)

// SavedFace is a cropped face written to disk
type SavedFace struct {
	types.CroppedFace
	Path string `json:"path"`
}

// ProcessImageFile is a convenience function that loads an image from a
// path or URL, crops every face and saves the thumbnails into
// out.OutputDir as <prefix><name><suffix>_<n>.<format>.
func (fc *FaceCropper) ProcessImageFile(ctx context.Context, input string, out types.ProcessingOptions, opts *CropOptions) ([]SavedFace, error) {
	proc := processing.NewProcessor()

	img, err := proc.LoadImageSmart(input)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	faces, err := fc.CropFacesFromImage(ctx, img, opts)
	if err != nil {
		return nil, err
	}

	if out.OutputDir == "" {
		out.OutputDir = "."
	}
	if err := os.MkdirAll(out.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if out.Quality <= 0 {
		out.Quality = 90
	}

	base := getBaseName(input)
	saved := make([]SavedFace, 0, len(faces))
	for i, face := range faces {
		name := fmt.Sprintf("%s%s%s_%d%s", out.Prefix, base, out.Suffix, i, processing.Extension(out.Format))
		path := filepath.Join(out.OutputDir, name)
		if err := proc.SaveImage(face.Image, path, out.Format, out.Quality, out.Lossless); err != nil {
			return nil, fmt.Errorf("failed to save face %d: %w", i, err)
		}
		saved = append(saved, SavedFace{CroppedFace: face, Path: path})
	}

	return saved, nil
}

// getBaseName extracts the base filename without extension. Query strings
// of URLs are dropped.
func getBaseName(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 && strings.Contains(path, "://") {
		path = path[:i]
	}
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	if ext := filepath.Ext(path); ext != "" {
		path = strings.TrimSuffix(path, ext)
	}
	if path == "" {
		return "image"
	}
	return path
}
