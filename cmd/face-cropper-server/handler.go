package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/user0608/goones/answer"
	"github.com/user0608/goones/errs"

	facecropper "github.com/menta2k/face-cropper"
	"github.com/menta2k/face-cropper/pkg/processing"
	"github.com/menta2k/face-cropper/pkg/types"
)

var acceptedTypes = []string{"image/png", "image/jpeg", "image/webp"}

// faceResponse is one face in the JSON reply of POST /crop
type faceResponse struct {
	Box        types.BoundingBox `json:"box"`
	Confidence float64           `json:"confidence"`
	Image      string            `json:"image"` // base64 PNG
}

type cropResponse struct {
	Faces []faceResponse `json:"faces"`
}

// Handler serves face crops of uploaded images
type Handler struct {
	cropper   *facecropper.FaceCropper
	processor *processing.Processor
	log       logrus.FieldLogger
}

func NewHandler(fc *facecropper.FaceCropper) *Handler {
	return &Handler{cropper: fc, processor: processing.NewProcessor(), log: logrus.StandardLogger()}
}

// SetLogger replaces the logger for internal errors
func (h *Handler) SetLogger(log logrus.FieldLogger) {
	h.log = log
}

// Register mounts the routes on e
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.Health)
	e.POST("/crop", h.CropFaces)
	e.POST("/crop/single", h.CropFace)
}

// Health reports liveness and whether the detector is loaded
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "OK",
		"ready":   h.cropper.Ready(),
		"version": facecropper.GetVersion(),
	})
}

// CropFaces returns every face as a base64 PNG thumbnail
func (h *Handler) CropFaces(c echo.Context) error {
	opts, err := cropOptions(c)
	if err != nil {
		return h.fail(c, err)
	}
	img, err := h.readImage(c)
	if err != nil {
		return h.fail(c, err)
	}

	faces, err := h.cropper.CropFacesFromImage(c.Request().Context(), img, opts)
	if err != nil {
		return h.fail(c, h.mapError(err))
	}

	resp := cropResponse{Faces: make([]faceResponse, 0, len(faces))}
	for _, face := range faces {
		var buf bytes.Buffer
		if err := h.processor.EncodeImage(&buf, face.Image, "png", 0, false); err != nil {
			return answer.Err(c, errs.InternalErrorDirect("failed to encode the face"))
		}
		resp.Faces = append(resp.Faces, faceResponse{
			Box:        face.Box,
			Confidence: face.Confidence,
			Image:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// CropFace returns the first face as an image in the requested format
func (h *Handler) CropFace(c echo.Context) error {
	opts, err := cropOptions(c)
	if err != nil {
		return h.fail(c, err)
	}
	format := c.QueryParam("format")
	switch format {
	case "":
		format = "png"
	case "png", "jpg", "jpeg", "webp":
	default:
		return answer.Err(c, errs.BadRequestDirect("format must be png, jpg or webp"))
	}

	img, err := h.readImage(c)
	if err != nil {
		return h.fail(c, err)
	}

	face, err := h.cropper.CropFaceFromImage(c.Request().Context(), img, opts)
	if err != nil {
		return h.fail(c, h.mapError(err))
	}

	var buf bytes.Buffer
	if err := h.processor.EncodeImage(&buf, face.Image, format, 90, false); err != nil {
		return answer.Err(c, errs.InternalErrorDirect("failed to encode the face"))
	}
	result := buf.Bytes()
	c.Response().Header().Set("X-Face-Confidence", strconv.FormatFloat(face.Confidence, 'f', 4, 64))
	return c.Blob(http.StatusOK, mimetype.Detect(result).String(), result)
}

func (h *Handler) readImage(c echo.Context) (image.Image, error) {
	content, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			// body limit exceeded while streaming
			return nil, he
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errs.BadRequestDirect("the uploaded image is truncated or corrupt")
		}
		return nil, errs.BadRequestDirect("failed to read the request body")
	}
	if len(content) == 0 {
		return nil, errs.BadRequestDirect("the request body is empty")
	}

	mime := mimetype.Detect(content)
	if !slices.Contains(acceptedTypes, mime.String()) {
		return nil, errs.BadRequestDirect("only PNG, JPEG and WebP images are accepted")
	}

	img, err := h.processor.DecodeImage(content)
	if err != nil {
		return nil, errs.BadRequestDirect("the uploaded image is truncated or corrupt")
	}
	return img, nil
}

// cropOptions reads the threshold and limit query parameters
func cropOptions(c echo.Context) (*facecropper.CropOptions, error) {
	opts := &facecropper.CropOptions{}
	if v := c.QueryParam("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil || t < 0 || t > 1 {
			return nil, errs.BadRequestDirect("threshold must be a number in [0,1]")
		}
		opts.Threshold = float32(t)
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errs.BadRequestDirect("limit must be a non negative integer")
		}
		opts.FaceLimit = n
	}
	return opts, nil
}

// fail answers err, leaving echo errors such as 413 to echo's error handler
func (h *Handler) fail(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return answer.Err(c, err)
}

// mapError turns cropper errors into client or server errors. Internal
// details are logged, not returned.
func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, facecropper.ErrNoFaceFound):
		return errs.BadRequestDirect("no face found in the image")
	case errors.Is(err, facecropper.ErrIncorrectImageDimensions),
		errors.Is(err, facecropper.ErrDegenerateCrop):
		return errs.BadRequestDirect(err.Error())
	case errors.Is(err, facecropper.ErrInitialization):
		h.log.WithError(err).Error("face detector initialization failed")
		return errs.InternalErrorDirect("the face detector is not available")
	default:
		h.log.WithError(err).Error("face cropping failed")
		return errs.InternalErrorDirect("face cropping failed")
	}
}
