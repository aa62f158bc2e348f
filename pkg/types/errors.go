package types

import (
	"errors"
	"fmt"
)

var (
	// ErrIncorrectImageDimensions is returned for inputs that cannot hold a 2D image.
	ErrIncorrectImageDimensions = errors.New("incorrect image dimensions")

	// ErrNoFaceFound is returned when the detector finds nothing. It is an
	// expected outcome for images without faces, not a failure of the detector.
	ErrNoFaceFound = errors.New("no face is found in the given image")

	// ErrInitialization is matched by every InitError.
	ErrInitialization = errors.New("detector initialization failed")

	// ErrDegenerateCrop is returned when a padded and clipped box has no area.
	ErrDegenerateCrop = errors.New("degenerate crop box")
)

// InitError wraps the cause of a failed detector construction.
type InitError struct {
	Backend string
	Cause   error
}

func (e *InitError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s (%s): %v", ErrInitialization, e.Backend, e.Cause)
	}
	return fmt.Sprintf("%s: %v", ErrInitialization, e.Cause)
}

func (e *InitError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrInitialization) hold for any InitError.
func (e *InitError) Is(target error) bool {
	return target == ErrInitialization
}
