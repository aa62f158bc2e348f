// Package opencv detects faces with an OpenCV Haar cascade.
//
// The detector needs OpenCV and is only built with the gocv build tag.
// Haar cascades report no score, so every face has confidence 1 and the
// stage thresholds do not apply.
package opencv

import "fmt"

// Config holds configuration for the Haar cascade
type Config struct {
	CascadePath  string
	ScaleFactor  float64 // window growth per scale, must be > 1
	MinNeighbors int
}

// DefaultConfig returns OpenCV's DetectMultiScale defaults
func DefaultConfig() Config {
	return Config{
		ScaleFactor:  1.1,
		MinNeighbors: 3,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.CascadePath == "" {
		return fmt.Errorf("no haar cascade file configured")
	}
	if c.ScaleFactor <= 1 {
		return fmt.Errorf("scale factor must be greater than 1, got %v", c.ScaleFactor)
	}
	if c.MinNeighbors < 0 {
		return fmt.Errorf("min neighbors must not be negative")
	}
	return nil
}
