package detector

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/menta2k/face-cropper/pkg/types"
)

func staticCascade(boxes []types.RawDetection, seen *Params) Cascade {
	return CascadeFunc(func(_ context.Context, _ *image.NRGBA, p Params) ([]types.RawDetection, error) {
		if seen != nil {
			*seen = p
		}
		return boxes, nil
	})
}

func threeBoxes() []types.RawDetection {
	return []types.RawDetection{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.8},
		{X1: 20, Y1: 20, X2: 30, Y2: 30, Score: 0.99},
		{X1: 40, Y1: 40, X2: 50, Y2: 50, Score: 0.9},
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.MinFaceSize != 20 || cfg.ScaleFactor != 0.709 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.FaceLimit != NoLimit {
		t.Errorf("Expected no face limit by default, got %d", cfg.FaceLimit)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"min size", func(c *Config) { c.MinFaceSize = 0 }},
		{"threshold", func(c *Config) { c.Thresholds[1] = 1.5 }},
		{"scale factor", func(c *Config) { c.ScaleFactor = 1 }},
		{"face limit", func(c *Config) { c.FaceLimit = -1 }},
	}

	for _, test := range tests {
		cfg := DefaultConfig()
		test.modify(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", test.name)
		}
	}
}

func TestParamsThresholdOverride(t *testing.T) {
	cfg := DefaultConfig()

	p := cfg.Params(0)
	if p.Thresholds != cfg.Thresholds {
		t.Errorf("Expected configured thresholds, got %v", p.Thresholds)
	}

	p = cfg.Params(0.95)
	want := [3]float32{0.6, 0.7, 0.95}
	if p.Thresholds != want {
		t.Errorf("Expected %v, got %v", want, p.Thresholds)
	}
	if cfg.Thresholds[2] != 0.7 {
		t.Error("Params must not modify the config")
	}
}

func TestDetectPassesParams(t *testing.T) {
	var seen Params
	p := DefaultConfig().Params(0.9)

	if _, err := Detect(context.Background(), staticCascade(threeBoxes(), &seen), nil, p, NoLimit); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if seen != p {
		t.Errorf("Cascade received %+v, want %+v", seen, p)
	}
}

func TestDetectNoFace(t *testing.T) {
	_, err := Detect(context.Background(), staticCascade(nil, nil), nil, Params{}, NoLimit)
	if !errors.Is(err, types.ErrNoFaceFound) {
		t.Errorf("Expected ErrNoFaceFound, got %v", err)
	}
}

func TestDetectFaceLimit(t *testing.T) {
	cascade := staticCascade(threeBoxes(), nil)

	all, err := Detect(context.Background(), cascade, nil, Params{}, NoLimit)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 detections, got %d", len(all))
	}

	for k := 1; k <= 4; k++ {
		limited, err := Detect(context.Background(), cascade, nil, Params{}, k)
		if err != nil {
			t.Fatalf("Detect with limit %d failed: %v", k, err)
		}
		if len(limited) > k {
			t.Errorf("Limit %d returned %d detections", k, len(limited))
		}
		for i := range limited {
			if limited[i] != all[i] {
				t.Errorf("Limit %d reordered detection %d", k, i)
			}
		}
	}
}

func TestDetectErrors(t *testing.T) {
	boom := errors.New("session closed")
	failing := CascadeFunc(func(context.Context, *image.NRGBA, Params) ([]types.RawDetection, error) {
		return nil, boom
	})

	if _, err := Detect(context.Background(), failing, nil, Params{}, NoLimit); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped cascade error, got %v", err)
	}

	if _, err := Detect(context.Background(), staticCascade(threeBoxes(), nil), nil, Params{}, -2); err == nil {
		t.Error("Expected error for negative face limit")
	}
}
