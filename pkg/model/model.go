// Package model owns the lazily constructed detector of a face cropper.
//
// Construction is serialized: concurrent first callers block until a single
// Load finishes and then share its Cascade. A failed Load leaves the Model
// uninitialized so that the next call tries again.
//
// The Cascade is shared by every caller after initialization. Whether it may
// be used from several goroutines at once is a property of the backend.
package model

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/face-cropper/pkg/detector"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Model lazily initializes a detector.Cascade from a Loader
type Model struct {
	name   string
	loader detector.Loader
	log    logrus.FieldLogger

	mu      sync.Mutex
	cascade detector.Cascade
	loads   int
	ready   atomic.Bool // readable while a load holds mu
}

// New creates a Model for loader. The name is only used in logs and errors.
func New(name string, loader detector.Loader) *Model {
	return &Model{
		name:   name,
		loader: loader,
		log:    logrus.StandardLogger(),
	}
}

// SetLogger replaces the logger used for initialization messages
func (m *Model) SetLogger(log logrus.FieldLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
}

// Ensure returns the initialized cascade, constructing it on first use.
// Construction errors are returned as *types.InitError.
func (m *Model) Ensure(ctx context.Context) (detector.Cascade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cascade != nil {
		return m.cascade, nil
	}
	if m.loader == nil {
		return nil, &types.InitError{Backend: m.name, Cause: errNoLoader}
	}

	start := time.Now()
	cascade, err := m.loader.Load(ctx)
	if err != nil {
		return nil, &types.InitError{Backend: m.name, Cause: err}
	}
	if cascade == nil {
		return nil, &types.InitError{Backend: m.name, Cause: errNilCascade}
	}

	m.cascade = cascade
	m.loads++
	m.ready.Store(true)
	m.log.WithFields(logrus.Fields{
		"backend":  m.name,
		"duration": time.Since(start),
	}).Info("face detector initialized")

	return cascade, nil
}

// Ready reports whether the cascade has been constructed
func (m *Model) Ready() bool {
	return m.ready.Load()
}

// Loads returns the number of successful constructions, which is at most one.
func (m *Model) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Name returns the backend name the model was created with
func (m *Model) Name() string {
	return m.name
}
