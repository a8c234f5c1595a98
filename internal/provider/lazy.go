package provider

import (
	"context"
	"fmt"
	"sync"
)

// InitFunc builds a ready FaceProvider, typically loading models or
// waiting for a remote inference backend.
type InitFunc func(ctx context.Context) (FaceProvider, error)

// Lazy defers provider initialization to first use. Initialization runs at
// most once successfully; a failed attempt is reported to the caller and
// retried by the next call.
type Lazy struct {
	init InitFunc

	mu    sync.Mutex
	ready FaceProvider
}

// NewLazy wraps init in a guarded one-time initializer.
func NewLazy(init InitFunc) *Lazy {
	return &Lazy{init: init}
}

// Get returns the initialized provider, running init if needed.
func (l *Lazy) Get(ctx context.Context) (FaceProvider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready != nil {
		return l.ready, nil
	}

	p, err := l.init(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize face provider: %w", err)
	}
	l.ready = p
	return p, nil
}

// Ready reports whether initialization has completed.
func (l *Lazy) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready != nil
}

// DetectFaces implements FaceProvider.
func (l *Lazy) DetectFaces(ctx context.Context, image []byte) ([]DetectedFace, error) {
	p, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return p.DetectFaces(ctx, image)
}

var _ FaceProvider = (*Lazy)(nil)
