// handle.go - Prozessweiter Besitz der geladenen Pipeline
//
// Dieses Modul enthaelt:
// - Handle: exklusiver Checkout (acquire/tune/invoke/release)
// - Lease: ein ausgecheckter Zugriff auf die Pipeline
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Handle owns the process-wide pipeline. Cache tuning mutates shared
// pipeline state, so tune and invoke must happen inside one Lease and at
// most one Lease exists at a time.
type Handle struct {
	mu       sync.Mutex
	pipeline Pipeline
	sem      *semaphore.Weighted
	closed   bool
}

// NewHandle wraps a loaded pipeline.
func NewHandle(p Pipeline) *Handle {
	return &Handle{
		pipeline: p,
		sem:      semaphore.NewWeighted(1),
	}
}

// Acquire blocks until the pipeline is free or ctx is done.
func (h *Handle) Acquire(ctx context.Context) (*Lease, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return h.lease()
}

// TryAcquire checks out the pipeline without waiting. It returns ErrBusy
// when another lease is active.
func (h *Handle) TryAcquire() (*Lease, error) {
	if !h.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	return h.lease()
}

func (h *Handle) lease() (*Lease, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.sem.Release(1)
		return nil, ErrClosed
	}
	return &Lease{h: h, p: h.pipeline}, nil
}

// Busy reports whether a lease is currently held.
func (h *Handle) Busy() bool {
	if h.sem.TryAcquire(1) {
		h.sem.Release(1)
		return false
	}
	return true
}

// Supports forwards the capability query to the pipeline.
func (h *Handle) Supports(c Capability) bool {
	return h.pipeline.Supports(c)
}

// Alive reports false once the pipeline lost its backend.
func (h *Handle) Alive() bool {
	if l, ok := h.pipeline.(Liveness); ok {
		return l.Alive()
	}
	return true
}

// Close waits for the active lease, then closes the pipeline.
func (h *Handle) Close() error {
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.pipeline.Close()
}

// Lease is exclusive access to the pipeline for one request.
type Lease struct {
	h    *Handle
	p    Pipeline
	once sync.Once
}

// Pipeline returns the checked out pipeline.
func (l *Lease) Pipeline() Pipeline {
	return l.p
}

// Tuner runs the capability query on the checked out pipeline.
func (l *Lease) Tuner() (CacheTuner, error) {
	return TunerOf(l.p)
}

// Release returns the pipeline to the handle. Calling it more than once
// is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.h.sem.Release(1)
	})
}
