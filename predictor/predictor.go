// Package predictor - Die beiden Flux-Varianten hinter einer Predict-Operation.
//
// Dieses Modul enthaelt:
// - Predictor Interface und Varianten-Registry
// - Fehler-Taxonomie fuer Request-Validierung und Inferenz
// - base: gemeinsame Setup-Phase und Pipeline-Checkout
package predictor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"

	"github.com/fluxserve/fluxserve/envconfig"
	"github.com/fluxserve/fluxserve/huggingface"
	"github.com/fluxserve/fluxserve/output"
	"github.com/fluxserve/fluxserve/pipeline"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	ErrInferenceFailure   = errors.New("inference failed")
	ErrNotReady           = errors.New("predictor is not set up")
	ErrUnknownModel       = errors.New("unknown model")
)

// IsValidation reports whether err was caused by the request rather than
// by the pipeline.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAspectRatio) ||
		errors.Is(err, output.ErrInvalidFormat) ||
		errors.Is(err, output.ErrInvalidQuality)
}

// Input holds the raw request inputs, as decoded from JSON.
type Input map[string]any

// Predictor is one servable model variant.
type Predictor interface {
	// Name is the variant name, e.g. "flux-dev".
	Name() string

	// Setup loads and smashes the pipeline. It is called once per process.
	Setup(ctx context.Context, loader pipeline.Loader) error

	// Fields describes the accepted inputs in schema order.
	Fields() []Field

	// Predict runs one request and returns the path of the written image.
	Predict(ctx context.Context, in Input) (string, error)

	Ready() bool
	Busy() bool

	// Defunct reports whether the pipeline lost its backend after setup.
	Defunct() bool

	Close() error
}

// Option configures a Predictor.
type Option func(*base)

// WithTuningUnavailable registers fn to be called whenever a request runs
// without cache tuning because the pipeline lacks the hook.
func WithTuningUnavailable(fn func()) Option {
	return func(b *base) { b.onTuningUnavailable = fn }
}

var registry = map[string]func(...Option) Predictor{
	DevName:     NewDev,
	SchnellName: NewSchnell,
}

// Lookup returns a new, not yet set up, predictor for name.
func Lookup(name string, opts ...Option) (Predictor, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, expected one of %v", ErrUnknownModel, name, Names())
	}
	return fn(opts...), nil
}

// Names returns the registered variant names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// =============================================================================
// Gemeinsame Basis
// =============================================================================

type base struct {
	name   string
	load   pipeline.LoadRequest
	schema *Schema

	mu     sync.RWMutex
	handle *pipeline.Handle

	onTuningUnavailable func()
}

func (b *base) Name() string { return b.name }

func (b *base) Fields() []Field { return b.schema.Fields() }

func (b *base) apply(opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

func (b *base) Setup(ctx context.Context, loader pipeline.Loader) error {
	req := b.load
	req.SmashToken = envconfig.SmashToken()
	req.HFToken = envconfig.HFToken()
	if path, ok := huggingface.GetCachedModel(req.Model); ok {
		slog.Debug("using cached weights", "model", req.Model, "path", path)
		req.LocalPath = path
	}

	p, err := loader.Load(ctx, req)
	if err != nil {
		return fmt.Errorf("setup %s: %w", b.name, err)
	}

	h := pipeline.NewHandle(p)
	b.mu.Lock()
	b.handle = h
	b.mu.Unlock()

	slog.Info("setup complete", "model", b.name, "cache_helper", h.Supports(pipeline.CapabilityCacheTuning))
	return nil
}

func (b *base) current() *pipeline.Handle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle
}

func (b *base) Ready() bool {
	return b.current() != nil
}

func (b *base) Busy() bool {
	h := b.current()
	return h != nil && h.Busy()
}

func (b *base) Defunct() bool {
	h := b.current()
	return h != nil && !h.Alive()
}

func (b *base) Close() error {
	b.mu.Lock()
	h := b.handle
	b.handle = nil
	b.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Close()
}

// acquire checks out the pipeline for one request.
func (b *base) acquire(ctx context.Context) (*pipeline.Lease, error) {
	h := b.current()
	if h == nil {
		return nil, ErrNotReady
	}
	return h.Acquire(ctx)
}

// tune applies params through the cache helper and logs msg with args. A
// missing hook is logged and the request continues untuned.
func (b *base) tune(ctx context.Context, lease *pipeline.Lease, reset bool, params pipeline.CacheTuning, msg string, args ...any) error {
	tuner, err := lease.Tuner()
	if errors.Is(err, pipeline.ErrTuningUnavailable) {
		slog.Warn("selected pipeline does not have cache helper", "model", b.name)
		if b.onTuningUnavailable != nil {
			b.onTuningUnavailable()
		}
		return nil
	} else if err != nil {
		return err
	}

	if reset {
		if err := tuner.ResetCache(ctx); err != nil {
			return fmt.Errorf("%w: reset cache: %w", ErrInferenceFailure, err)
		}
	}

	slog.Info(msg, args...)
	if err := tuner.SetCacheParams(ctx, params); err != nil {
		return fmt.Errorf("%w: set cache params: %w", ErrInferenceFailure, err)
	}
	return nil
}

// generate runs the pipeline exactly once.
func (b *base) generate(ctx context.Context, lease *pipeline.Lease, req pipeline.GenerateRequest) (image.Image, error) {
	slog.Info("running prediction", "model", b.name, "args", generateArgs(req))
	img, err := lease.Pipeline().Generate(ctx, req, func(p pipeline.Progress) {
		slog.Debug("denoising", "step", p.Step, "total", p.Total)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}
	return img, nil
}

func generateArgs(req pipeline.GenerateRequest) []string {
	args := []string{"prompt", "height", "width", "guidance_scale", "num_inference_steps"}
	if req.Seed.IsSeeded() {
		args = append(args, "generator")
	}
	return args
}
