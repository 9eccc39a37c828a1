// Package pipeline - Abstraktion ueber die geladene Diffusion-Pipeline.
//
// Dieses Modul enthaelt:
// - Pipeline/CacheTuner Interfaces und die Capability-Abfrage
// - GenerateRequest und Progress fuer einen Inferenz-Aufruf
// - Loader/LoadRequest fuer die Setup-Phase
//
// The pipeline itself (text encoding, denoising, VAE decode, caching and
// compilation) lives in an external backend. This package only describes
// how fluxserve talks to it.
package pipeline

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrTuningUnavailable is reported when the loaded pipeline has no cache
	// helper. It is a soft error: callers log it and run untuned.
	ErrTuningUnavailable = errors.New("pipeline does not support cache tuning")

	// ErrBusy is returned by a non-blocking checkout when another request
	// holds the pipeline.
	ErrBusy = errors.New("pipeline is busy")

	// ErrClosed is returned when the pipeline handle was closed.
	ErrClosed = errors.New("pipeline is closed")

	// ErrBackendExited is returned when the backend process started by
	// fluxserve is gone.
	ErrBackendExited = errors.New("diffusion backend exited")
)

// Capability names an optional hook of a loaded pipeline.
type Capability string

const (
	// CapabilityCacheTuning is the cache helper of the acceleration layer.
	CapabilityCacheTuning Capability = "cache_helper"
)

// GenerateRequest holds the sampling parameters of one inference call.
type GenerateRequest struct {
	Prompt        string
	Width         int
	Height        int
	GuidanceScale float64
	Steps         int
	Seed          Seed
}

// Progress is reported once per denoising step.
type Progress struct {
	Step  int
	Total int
}

// Pipeline is a loaded, optimized text-to-image pipeline.
type Pipeline interface {
	// Generate runs the pipeline once and returns exactly one image.
	Generate(ctx context.Context, req GenerateRequest, fn func(Progress)) (image.Image, error)

	// Supports reports whether the pipeline exposes the given hook.
	Supports(Capability) bool

	Close() error
}

// Liveness is implemented by pipelines that can lose their backend after
// setup. Pipelines without it are always alive.
type Liveness interface {
	Alive() bool
}

// CacheTuner is implemented by pipelines whose acceleration layer exposes a
// cache helper.
type CacheTuner interface {
	Pipeline

	// ResetCache disables and re-enables the cache helper.
	ResetCache(ctx context.Context) error

	// SetCacheParams passes tuning values to the cache helper.
	SetCacheParams(ctx context.Context, params CacheTuning) error
}

// TunerOf is the capability query for cache tuning. It returns
// ErrTuningUnavailable when p does not advertise the cache helper.
func TunerOf(p Pipeline) (CacheTuner, error) {
	if p == nil || !p.Supports(CapabilityCacheTuning) {
		return nil, ErrTuningUnavailable
	}

	tuner, ok := p.(CacheTuner)
	if !ok {
		return nil, ErrTuningUnavailable
	}

	return tuner, nil
}

// LoadRequest describes the pretrained pipeline to load during setup.
type LoadRequest struct {
	Model      string       `json:"model"`
	LocalPath  string       `json:"local_path,omitempty"`
	DType      string       `json:"torch_dtype"`
	Device     string       `json:"device"`
	Smash      *SmashConfig `json:"smash_config,omitempty"`
	SmashToken string       `json:"smash_token,omitempty"`
	HFToken    string       `json:"hf_token,omitempty"`
}

// Loader loads and optimizes a pipeline. It is called once per process.
type Loader interface {
	Load(ctx context.Context, req LoadRequest) (Pipeline, error)
}
