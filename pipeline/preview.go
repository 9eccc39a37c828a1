// preview.go - In-Process Preview-Pipeline
//
// Dieses Modul enthaelt:
// - Preview: deterministische prozedurale Bilder aus Prompt und Seed
// - Aufzeichnung der Cache-Parameter (fuer Entwicklung und Tests)
package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"
)

// Preview renders a procedural image instead of running a model. Equal
// prompt, size and seed always produce equal pixels.
type Preview struct {
	mu     sync.Mutex
	tuning CacheTuning
	resets int
}

func NewPreview() *Preview {
	return &Preview{}
}

func (p *Preview) Supports(c Capability) bool {
	return c == CapabilityCacheTuning
}

func (p *Preview) ResetCache(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tuning = CacheTuning{}
	p.resets++
	return nil
}

func (p *Preview) SetCacheParams(_ context.Context, params CacheTuning) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tuning = params
	return nil
}

// Tuning returns the last cache parameters and the number of resets.
func (p *Preview) Tuning() (CacheTuning, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tuning, p.resets
}

func (p *Preview) Generate(ctx context.Context, req GenerateRequest, fn func(Progress)) (image.Image, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, errors.New("width and height must be positive")
	}

	h := fnv.New64a()
	h.Write([]byte(req.Prompt))

	seed, ok := req.Seed.Value()
	if !ok {
		seed = rand.Int64()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), h.Sum64()))

	for step := 1; step <= req.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fn != nil {
			fn(Progress{Step: step, Total: req.Steps})
		}
	}

	base := color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255}
	img := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
	pix := img.Pix
	for y := 0; y < req.Height; y++ {
		for x := 0; x < req.Width; x++ {
			i := img.PixOffset(x, y)
			noise := uint8(rng.IntN(32))
			pix[i+0] = base.R + uint8(x*255/req.Width) + noise
			pix[i+1] = base.G + uint8(y*255/req.Height) + noise
			pix[i+2] = base.B + noise
			pix[i+3] = 255
		}
	}

	return img, nil
}

func (p *Preview) Close() error { return nil }

var _ CacheTuner = (*Preview)(nil)
