package predictor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxserve/fluxserve/pipeline"
)

type fakePipeline struct {
	mu       sync.Mutex
	requests []pipeline.GenerateRequest
	resets   int
	params   []pipeline.CacheTuning
	noCache  bool
	err      error
	closed   bool
}

func (p *fakePipeline) Generate(_ context.Context, req pipeline.GenerateRequest, fn func(pipeline.Progress)) (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	fn(pipeline.Progress{Step: 1, Total: 1})
	return image.NewRGBA(image.Rect(0, 0, req.Width, req.Height)), nil
}

func (p *fakePipeline) Supports(c pipeline.Capability) bool {
	return !p.noCache && c == pipeline.CapabilityCacheTuning
}

func (p *fakePipeline) ResetCache(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return nil
}

func (p *fakePipeline) SetCacheParams(_ context.Context, params pipeline.CacheTuning) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params = append(p.params, params)
	return nil
}

func (p *fakePipeline) Close() error {
	p.closed = true
	return nil
}

func (p *fakePipeline) last() pipeline.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

type fakeLoader struct {
	req pipeline.LoadRequest
	p   pipeline.Pipeline
	err error
}

func (l *fakeLoader) Load(_ context.Context, req pipeline.LoadRequest) (pipeline.Pipeline, error) {
	l.req = req
	return l.p, l.err
}

func setupTest(t *testing.T, name string, p pipeline.Pipeline, opts ...Option) (Predictor, *fakeLoader) {
	t.Helper()
	t.Setenv("FLUXSERVE_OUTPUTS", t.TempDir())
	t.Setenv("HF_HUB_CACHE", t.TempDir())

	pred, err := Lookup(name, opts...)
	require.NoError(t, err)

	loader := &fakeLoader{p: p}
	require.NoError(t, pred.Setup(context.Background(), loader))
	t.Cleanup(func() { pred.Close() })
	return pred, loader
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"flux-dev", "flux-schnell"}, Names())

	p, err := Lookup("flux-dev")
	require.NoError(t, err)
	assert.Equal(t, "flux-dev", p.Name())
	assert.False(t, p.Ready())

	_, err = Lookup("sdxl")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestDevSetup(t *testing.T) {
	t.Setenv("FLUXSERVE_SMASH_TOKEN", "smash")
	fp := &fakePipeline{}
	p, loader := setupTest(t, DevName, fp)

	assert.True(t, p.Ready())
	assert.False(t, p.Busy())
	assert.Equal(t, DevModel, loader.req.Model)
	assert.Equal(t, "bfloat16", loader.req.DType)
	assert.Equal(t, "smash", loader.req.SmashToken)
	assert.Empty(t, loader.req.LocalPath)
	if diff := cmp.Diff([]string{"cacher", "compiler", "_prepare_saving"}, loader.req.Smash.Keys()); diff != "" {
		t.Errorf("smash config (-want +got):\n%s", diff)
	}

	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
	assert.False(t, p.Ready())
}

func TestSetupError(t *testing.T) {
	p, err := Lookup(DevName)
	require.NoError(t, err)

	err = p.Setup(context.Background(), &fakeLoader{err: errors.New("CUDA unavailable")})
	assert.ErrorContains(t, err, "CUDA unavailable")
	assert.False(t, p.Ready())
}

func TestNotReady(t *testing.T) {
	for _, name := range Names() {
		p, err := Lookup(name)
		require.NoError(t, err)
		_, err = p.Predict(context.Background(), Input{"prompt": "x"})
		assert.ErrorIs(t, err, ErrNotReady, name)
	}
}

func TestDevPredict(t *testing.T) {
	fp := &fakePipeline{}
	p, _ := setupTest(t, DevName, fp)

	path, err := p.Predict(context.Background(), Input{
		"prompt":              "a lighthouse at dusk",
		"aspect_ratio":        "16:9",
		"speed_mode":          ExtraJuiced.Label,
		"num_inference_steps": 30,
		"seed":                42,
	})
	require.NoError(t, err)
	assert.Equal(t, "output_42_0.png", filepath.Base(path))
	assert.True(t, filepath.IsAbs(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	req := fp.last()
	assert.Equal(t, 1024, req.Width)
	assert.Equal(t, 576, req.Height)
	assert.Equal(t, 30, req.Steps)
	assert.InDelta(t, 7.5, req.GuidanceScale, 1e-9)
	n, ok := req.Seed.Value()
	assert.True(t, ok)
	assert.EqualValues(t, 42, n)

	assert.Equal(t, 1, fp.resets)
	require.Len(t, fp.params, 1)
	assert.InDelta(t, 0.3, *fp.params[0].SpeedFactor, 1e-9)

	_, err = p.Predict(context.Background(), Input{
		"prompt":              "a lighthouse at dusk",
		"aspect_ratio":        "9:16",
		"speed_mode":          "extra juiced",
		"num_inference_steps": 10,
		"output_format":       "jpg",
	})
	require.NoError(t, err)

	req = fp.last()
	assert.Equal(t, 576, req.Width)
	assert.Equal(t, 1024, req.Height)
	assert.False(t, req.Seed.IsSeeded(), "-1 muss unseeded sein")
	assert.InDelta(t, 0.4, *fp.params[1].SpeedFactor, 1e-9)
	assert.Equal(t, 2, fp.resets)
}

func TestDevPredictDefaults(t *testing.T) {
	fp := &fakePipeline{}
	p, _ := setupTest(t, DevName, fp)

	path, err := p.Predict(context.Background(), Input{"prompt": "x", "output_format": "jpg"})
	require.NoError(t, err)
	assert.Equal(t, "output_-1_0.jpeg", filepath.Base(path))

	req := fp.last()
	assert.Equal(t, 28, req.Steps)
	assert.Equal(t, 1024, req.Width)
	assert.Equal(t, 1024, req.Height)
	assert.InDelta(t, Juiced.LongRunFactor, *fp.params[0].SpeedFactor, 1e-9)
}

func TestDevPredictWithoutCacheHelper(t *testing.T) {
	var unavailable int
	fp := &fakePipeline{noCache: true}
	p, _ := setupTest(t, DevName, fp, WithTuningUnavailable(func() { unavailable++ }))

	_, err := p.Predict(context.Background(), Input{"prompt": "x", "num_inference_steps": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, unavailable)
	assert.Zero(t, fp.resets)
	assert.Empty(t, fp.params)
	assert.Len(t, fp.requests, 1)
}

func TestDevPredictValidation(t *testing.T) {
	fp := &fakePipeline{}
	p, _ := setupTest(t, DevName, fp)

	cases := map[string]Input{
		"fehlender prompt":    {},
		"leerer prompt":       {"prompt": ""},
		"unbekanntes feld":    {"prompt": "x", "negative_prompt": "y"},
		"falscher typ":        {"prompt": "x", "num_inference_steps": "many"},
		"quality 0":           {"prompt": "x", "output_quality": 0},
		"quality 101":         {"prompt": "x", "output_quality": 101},
		"ungueltiges format":  {"prompt": "x", "output_format": "gif"},
		"ungueltige ratio":    {"prompt": "x", "aspect_ratio": "16:10"},
		"ungueltiger speed":   {"prompt": "x", "speed_mode": "ludicrous"},
		"image_size negativ":  {"prompt": "x", "image_size": -5},
		"steps nicht integer": {"prompt": "x", "num_inference_steps": 2.5},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Predict(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.True(t, IsValidation(err))
		})
	}

	assert.Empty(t, fp.requests, "ungueltige Requests duerfen die Pipeline nicht aufrufen")
}

func TestChoiceSuggestion(t *testing.T) {
	p, _ := setupTest(t, DevName, &fakePipeline{})

	_, err := p.Predict(context.Background(), Input{"prompt": "x", "aspect_ratio": "16:8"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "16:9"?`)

	_, err = p.Predict(context.Background(), Input{"prompt": "x", "output_format": "jpeg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "jpg"?`)
}

func TestDevInferenceFailure(t *testing.T) {
	p, _ := setupTest(t, DevName, &fakePipeline{err: errors.New("CUDA out of memory")})

	_, err := p.Predict(context.Background(), Input{"prompt": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInferenceFailure)
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "CUDA out of memory")
	assert.False(t, p.Busy(), "Lease muss nach einem Fehler freigegeben sein")
}

func TestDevSeedReproducible(t *testing.T) {
	t.Setenv("FLUXSERVE_OUTPUTS", t.TempDir())
	t.Setenv("HF_HUB_CACHE", t.TempDir())

	p, err := Lookup(DevName)
	require.NoError(t, err)
	require.NoError(t, p.Setup(context.Background(), pipeline.PreviewLoader{}))
	defer p.Close()

	in := Input{"prompt": "a red fox", "image_size": 64, "num_inference_steps": 2}
	read := func(seed int) []byte {
		in["seed"] = seed
		path, err := p.Predict(context.Background(), in)
		require.NoError(t, err)
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		return b
	}

	assert.True(t, bytes.Equal(read(42), read(42)), "gleicher Seed muss gleiche Bilder liefern")
	assert.False(t, bytes.Equal(read(-1), read(-1)), "unseeded sollte unterschiedliche Bilder liefern")
}

func TestSchnellPredict(t *testing.T) {
	fp := &fakePipeline{}
	p, loader := setupTest(t, SchnellName, fp)

	assert.Equal(t, SchnellModel, loader.req.Model)
	v, ok := loader.req.Smash.Get("comp_flux_caching_cache_interval")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	path, err := p.Predict(context.Background(), Input{"prompt": "a cat", "image_width": 768})
	require.NoError(t, err)
	assert.Equal(t, "output.png", filepath.Base(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	req := fp.last()
	assert.Equal(t, 768, req.Width)
	assert.Equal(t, 1024, req.Height)
	assert.Equal(t, 4, req.Steps)
	n, ok := req.Seed.Value()
	assert.True(t, ok)
	assert.EqualValues(t, 42, n)

	assert.Zero(t, fp.resets)
	require.Len(t, fp.params, 1)
	assert.Equal(t, 3, *fp.params[0].Interval)
	assert.Equal(t, 1, *fp.params[0].StartStep)

	_, err = p.Predict(context.Background(), Input{"prompt": "a cat", "seed": -1})
	require.NoError(t, err)
	assert.True(t, fp.last().Seed.IsSeeded(), "schnell seedet immer")
}

func TestSchnellWithoutCacheHelper(t *testing.T) {
	var unavailable int
	p, _ := setupTest(t, SchnellName, &fakePipeline{noCache: true}, WithTuningUnavailable(func() { unavailable++ }))

	_, err := p.Predict(context.Background(), Input{"prompt": "a cat", "image_width": 8, "image_height": 8})
	require.NoError(t, err)
	assert.Equal(t, 1, unavailable)
}

func TestSetupUsesCachedWeights(t *testing.T) {
	cache := t.TempDir()
	snapshot := filepath.Join(cache, "models--black-forest-labs--FLUX.1-dev", "snapshots", "abc123")
	require.NoError(t, os.MkdirAll(snapshot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(snapshot, "model_index.json"), []byte("{}"), 0o644))
	refs := filepath.Join(cache, "models--black-forest-labs--FLUX.1-dev", "refs")
	require.NoError(t, os.MkdirAll(refs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(refs, "main"), []byte("abc123\n"), 0o644))

	t.Setenv("HF_HUB_CACHE", cache)
	p, err := Lookup(DevName)
	require.NoError(t, err)
	loader := &fakeLoader{p: &fakePipeline{}}
	require.NoError(t, p.Setup(context.Background(), loader))
	assert.Equal(t, snapshot, loader.req.LocalPath)
}
