package pipeline

import (
	"bytes"
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pixels(t *testing.T, img image.Image) []byte {
	t.Helper()
	rgba, ok := img.(*image.RGBA)
	require.True(t, ok)
	return rgba.Pix
}

func TestPreviewDeterministic(t *testing.T) {
	p := NewPreview()
	req := GenerateRequest{Prompt: "a red fox", Width: 64, Height: 36, Steps: 4, Seed: Seeded(42)}

	var steps []int
	a, err := p.Generate(context.Background(), req, func(pr Progress) {
		steps = append(steps, pr.Step)
		assert.Equal(t, 4, pr.Total)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, steps)
	assert.Equal(t, image.Rect(0, 0, 64, 36), a.Bounds())

	b, err := p.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pixels(t, a), pixels(t, b)), "gleicher Seed muss gleiche Pixel liefern")

	req.Seed = Seeded(43)
	c, err := p.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(pixels(t, a), pixels(t, c)))

	req.Seed = Seeded(42)
	req.Prompt = "a blue fox"
	d, err := p.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(pixels(t, a), pixels(t, d)))
}

func TestPreviewUnseeded(t *testing.T) {
	p := NewPreview()
	req := GenerateRequest{Prompt: "a red fox", Width: 32, Height: 32, Seed: Unseeded()}

	a, err := p.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	b, err := p.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(pixels(t, a), pixels(t, b)))
}

func TestPreviewErrors(t *testing.T) {
	p := NewPreview()
	_, err := p.Generate(context.Background(), GenerateRequest{Width: 0, Height: 10}, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, GenerateRequest{Width: 8, Height: 8, Steps: 2}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreviewTuning(t *testing.T) {
	p := NewPreview()
	ctx := context.Background()

	require.NoError(t, p.SetCacheParams(ctx, IntervalTuning(2, 0)))
	require.NoError(t, p.ResetCache(ctx))
	require.NoError(t, p.SetCacheParams(ctx, SpeedFactor(0.4)))

	tuning, resets := p.Tuning()
	assert.Equal(t, 1, resets)
	require.NotNil(t, tuning.SpeedFactor)
	assert.InDelta(t, 0.4, *tuning.SpeedFactor, 1e-9)
	assert.Nil(t, tuning.Interval)
}
