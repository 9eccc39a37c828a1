// dev.go - flux-dev Variante
//
// Dieses Modul enthaelt:
// - Setup: FLUX.1-dev mit taylor_auto Cacher und torch_compile
// - Predict: Aspect-Ratio, Speed-Mode, optionaler Seed, Formatwahl
package predictor

import (
	"context"
	"maps"

	"github.com/fluxserve/fluxserve/envconfig"
	"github.com/fluxserve/fluxserve/output"
	"github.com/fluxserve/fluxserve/pipeline"
)

const (
	DevName  = "flux-dev"
	DevModel = "black-forest-labs/FLUX.1-dev"

	// unseeded is the request-level seed meaning "pick a random seed".
	unseeded = -1
)

var devSchema = mustSchema([]Field{
	{Name: "prompt", Type: TypeString, Description: "Prompt", Required: true},
	{Name: "speed_mode", Type: TypeString, Description: "Speed optimization level", Default: Juiced.Label, Choices: SpeedModeLabels()},
	{Name: "num_inference_steps", Type: TypeInteger, Description: "Number of inference steps", Default: 28, Minimum: bound(1)},
	{Name: "guidance", Type: TypeNumber, Description: "Guidance scale", Default: 7.5},
	{Name: "seed", Type: TypeInteger, Description: "Seed, -1 for a random seed", Default: unseeded},
	{Name: "aspect_ratio", Type: TypeString, Description: "Aspect ratio of the output image", Default: "1:1", Choices: AspectRatios},
	{Name: "image_size", Type: TypeInteger, Description: "Base image size (longest side)", Default: 1024, Minimum: bound(1)},
	{Name: "output_format", Type: TypeString, Description: "Output format", Default: "png", Choices: []string{"png", "jpg", "webp"}},
	{Name: "output_quality", Type: TypeInteger, Description: "Output quality (for jpg and webp)", Default: 80, Minimum: bound(1), Maximum: bound(100)},
})

type devInput struct {
	Prompt        string  `json:"prompt"`
	SpeedMode     string  `json:"speed_mode"`
	Steps         int     `json:"num_inference_steps"`
	Guidance      float64 `json:"guidance"`
	Seed          int64   `json:"seed"`
	AspectRatio   string  `json:"aspect_ratio"`
	ImageSize     int     `json:"image_size"`
	OutputFormat  string  `json:"output_format"`
	OutputQuality int     `json:"output_quality"`
}

// Dev serves FLUX.1-dev.
type Dev struct {
	base
}

func NewDev(opts ...Option) Predictor {
	d := &Dev{base: base{
		name:   DevName,
		schema: devSchema,
		load: pipeline.LoadRequest{
			Model:  DevModel,
			DType:  "bfloat16",
			Device: "cuda",
			Smash: pipeline.NewSmashConfig().
				Set("cacher", "taylor_auto").
				Set("compiler", "torch_compile").
				Set("_prepare_saving", false),
		},
	}}
	d.apply(opts)
	return d
}

func (d *Dev) Predict(ctx context.Context, in Input) (string, error) {
	if !d.Ready() {
		return "", ErrNotReady
	}

	var req devInput
	if err := d.schema.Decode(withSpeedModeLabel(in), &req); err != nil {
		return "", err
	}

	width, height, err := ResolveAspectRatio(req.AspectRatio, req.ImageSize)
	if err != nil {
		return "", err
	}

	if _, err := output.NormalizeFormat(req.OutputFormat); err != nil {
		return "", err
	}

	mode, _ := ParseSpeedMode(req.SpeedMode)
	seed := pipeline.SeedFromSentinel(req.Seed, unseeded)

	lease, err := d.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	factor := mode.SpeedFactor(req.Steps)
	if err := d.tune(ctx, lease, true, pipeline.SpeedFactor(factor), "setting cache speed factor", "speed_mode", mode.Short, "speed_factor", factor); err != nil {
		return "", err
	}

	img, err := d.generate(ctx, lease, pipeline.GenerateRequest{
		Prompt:        req.Prompt,
		Width:         width,
		Height:        height,
		GuidanceScale: req.Guidance,
		Steps:         req.Steps,
		Seed:          seed,
	})
	if err != nil {
		return "", err
	}
	lease.Release()

	dir, err := output.TempDir(envconfig.Outputs())
	if err != nil {
		return "", err
	}

	return output.Save(dir, req.Seed, 0, img, req.OutputFormat, req.OutputQuality, nil)
}

// withSpeedModeLabel replaces a short speed mode name with its full label.
func withSpeedModeLabel(in Input) Input {
	s, ok := in["speed_mode"].(string)
	if !ok {
		return in
	}

	mode, ok := ParseSpeedMode(s)
	if !ok || mode.Label == s {
		return in
	}

	in = maps.Clone(in)
	in["speed_mode"] = mode.Label
	return in
}
