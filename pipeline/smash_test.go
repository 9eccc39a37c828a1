package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmashConfigOrder(t *testing.T) {
	c := NewSmashConfig().
		Set("cacher", "taylor_auto").
		Set("compiler", "torch_compile").
		Set("_prepare_saving", false)

	assert.Equal(t, 3, c.Len())
	if diff := cmp.Diff([]string{"cacher", "compiler", "_prepare_saving"}, c.Keys()); diff != "" {
		t.Errorf("Reihenfolge falsch (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"cacher":"taylor_auto","compiler":"torch_compile","_prepare_saving":false}`, string(b))

	var decoded SmashConfig
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, c.Keys(), decoded.Keys())

	v, ok := decoded.Get("compiler")
	require.True(t, ok)
	assert.Equal(t, "torch_compile", v)
}

func TestLoadRequestJSON(t *testing.T) {
	req := LoadRequest{
		Model:  "black-forest-labs/FLUX.1-schnell",
		DType:  "bfloat16",
		Device: "cuda",
		Smash: NewSmashConfig().
			Set("compilers", []string{"flux_caching"}).
			Set("comp_flux_caching_cache_interval", 2),
	}

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "black-forest-labs/FLUX.1-schnell",
		"torch_dtype": "bfloat16",
		"device": "cuda",
		"smash_config": {"compilers": ["flux_caching"], "comp_flux_caching_cache_interval": 2}
	}`, string(b))
}

func TestCacheTuningOmitsUnset(t *testing.T) {
	b, err := json.Marshal(SpeedFactor(0.4))
	require.NoError(t, err)
	assert.JSONEq(t, `{"speed_factor":0.4}`, string(b))

	b, err = json.Marshal(IntervalTuning(3, 1))
	require.NoError(t, err)
	assert.JSONEq(t, `{"cache_interval":3,"start_step":1}`, string(b))
}
