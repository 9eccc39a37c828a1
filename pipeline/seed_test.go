package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFromSentinel(t *testing.T) {
	cases := []struct {
		in     int64
		seeded bool
		str    string
	}{
		{-1, false, "unseeded"},
		{0, true, "0"},
		{42, true, "42"},
		{-2, true, "-2"},
	}

	for _, tt := range cases {
		t.Run(tt.str, func(t *testing.T) {
			s := SeedFromSentinel(tt.in, -1)
			assert.Equal(t, tt.seeded, s.IsSeeded())
			assert.Equal(t, tt.str, s.String())
			if n, ok := s.Value(); ok {
				assert.Equal(t, tt.in, n)
			}
		})
	}
}

func TestSeedJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Seed `json:"a"`
		B Seed `json:"b"`
	}{Seeded(7), Unseeded()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7,"b":null}`, string(b))

	var s Seed
	require.NoError(t, json.Unmarshal([]byte(`-1`), &s))
	n, ok := s.Value()
	assert.True(t, ok, "-1 ist im JSON ein echter Seed")
	assert.EqualValues(t, -1, n)

	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.False(t, s.IsSeeded())

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &s))
}
