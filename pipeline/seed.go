package pipeline

import (
	"encoding/json"
	"strconv"
)

// Seed is either a fixed generator seed or unseeded. An unseeded request
// supplies no deterministic generator and is not reproducible.
type Seed struct {
	value  int64
	seeded bool
}

// Seeded returns a seed that makes generation reproducible.
func Seeded(n int64) Seed {
	return Seed{value: n, seeded: true}
}

// Unseeded returns the seed that lets the backend pick its own randomness.
func Unseeded() Seed {
	return Seed{}
}

// SeedFromSentinel maps a request-level integer to a Seed, treating
// sentinel as unseeded.
func SeedFromSentinel(n, sentinel int64) Seed {
	if n == sentinel {
		return Unseeded()
	}
	return Seeded(n)
}

// Value returns the seed and whether one is set.
func (s Seed) Value() (int64, bool) {
	return s.value, s.seeded
}

// IsSeeded reports whether a deterministic generator is requested.
func (s Seed) IsSeeded() bool {
	return s.seeded
}

func (s Seed) String() string {
	if !s.seeded {
		return "unseeded"
	}
	return strconv.FormatInt(s.value, 10)
}

// MarshalJSON encodes an unseeded value as null.
func (s Seed) MarshalJSON() ([]byte, error) {
	if !s.seeded {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON decodes null as unseeded.
func (s *Seed) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Unseeded()
		return nil
	}

	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Seeded(n)
	return nil
}
