// smash.go - Konfiguration der Acceleration-Schicht
//
// Dieses Modul enthaelt:
// - SmashConfig: geordnete Key-Value-Optionen fuer Cacher/Compiler
// - CacheTuning: Parameter fuer den Cache-Helper pro Request
package pipeline

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// SmashConfig holds the options of the acceleration wrapper. Keys keep
// their insertion order on the wire.
type SmashConfig struct {
	options *orderedmap.OrderedMap[string, any]
}

// NewSmashConfig returns an empty configuration.
func NewSmashConfig() *SmashConfig {
	return &SmashConfig{options: orderedmap.New[string, any]()}
}

// Set stores an option and returns the config for chaining.
func (c *SmashConfig) Set(key string, value any) *SmashConfig {
	c.options.Set(key, value)
	return c
}

// Get returns an option.
func (c *SmashConfig) Get(key string) (any, bool) {
	return c.options.Get(key)
}

// Keys returns the option names in insertion order.
func (c *SmashConfig) Keys() []string {
	keys := make([]string, 0, c.options.Len())
	for pair := c.options.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (c *SmashConfig) Len() int {
	return c.options.Len()
}

func (c *SmashConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.options)
}

func (c *SmashConfig) UnmarshalJSON(b []byte) error {
	options := orderedmap.New[string, any]()
	if err := json.Unmarshal(b, options); err != nil {
		return err
	}
	c.options = options
	return nil
}

// CacheTuning is passed opaquely to the cache helper. Nil fields are not
// sent.
type CacheTuning struct {
	SpeedFactor *float64 `json:"speed_factor,omitempty"`
	Interval    *int     `json:"cache_interval,omitempty"`
	StartStep   *int     `json:"start_step,omitempty"`
}

// SpeedFactor returns tuning that only sets the speed factor.
func SpeedFactor(f float64) CacheTuning {
	return CacheTuning{SpeedFactor: &f}
}

// IntervalTuning returns tuning that sets cache interval and start step.
func IntervalTuning(interval, startStep int) CacheTuning {
	return CacheTuning{Interval: &interval, StartStep: &startStep}
}
