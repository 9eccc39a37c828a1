package predictor

import (
	"strings"

	"golang.org/x/text/cases"
)

// shortRunSteps is the step count up to which a run counts as short. Short
// runs use the second factor of a mode.
const shortRunSteps = 20

// SpeedMode is a user-facing cache aggressiveness level.
type SpeedMode struct {
	Label string
	Short string

	// LongRunFactor applies above shortRunSteps, ShortRunFactor otherwise.
	LongRunFactor  float64
	ShortRunFactor float64
}

// SpeedFactor maps the number of inference steps to the cache speed factor.
func (m SpeedMode) SpeedFactor(steps int) float64 {
	if steps > shortRunSteps {
		return m.LongRunFactor
	}
	return m.ShortRunFactor
}

var (
	LightlyJuiced = SpeedMode{Label: "Lightly Juiced 🍊 (more consistent)", Short: "Lightly Juiced", LongRunFactor: 0.5, ShortRunFactor: 0.6}
	Juiced        = SpeedMode{Label: "Juiced 🔥 (default)", Short: "Juiced", LongRunFactor: 0.4, ShortRunFactor: 0.5}
	ExtraJuiced   = SpeedMode{Label: "Extra Juiced 🔥 (more speed)", Short: "Extra Juiced", LongRunFactor: 0.3, ShortRunFactor: 0.4}
)

// SpeedModes lists the modes in the order they are offered.
var SpeedModes = []SpeedMode{LightlyJuiced, Juiced, ExtraJuiced}

// SpeedModeLabels returns the full labels of all modes.
func SpeedModeLabels() []string {
	labels := make([]string, len(SpeedModes))
	for i, m := range SpeedModes {
		labels[i] = m.Label
	}
	return labels
}

// ParseSpeedMode accepts a full label or a short name in any case.
func ParseSpeedMode(s string) (SpeedMode, bool) {
	fold := cases.Fold()
	key := fold.String(strings.TrimSpace(s))
	for _, m := range SpeedModes {
		if s == m.Label || key == fold.String(m.Short) {
			return m, true
		}
	}
	return SpeedMode{}, false
}
