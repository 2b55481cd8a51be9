package weights

import "github.com/NicholasJacob1990/litgo-match/internal/litmatch"

// Presets are the fixed constant starting vectors of spec §6. "balanced"
// is an alias for litmatch.DefaultWeights.
var Presets = map[string]litmatch.WeightVector{
	"fast": {
		"A": 0.40, "S": 0.15, "T": 0.20, "G": 0.15,
		"Q": 0.05, "U": 0.03, "R": 0.02, "C": 0.00,
	},
	"expert": {
		"A": 0.25, "S": 0.30, "T": 0.15, "G": 0.05,
		"Q": 0.15, "U": 0.05, "R": 0.03, "C": 0.02,
	},
	"balanced": litmatch.DefaultWeights,
}

// resolvePreset returns the named preset, falling back to DEFAULT
// (balanced) for unknown names, per spec §6.
func resolvePreset(name string) litmatch.WeightVector {
	if w, ok := Presets[name]; ok {
		return w
	}
	return litmatch.DefaultWeights
}

// complexityDelta is the additive adjustment table of spec §4.2.
var complexityDelta = map[litmatch.Complexity]map[string]float64{
	litmatch.ComplexityHigh: {"Q": 0.05, "T": 0.05, "U": -0.05, "C": 0.02},
	litmatch.ComplexityLow:  {"U": 0.05, "G": 0.03, "Q": -0.05, "T": -0.03},
}
