package gut

import "github.com/tracerun/coreruntime/internal/domain"

// AdjustCreativity is the Brain's one-way read of Gut state: high
// frustration quiets suggestions, deep flow emboldens them, Chaos backs
// off dramatically. This function READS GutState; it never writes.
// Grounded verbatim on constraint_engine.py's adjust_creativity.
func AdjustCreativity(baseTemperature float64, g *domain.GutState) float64 {
	if g == nil {
		return baseTemperature
	}

	temp := baseTemperature

	if g.FrustrationIndex > 0.7 {
		temp *= 0.5
	}
	if g.FlowProbability > 0.8 {
		temp *= 1.3
	}
	if g.Mood == domain.MoodChaos {
		temp *= 0.3
	}
	if g.Mood == domain.MoodExploration && g.FrustrationIndex < 0.4 {
		temp *= 1.15
	}

	return clampRange(temp, 0.1, 2.0)
}

// AdjustStyleDistance adjusts the maximum allowed style distance: flow
// increases tolerance for exploration, frustration restricts it toward
// the established style. Grounded on adjust_style_distance.
func AdjustStyleDistance(baseMaxDistance float64, g *domain.GutState) float64 {
	if g == nil {
		return baseMaxDistance
	}

	distance := baseMaxDistance

	if g.FlowProbability > 0.8 {
		distance *= 1.3
	}
	if g.FrustrationIndex > 0.7 {
		distance *= 0.7
	}
	if g.Mood == domain.MoodExploration {
		distance *= 1.2
	}

	return clampRange(distance, 0.1, 0.5)
}

// ShouldRouteToShadow reports whether the current state warrants routing
// to an alternative (Shadow) processing path: Chaos, or extreme sustained
// frustration above 0.9. Grounded on should_route_to_shadow.
func ShouldRouteToShadow(g *domain.GutState) bool {
	if g == nil {
		return false
	}
	if g.Mood == domain.MoodChaos {
		return true
	}
	return g.FrustrationIndex > 0.9
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
