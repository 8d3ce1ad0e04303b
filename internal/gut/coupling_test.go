package gut

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracerun/coreruntime/internal/domain"
)

func TestAdjustCreativityNilStateReturnsBase(t *testing.T) {
	assert.Equal(t, 0.7, AdjustCreativity(0.7, nil))
}

func TestAdjustCreativityHighFrustrationDampens(t *testing.T) {
	g := &domain.GutState{FrustrationIndex: 0.9, Mood: domain.MoodFrustration}
	assert.InDelta(t, 0.35, AdjustCreativity(0.7, g), 1e-9)
}

func TestAdjustCreativityDeepFlowEmboldens(t *testing.T) {
	g := &domain.GutState{FlowProbability: 0.9, Mood: domain.MoodFlow}
	assert.InDelta(t, 0.91, AdjustCreativity(0.7, g), 1e-9)
}

func TestAdjustCreativityChaosBacksOffDramatically(t *testing.T) {
	g := &domain.GutState{Mood: domain.MoodChaos}
	assert.InDelta(t, 0.21, AdjustCreativity(0.7, g), 1e-9)
}

func TestAdjustCreativityClampedToRange(t *testing.T) {
	g := &domain.GutState{FrustrationIndex: 0.95, Mood: domain.MoodChaos}
	result := AdjustCreativity(1.9, g)
	assert.GreaterOrEqual(t, result, 0.1)
	assert.LessOrEqual(t, result, 2.0)
}

func TestAdjustStyleDistanceNilStateReturnsBase(t *testing.T) {
	assert.Equal(t, 0.3, AdjustStyleDistance(0.3, nil))
}

func TestAdjustStyleDistanceFlowWidensTolerance(t *testing.T) {
	g := &domain.GutState{FlowProbability: 0.85, Mood: domain.MoodFlow}
	assert.InDelta(t, 0.39, AdjustStyleDistance(0.3, g), 1e-9)
}

func TestAdjustStyleDistanceFrustrationNarrows(t *testing.T) {
	g := &domain.GutState{FrustrationIndex: 0.8, Mood: domain.MoodFrustration}
	assert.InDelta(t, 0.21, AdjustStyleDistance(0.3, g), 1e-9)
}

func TestShouldRouteToShadowNilStateFalse(t *testing.T) {
	assert.False(t, ShouldRouteToShadow(nil))
}

func TestShouldRouteToShadowOnChaos(t *testing.T) {
	g := &domain.GutState{Mood: domain.MoodChaos}
	assert.True(t, ShouldRouteToShadow(g))
}

func TestShouldRouteToShadowOnExtremeFrustration(t *testing.T) {
	g := &domain.GutState{Mood: domain.MoodFrustration, FrustrationIndex: 0.95}
	assert.True(t, ShouldRouteToShadow(g))
}

func TestShouldRouteToShadowFalseBelowThreshold(t *testing.T) {
	g := &domain.GutState{Mood: domain.MoodFrustration, FrustrationIndex: 0.75}
	assert.False(t, ShouldRouteToShadow(g))
}
