package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prp-sim/prp-sim/sim"
)

func TestScalePosition_DirectIndexWhenEnoughPlaces(t *testing.T) {
	places := []sim.PlaceID{11, 12, 13}
	pods := []sim.PodID{5, 6}

	assert.Equal(t, sim.PlaceID(11), scalePosition(places, pods, 5))
	assert.Equal(t, sim.PlaceID(12), scalePosition(places, pods, 6))
}

func TestScalePosition_RescalesWhenMorePodsThanPlaces(t *testing.T) {
	// GIVEN 4 competing pods but only 2 offered places
	places := []sim.PlaceID{11, 12}
	pods := []sim.PodID{5, 6, 7, 8}

	// THEN ranks are compressed by floor(2/4 * rank)
	assert.Equal(t, sim.PlaceID(11), scalePosition(places, pods, 5)) // rank 0 -> 0
	assert.Equal(t, sim.PlaceID(11), scalePosition(places, pods, 6)) // rank 1 -> 0
	assert.Equal(t, sim.PlaceID(12), scalePosition(places, pods, 7)) // rank 2 -> 1
	assert.Equal(t, sim.PlaceID(12), scalePosition(places, pods, 8)) // rank 3 -> 1
}

func TestPriorityA_FirstDecision(t *testing.T) {
	// GIVEN the corridor system with pod 1 due for repositioning
	w := newCorridor(t, 3, 3,
		[]sim.Departure{{Pod: 1, Station: 1}, {Pod: 2, Station: 1}},
		sim.NewStation(1, 1))
	policy := NewPriorityA(w)

	// The tick without a candidate decides nothing.
	assert.Equal(t, sim.InvalidPlace, policy.DecideNewPlace())
	advance(t, w, sim.InvalidPlace)

	// WHEN pod 1 is the only pod with observed frequency
	got := policy.DecideNewPlace()

	// THEN it is ranked first and claims the cheapest place
	assert.Equal(t, sim.PlaceID(1), got)
}

func TestPriorityA_ArrivingPodWinsFrequencyTies(t *testing.T) {
	w := newCorridor(t, 4, 4, nil, sim.NewStation(1, 2))
	policy := NewPriorityA(w)

	// All frequencies equal; the factor must put pod 3 first.
	policy.podFrequencies.Increment(1)
	policy.podFrequencies.Increment(2)
	policy.podFrequencies.Increment(3)
	policy.podFrequencies.Increment(4)

	pods := policy.concurrentPods(3)
	assert.Equal(t, sim.PodID(3), pods[0])
}

func TestPriorityA_FullRunIsFeasible(t *testing.T) {
	// GIVEN the 10-pod reference departures
	w := newCorridor(t, 10, 10, []sim.Departure{
		{Pod: 1, Station: 1}, {Pod: 2, Station: 1}, {Pod: 3, Station: 1},
		{Pod: 4, Station: 1}, {Pod: 5, Station: 2}, {Pod: 6, Station: 2},
		{Pod: 7, Station: 2}, {Pod: 8, Station: 2}, {Pod: 9, Station: 1},
		{Pod: 10, Station: 2},
	}, sim.NewStation(1, 3), sim.NewStation(2, 3))

	// WHEN the whole run is driven by priority A
	stats, err := sim.Run(w, NewPriorityA(w))

	// THEN every decision was feasible and all departures resolved
	require.NoError(t, err)
	assert.EqualValues(t, 10, stats.Ticks)
	assert.True(t, w.Finished())
}
