package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prp-sim/prp-sim/sim"
)

func tenPodCorridor(t *testing.T) *sim.Warehouse {
	t.Helper()
	return newCorridor(t, 10, 10, []sim.Departure{
		{Pod: 1, Station: 1}, {Pod: 2, Station: 1}, {Pod: 3, Station: 1},
		{Pod: 4, Station: 1}, {Pod: 5, Station: 2}, {Pod: 6, Station: 2},
		{Pod: 7, Station: 2}, {Pod: 8, Station: 2}, {Pod: 9, Station: 1},
		{Pod: 10, Station: 2},
	}, sim.NewStation(1, 3), sim.NewStation(2, 3))
}

func TestSolveTetris_LeavesWarehouseUntouched(t *testing.T) {
	// GIVEN the 10-pod reference system
	w := tenPodCorridor(t)

	// WHEN the batch solver runs
	solution, err := SolveTetris(w, DecisionCosts, PodFrequencyPriority)
	require.NoError(t, err)

	// THEN the warehouse itself did not advance
	assert.EqualValues(t, 0, w.T())
	assert.Equal(t, 10, w.Generator().Len())
	assert.Len(t, solution, 10)
}

func TestSolveTetris_PlacementTicksMatchTheQueueDynamics(t *testing.T) {
	// Which ticks need a placement is fixed by the departures and queue
	// capacities, not by the policy: the stations absorb pods 1..3 and 5..7,
	// so only ticks 4, 5, 8, 9 and 10 evict a pod into storage.
	w := tenPodCorridor(t)

	solution, err := SolveTetris(w, DecisionCosts, PodFrequencyPriority)
	require.NoError(t, err)

	placements := map[int]bool{3: true, 4: true, 7: true, 8: true, 9: true}
	for i, place := range solution {
		if placements[i] {
			assert.NotEqual(t, sim.InvalidPlace, place, "tick %d should place a pod", i+1)
		} else {
			assert.Equal(t, sim.InvalidPlace, place, "tick %d should not place a pod", i+1)
		}
	}
}

func TestSolveTetris_SolutionReplaysFeasibly(t *testing.T) {
	solution, err := SolveTetris(tenPodCorridor(t), DecisionCosts, PodFrequencyPriority)
	require.NoError(t, err)

	// WHEN the solution is replayed on a fresh warehouse
	w := tenPodCorridor(t)
	stats, err := sim.Run(w, NewPlayback(solution))

	// THEN every placement is feasible and the run completes
	require.NoError(t, err)
	assert.EqualValues(t, 10, stats.Ticks)
	assert.True(t, w.Finished())
	assert.Equal(t, 0, w.Generator().Len())

	// AND a second replay reproduces the total costs exactly
	again := tenPodCorridor(t)
	againStats, err := sim.Run(again, NewPlayback(solution))
	require.NoError(t, err)
	assert.Equal(t, stats.TotalCosts, againStats.TotalCosts)
}

func TestSolveTetris_IsDeterministic(t *testing.T) {
	first, err := SolveTetris(tenPodCorridor(t), DecisionCosts, PodFrequencyPriority)
	require.NoError(t, err)
	second, err := SolveTetris(tenPodCorridor(t), DecisionCosts, PodFrequencyPriority)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSolveTetris_AllPrioritiesProduceFeasibleSolutions(t *testing.T) {
	for _, prio := range []OccupationPriority{PodFrequencyPriority, SojournTimePriority, DeparturePriority} {
		solution, err := SolveTetris(tenPodCorridor(t), FromStationOnly, prio)
		require.NoError(t, err)

		w := tenPodCorridor(t)
		_, err = sim.Run(w, NewPlayback(solution))
		require.NoError(t, err, "priority %d", prio)
		assert.True(t, w.Finished(), "priority %d", prio)
	}
}

func TestSolveTetris_NeedsAFiniteGenerator(t *testing.T) {
	w := sim.NewWarehouse()
	w.SetNumPlaces(2)
	w.SetNumPods(2)
	w.AddStation(sim.NewStation(1, 1))

	_, err := SolveTetris(w, DecisionCosts, PodFrequencyPriority)
	assert.Error(t, err)
}

func TestFrequencyPriority_MostFrequentPodFirst(t *testing.T) {
	occs := []sim.Occupation{
		{Pod: 2, Place: 1, Begin: 5, End: 9},
		{Pod: 1, Place: 2, Begin: 3, End: 6},
		{Pod: 1, Place: 3, Begin: 7, End: 8},
	}

	got := frequencyPriority(occs)

	// Pod 1 occurs twice and goes first, its intervals ordered by begin.
	require.Len(t, got, 3)
	assert.Equal(t, sim.PodID(1), got[0].Pod)
	assert.EqualValues(t, 3, got[0].Begin)
	assert.Equal(t, sim.PodID(1), got[1].Pod)
	assert.EqualValues(t, 7, got[1].Begin)
	assert.Equal(t, sim.PodID(2), got[2].Pod)
}
