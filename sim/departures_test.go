package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newTestRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// smallestFreePolicy picks the smallest available place; used to drive
// generators where the placement choice does not matter.
type smallestFreePolicy struct{ w *Warehouse }

func (p *smallestFreePolicy) DecideNewPlace() PlaceID {
	pod, _ := p.w.NextArrivalToStorage()
	if pod == InvalidPod {
		return InvalidPlace
	}
	return p.w.AvailablePlaces()[0]
}

// randomPolicy picks a random available place.
type randomPolicy struct {
	w   *Warehouse
	rng *rand.Rand
}

func (p *randomPolicy) DecideNewPlace() PlaceID {
	pod, _ := p.w.NextArrivalToStorage()
	if pod == InvalidPod {
		return InvalidPlace
	}
	available := p.w.AvailablePlaces()
	return available[p.rng.Intn(len(available))]
}

func newGeneratorWarehouse(t *testing.T, pods, places int, stations ...*Station) *Warehouse {
	t.Helper()
	w := NewWarehouse()
	w.SetNumPlaces(places)
	w.SetNumPods(pods)
	for _, st := range stations {
		w.AddStation(st)
	}
	for i := 1; i <= pods; i++ {
		require.NoError(t, w.AssignPodToPlace(PodID(i), PlaceID(i)))
	}
	w.SetCostModel(&ZeroCosts{Stations: w.StationIDs(), Places: w.Places()})
	return w
}

func TestDeterministicDepartures_ReplaysList(t *testing.T) {
	deps := []Departure{{1, 1}, {2, 2}, {3, 1}}
	gen := NewDeterministicDepartures(deps)

	assert.True(t, gen.IsFinite())
	assert.Equal(t, 3, gen.Len())
	assert.Equal(t, deps, gen.Remaining())

	pod, station := gen.Current()
	assert.Equal(t, PodID(1), pod)
	assert.Equal(t, StationID(1), station)

	gen.Next()
	assert.Equal(t, 2, gen.Len())
	assert.Equal(t, deps[1:], gen.Remaining())

	gen.Next()
	gen.Next()
	assert.Equal(t, 0, gen.Len())
	pod, station = gen.Current()
	assert.Equal(t, InvalidPod, pod)
	assert.Equal(t, InvalidStation, station)
}

func TestMarkovianGenerator_SameSeed_SameSequenceAcrossPolicies(t *testing.T) {
	// GIVEN two identical warehouses with identically seeded generators
	run := func(usesRandomPolicy bool) []Departure {
		w := newGeneratorWarehouse(t, 8, 10, NewStation(1, 2), NewStation(2, 2))
		gen := NewMarkovianGenerator(w, GeometricWeights(8, 5),
			UniformStationWeights(w.StationIDs()), 30, newTestRand(42))
		recorder := NewDepartureRecorder(gen)
		w.SetDepartureGenerator(recorder)

		var policy PlacementPolicy = &smallestFreePolicy{w: w}
		if usesRandomPolicy {
			policy = &randomPolicy{w: w, rng: newTestRand(7)}
		}
		_, err := Run(w, policy)
		require.NoError(t, err)
		return recorder.Recorded()
	}

	// WHEN each is consumed by a different policy
	first := run(false)
	second := run(true)

	// THEN the departure sequences are identical: placement choices do not
	// change which pods are in storage
	assert.Equal(t, first, second)
	assert.Len(t, first, 30)
}

func TestMarkovianGenerator_DrawsOnlyPodsInStorage(t *testing.T) {
	w := newGeneratorWarehouse(t, 4, 5, NewStation(1, 2))
	gen := NewMarkovianGenerator(w, GeometricWeights(4, 3),
		UniformStationWeights(w.StationIDs()), 20, newTestRand(3))
	recorder := NewDepartureRecorder(gen)
	w.SetDepartureGenerator(recorder)

	for !w.Finished() {
		pod, _ := w.Generator().Current()
		assert.NotEqual(t, InvalidPlace, w.PlaceByPod(pod),
			"t=%d: drawn pod %d is not in storage", w.T(), pod)
		target := (&smallestFreePolicy{w: w}).DecideNewPlace()
		more, err := w.Next(target)
		require.NoError(t, err)
		if !more {
			break
		}
	}
}

func TestCyclicGenerator_FairRotation(t *testing.T) {
	// GIVEN 3 pods cycling through a capacity-1 station
	w := newGeneratorWarehouse(t, 3, 4, NewStation(1, 1))
	gen := NewCyclicGenerator(w, UniformStationWeights(w.StationIDs()), 6, newTestRand(1))
	recorder := NewDepartureRecorder(gen)
	w.SetDepartureGenerator(recorder)

	// WHEN six departures are processed
	_, err := Run(w, &smallestFreePolicy{w: w})
	require.NoError(t, err)

	// THEN every pod departed exactly once per cycle, in ascending order
	var pods []PodID
	for _, dep := range recorder.Recorded() {
		pods = append(pods, dep.Pod)
	}
	assert.Equal(t, []PodID{1, 2, 3, 1, 2, 3}, pods)
}

func TestCyclicGenerator_DeferredPodDrainsFirst(t *testing.T) {
	// GIVEN pod 1 starting at the station, so its first turn must be skipped
	w := NewWarehouse()
	w.SetNumPlaces(3)
	w.SetNumPods(3)
	w.AddStation(NewStation(1, 2))
	require.NoError(t, w.AssignPodToStation(1, 1))
	require.NoError(t, w.AssignPodToPlace(2, 2))
	require.NoError(t, w.AssignPodToPlace(3, 3))
	w.SetCostModel(&ZeroCosts{Stations: w.StationIDs(), Places: w.Places()})

	gen := NewCyclicGenerator(w, UniformStationWeights(w.StationIDs()), 4, newTestRand(1))
	recorder := NewDepartureRecorder(gen)
	w.SetDepartureGenerator(recorder)

	// WHEN four departures are processed
	_, err := Run(w, &smallestFreePolicy{w: w})
	require.NoError(t, err)

	// THEN pod 1 is deferred past its first turn and drained as soon as it
	// is back in storage, before the next cycle continues
	var pods []PodID
	for _, dep := range recorder.Recorded() {
		pods = append(pods, dep.Pod)
	}
	assert.Equal(t, []PodID{2, 3, 1, 2}, pods)
}

func TestDepartureRecorder_RoundTrip(t *testing.T) {
	deps := []Departure{{1, 1}, {2, 1}, {3, 2}}
	recorder := NewDepartureRecorder(NewDeterministicDepartures(deps))

	for recorder.Len() > 0 {
		recorder.Current()
		recorder.Next()
	}

	assert.Equal(t, deps, recorder.Recorded())
	replay := recorder.ToDeterministic()
	assert.Equal(t, 3, replay.Len())
	assert.Equal(t, deps, replay.Remaining())
}

func TestDepartureRecorder_NextBeforeCurrent_NoDuplicates(t *testing.T) {
	// GIVEN a consumer that advances without peeking first
	deps := []Departure{{1, 1}, {2, 1}, {3, 2}}
	recorder := NewDepartureRecorder(NewDeterministicDepartures(deps))

	// WHEN the first departure is skipped and the second peeked twice
	recorder.Next()
	recorder.Current()
	recorder.Current()
	recorder.Next()
	recorder.Next()

	// THEN every position was recorded exactly once, in order
	assert.Equal(t, deps, recorder.Recorded())
}

func TestGeometricWeights_RatioOne_Uniform(t *testing.T) {
	w := GeometricWeights(5, 1)
	for pod := PodID(1); pod <= 5; pod++ {
		assert.InDelta(t, 0.2, w[pod], 1e-12)
	}
}

func TestGeometricWeights_RatioRespected(t *testing.T) {
	w := GeometricWeights(4, 10)

	// Most frequent over least frequent equals the ratio.
	assert.InDelta(t, 10.0, w[1]/w[4], 1e-9)

	// Weights sum to one.
	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// Strictly decreasing by pod id.
	for pod := PodID(1); pod < 4; pod++ {
		assert.Greater(t, w[pod], w[pod+1])
	}
}

func TestGeometricWeights_MatchesClosedForm(t *testing.T) {
	n, ratio := 6, 4.0
	w := GeometricWeights(n, ratio)
	q := math.Pow(ratio, -1/float64(n-1))
	w1 := (1 - q) / (1 - math.Pow(q, float64(n)))
	for i := 1; i <= n; i++ {
		assert.InDelta(t, w1*math.Pow(q, float64(i-1)), w[PodID(i)], 1e-12)
	}
}

func TestUniformStationWeights(t *testing.T) {
	w := UniformStationWeights([]StationID{1, 2, 4})
	assert.Len(t, w, 3)
	for _, v := range w {
		assert.InDelta(t, 1.0/3.0, v, 1e-12)
	}
}
