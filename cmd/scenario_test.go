package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prp-sim/prp-sim/sim"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_FullFile(t *testing.T) {
	// GIVEN a scenario file exercising every section
	path := writeScenario(t, `
places: 4
pods: 3
stations:
  - id: 1
    queue_size: 2
  - id: 2
    queue_size: 1
initial_placement:
  2: 1
  3: 2
  4: 3
costs:
  from_station:
    1: {1: 5.0, 2: 6.0}
  to_station:
    1: {2: 7.0}
pod_weights:
  1: 0.5
  2: 0.3
  3: 0.2
station_weights:
  1: 0.9
  2: 0.1
departures:
  - pod: 1
    station: 1
  - pod: 2
    station: 2
`)

	// WHEN it is loaded
	spec, err := LoadScenario(path)
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	// THEN all sections survive the round trip
	assert.Equal(t, 4, spec.Places)
	assert.Equal(t, 3, spec.Pods)
	assert.Equal(t, []StationSpec{{ID: 1, QueueSize: 2}, {ID: 2, QueueSize: 1}}, spec.Stations)
	assert.Equal(t, map[int]int{2: 1, 3: 2, 4: 3}, spec.InitialPlacement)
	require.NotNil(t, spec.Costs)
	assert.Equal(t, 5.0, spec.Costs.FromStation[1][1])
	assert.Equal(t, 7.0, spec.Costs.ToStation[1][2])
	assert.Equal(t, 0.3, spec.PodWeights[2])
	assert.Equal(t, 0.1, spec.StationWeights[2])
	assert.Equal(t, []DepartureSpec{{Pod: 1, Station: 1}, {Pod: 2, Station: 2}}, spec.Departures)
}

func TestLoadScenario_UnknownFieldIsRejected(t *testing.T) {
	path := writeScenario(t, `
places: 2
pods: 2
statoins:
  - id: 1
    queue_size: 1
`)

	_, err := LoadScenario(path)
	assert.Error(t, err)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestScenarioSpec_ValidateErrors(t *testing.T) {
	base := func() *ScenarioSpec {
		return &ScenarioSpec{
			Places:   3,
			Pods:     3,
			Stations: []StationSpec{{ID: 1, QueueSize: 2}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*ScenarioSpec)
	}{
		{"no places", func(s *ScenarioSpec) { s.Places = 0 }},
		{"no pods", func(s *ScenarioSpec) { s.Pods = 0 }},
		{"no stations", func(s *ScenarioSpec) { s.Stations = nil }},
		{"duplicate station id", func(s *ScenarioSpec) {
			s.Stations = append(s.Stations, StationSpec{ID: 1, QueueSize: 1})
		}},
		{"bad queue size", func(s *ScenarioSpec) { s.Stations[0].QueueSize = 0 }},
		{"more pods than places without placement", func(s *ScenarioSpec) { s.Pods = 4 }},
		{"placement place out of range", func(s *ScenarioSpec) { s.InitialPlacement = map[int]int{4: 1} }},
		{"placement pod out of range", func(s *ScenarioSpec) { s.InitialPlacement = map[int]int{1: 4} }},
		{"pod placed twice", func(s *ScenarioSpec) { s.InitialPlacement = map[int]int{1: 1, 2: 1} }},
		{"cost table unknown station", func(s *ScenarioSpec) {
			s.Costs = &CostsSpec{FromStation: map[int]map[int]float64{9: {1: 1}}}
		}},
		{"cost table place out of range", func(s *ScenarioSpec) {
			s.Costs = &CostsSpec{ToStation: map[int]map[int]float64{9: {1: 1}}}
		}},
		{"pod weight out of range", func(s *ScenarioSpec) { s.PodWeights = map[int]float64{9: 1} }},
		{"station weight unknown station", func(s *ScenarioSpec) { s.StationWeights = map[int]float64{9: 1} }},
		{"departure pod out of range", func(s *ScenarioSpec) {
			s.Departures = []DepartureSpec{{Pod: 9, Station: 1}}
		}},
		{"departure unknown station", func(s *ScenarioSpec) {
			s.Departures = []DepartureSpec{{Pod: 1, Station: 9}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec := base()
			require.NoError(t, spec.Validate())
			tc.mutate(spec)
			assert.Error(t, spec.Validate())
		})
	}
}

func TestCorridorScenario_BuildsDefaultLayout(t *testing.T) {
	// GIVEN the flag-generated corridor scenario
	spec := CorridorScenario(5, 4, 2, 3)
	require.NoError(t, spec.Validate())

	// WHEN the warehouse is built
	w, err := spec.BuildWarehouse()
	require.NoError(t, err)

	// THEN pods start on their own place and the costs grow with aisle depth
	assert.Equal(t, 5, w.NumPlaces())
	assert.Equal(t, 4, w.NumPods())
	for pod := 1; pod <= 4; pod++ {
		assert.Equal(t, sim.PlaceID(pod), w.PlaceByPod(sim.PodID(pod)))
	}
	costs := w.CostModel()
	assert.Equal(t, 1.0, costs.FromStation(1, 1))
	assert.Equal(t, 4.0, costs.FromStation(2, 3))
	assert.Equal(t, 4.0, costs.ToStation(3, 2))
}

func TestScenarioSpec_BuildWarehouse_ExplicitPlacementAndCosts(t *testing.T) {
	spec := &ScenarioSpec{
		Places:           3,
		Pods:             2,
		Stations:         []StationSpec{{ID: 1, QueueSize: 1}},
		InitialPlacement: map[int]int{2: 1, 3: 2},
		Costs: &CostsSpec{
			FromStation: map[int]map[int]float64{1: {1: 4, 2: 5, 3: 6}},
			ToStation:   map[int]map[int]float64{1: {1: 4}, 2: {1: 5}, 3: {1: 6}},
		},
	}
	require.NoError(t, spec.Validate())

	w, err := spec.BuildWarehouse()
	require.NoError(t, err)

	assert.Equal(t, sim.PlaceID(2), w.PlaceByPod(1))
	assert.Equal(t, sim.PlaceID(3), w.PlaceByPod(2))
	assert.Equal(t, sim.InvalidPod, w.PodByPlace(1))
	assert.Equal(t, 5.0, w.CostModel().FromStation(1, 2))
	assert.Equal(t, 6.0, w.CostModel().ToStation(3, 1))
}

func TestScenarioSpec_DepartureList(t *testing.T) {
	spec := &ScenarioSpec{Departures: []DepartureSpec{{Pod: 2, Station: 1}, {Pod: 1, Station: 2}}}

	assert.Equal(t, []sim.Departure{
		{Pod: 2, Station: 1}, {Pod: 1, Station: 2},
	}, spec.DepartureList())
}
