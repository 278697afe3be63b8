package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/prp-sim/prp-sim/sim"
)

// ScenarioSpec is a complete warehouse setup.
// Loaded from YAML via LoadScenario(path), or generated from CLI flags by
// CorridorScenario.
type ScenarioSpec struct {
	Places   int           `yaml:"places"`
	Pods     int           `yaml:"pods"`
	Stations []StationSpec `yaml:"stations"`

	// InitialPlacement maps place id to pod id. Empty means pod i starts on
	// place i.
	InitialPlacement map[int]int `yaml:"initial_placement,omitempty"`

	// Costs overrides the corridor cost table.
	Costs *CostsSpec `yaml:"costs,omitempty"`

	// PodWeights / StationWeights override the generator defaults
	// (geometric pod weights, uniform station weights).
	PodWeights     map[int]float64 `yaml:"pod_weights,omitempty"`
	StationWeights map[int]float64 `yaml:"station_weights,omitempty"`

	// Departures, when present, replaces the stochastic generator with a
	// fixed departure list.
	Departures []DepartureSpec `yaml:"departures,omitempty"`
}

// StationSpec declares one picking station and its queue capacity.
type StationSpec struct {
	ID        int `yaml:"id"`
	QueueSize int `yaml:"queue_size"`
}

// CostsSpec is an explicit cost table: from_station[station][place] and
// to_station[place][station]. Missing entries cost zero.
type CostsSpec struct {
	FromStation map[int]map[int]float64 `yaml:"from_station,omitempty"`
	ToStation   map[int]map[int]float64 `yaml:"to_station,omitempty"`
}

// DepartureSpec is one fixed departure request.
type DepartureSpec struct {
	Pod     int `yaml:"pod"`
	Station int `yaml:"station"`
}

// LoadScenario reads and parses a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*ScenarioSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var spec ScenarioSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &spec, nil
}

// CorridorScenario generates the linear-corridor layout: all stations sit at
// one end of a single aisle and the movement cost grows linearly with the
// place's depth in the aisle.
func CorridorScenario(places, pods, stations, queueSize int) *ScenarioSpec {
	spec := &ScenarioSpec{Places: places, Pods: pods}
	for id := 1; id <= stations; id++ {
		spec.Stations = append(spec.Stations, StationSpec{ID: id, QueueSize: queueSize})
	}
	return spec
}

// Validate checks that all fields in the scenario are valid.
func (s *ScenarioSpec) Validate() error {
	if s.Places <= 0 {
		return fmt.Errorf("places must be positive, got %d", s.Places)
	}
	if s.Pods <= 0 {
		return fmt.Errorf("pods must be positive, got %d", s.Pods)
	}
	if len(s.Stations) == 0 {
		return fmt.Errorf("at least one station required")
	}
	seen := make(map[int]bool, len(s.Stations))
	for _, st := range s.Stations {
		if st.ID <= 0 {
			return fmt.Errorf("station id must be positive, got %d", st.ID)
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate station id %d", st.ID)
		}
		seen[st.ID] = true
		if st.QueueSize <= 0 {
			return fmt.Errorf("station %d: queue_size must be positive, got %d", st.ID, st.QueueSize)
		}
	}

	if len(s.InitialPlacement) == 0 && s.Pods > s.Places {
		return fmt.Errorf("default placement needs pods <= places, got %d pods on %d places", s.Pods, s.Places)
	}
	placedPods := make(map[int]bool, len(s.InitialPlacement))
	for place, pod := range s.InitialPlacement {
		if place < 1 || place > s.Places {
			return fmt.Errorf("initial_placement: place %d out of range 1..%d", place, s.Places)
		}
		if pod < 1 || pod > s.Pods {
			return fmt.Errorf("initial_placement: pod %d out of range 1..%d", pod, s.Pods)
		}
		if placedPods[pod] {
			return fmt.Errorf("initial_placement: pod %d placed twice", pod)
		}
		placedPods[pod] = true
	}

	if s.Costs != nil {
		for station, row := range s.Costs.FromStation {
			if !seen[station] {
				return fmt.Errorf("costs.from_station: unknown station %d", station)
			}
			for place := range row {
				if place < 1 || place > s.Places {
					return fmt.Errorf("costs.from_station: place %d out of range 1..%d", place, s.Places)
				}
			}
		}
		for place, row := range s.Costs.ToStation {
			if place < 1 || place > s.Places {
				return fmt.Errorf("costs.to_station: place %d out of range 1..%d", place, s.Places)
			}
			for station := range row {
				if !seen[station] {
					return fmt.Errorf("costs.to_station: unknown station %d", station)
				}
			}
		}
	}

	for pod := range s.PodWeights {
		if pod < 1 || pod > s.Pods {
			return fmt.Errorf("pod_weights: pod %d out of range 1..%d", pod, s.Pods)
		}
	}
	for station := range s.StationWeights {
		if !seen[station] {
			return fmt.Errorf("station_weights: unknown station %d", station)
		}
	}
	for i, dep := range s.Departures {
		if dep.Pod < 1 || dep.Pod > s.Pods {
			return fmt.Errorf("departures[%d]: pod %d out of range 1..%d", i, dep.Pod, s.Pods)
		}
		if !seen[dep.Station] {
			return fmt.Errorf("departures[%d]: unknown station %d", i, dep.Station)
		}
	}
	return nil
}

// BuildWarehouse materializes the scenario into a fresh warehouse: places,
// pods, stations, initial placement and the cost model. The departure
// generator is bound separately by the caller.
func (s *ScenarioSpec) BuildWarehouse() (*sim.Warehouse, error) {
	w := sim.NewWarehouse()
	w.SetNumPlaces(s.Places)
	w.SetNumPods(s.Pods)
	for _, st := range s.Stations {
		w.AddStation(sim.NewStation(sim.StationID(st.ID), st.QueueSize))
	}

	if len(s.InitialPlacement) > 0 {
		places := make([]int, 0, len(s.InitialPlacement))
		for place := range s.InitialPlacement {
			places = append(places, place)
		}
		sort.Ints(places)
		for _, place := range places {
			pod := sim.PodID(s.InitialPlacement[place])
			if err := w.AssignPodToPlace(pod, sim.PlaceID(place)); err != nil {
				return nil, err
			}
		}
	} else {
		for pod := 1; pod <= s.Pods; pod++ {
			if err := w.AssignPodToPlace(sim.PodID(pod), sim.PlaceID(pod)); err != nil {
				return nil, err
			}
		}
	}

	w.SetCostModel(s.buildCosts(w))
	return w, nil
}

func (s *ScenarioSpec) buildCosts(w *sim.Warehouse) sim.CostModel {
	table := sim.NewTableCosts(w.StationIDs(), w.Places())
	if s.Costs == nil {
		// Corridor layout: station s parked s-1 steps before the aisle
		// entrance, place p sitting p steps into the aisle.
		for _, station := range w.StationIDs() {
			for _, place := range w.Places() {
				d := float64(place) + float64(station-1)
				table.SetFromStation(station, place, d)
				table.SetToStation(place, station, d)
			}
		}
		return table
	}
	for station, row := range s.Costs.FromStation {
		for place, cost := range row {
			table.SetFromStation(sim.StationID(station), sim.PlaceID(place), cost)
		}
	}
	for place, row := range s.Costs.ToStation {
		for station, cost := range row {
			table.SetToStation(sim.PlaceID(place), sim.StationID(station), cost)
		}
	}
	return table
}

// DepartureList converts the fixed departure entries.
func (s *ScenarioSpec) DepartureList() []sim.Departure {
	out := make([]sim.Departure, len(s.Departures))
	for i, dep := range s.Departures {
		out[i] = sim.Departure{Pod: sim.PodID(dep.Pod), Station: sim.StationID(dep.Station)}
	}
	return out
}
