package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/tiendc/go-deepcopy"
)

// Warehouse is the state machine of the pod repositioning problem. It owns
// the place↔pod assignment, the station queues, simulated time and the
// accumulated travel costs.
//
// Setup order: SetNumPlaces, SetNumPods, AddStation, then assign pods via
// AssignPodToPlace / AssignPodToStation, bind a cost model and a departure
// generator, and finally advance with Next(place) once per tick until the
// generator is exhausted.
//
// The place→pod mapping is partially injective: no two places ever hold the
// same pod. Both directions are kept in sync on every mutation so reverse
// lookups are O(1).
type Warehouse struct {
	numPods   int
	numPlaces int

	stations   map[StationID]*Station
	stationIDs []StationID // ascending, rebuilt on AddStation

	placeToPod   map[PlaceID]PodID
	podToPlace   map[PodID]PlaceID
	podToStation map[PodID]StationID

	t          int64
	totalCosts float64

	costs CostModel
	gen   DepartureGenerator

	availableCache []PlaceID // nil when stale
}

// NewWarehouse creates an empty warehouse in its configuring state.
func NewWarehouse() *Warehouse {
	return &Warehouse{
		stations:     make(map[StationID]*Station),
		placeToPod:   make(map[PlaceID]PodID),
		podToPlace:   make(map[PodID]PlaceID),
		podToStation: make(map[PodID]StationID),
	}
}

// SetNumPods sets the pod id domain to 1..n. Call before assigning pods.
func (w *Warehouse) SetNumPods(n int) {
	w.numPods = n
}

// SetNumPlaces sets the place id domain to 1..n. Shrinking drops any
// assignment on a removed place. Call before assigning pods.
func (w *Warehouse) SetNumPlaces(n int) {
	for place := PlaceID(n + 1); place <= PlaceID(w.numPlaces); place++ {
		if pod, ok := w.placeToPod[place]; ok {
			delete(w.podToPlace, pod)
			delete(w.placeToPod, place)
		}
	}
	w.numPlaces = n
	w.availableCache = nil
}

// NumPods returns the size of the pod domain.
func (w *Warehouse) NumPods() int { return w.numPods }

// NumPlaces returns the size of the place domain.
func (w *Warehouse) NumPlaces() int { return w.numPlaces }

// Places returns all place ids in ascending order.
func (w *Warehouse) Places() []PlaceID {
	out := make([]PlaceID, w.numPlaces)
	for i := range out {
		out[i] = PlaceID(i + 1)
	}
	return out
}

// Pods returns all pod ids in ascending order.
func (w *Warehouse) Pods() []PodID {
	out := make([]PodID, w.numPods)
	for i := range out {
		out[i] = PodID(i + 1)
	}
	return out
}

// AddStation registers a station. The warehouse stores its own copy; the
// argument stays untouched by later transitions.
func (w *Warehouse) AddStation(st *Station) {
	cp := NewStation(st.ID, st.MaxN)
	cp.pods = append([]PodID(nil), st.pods...)
	w.stations[st.ID] = cp

	w.stationIDs = w.stationIDs[:0]
	for id := range w.stations {
		w.stationIDs = append(w.stationIDs, id)
	}
	sort.Slice(w.stationIDs, func(i, j int) bool { return w.stationIDs[i] < w.stationIDs[j] })
}

// StationIDs returns all station ids in ascending order.
func (w *Warehouse) StationIDs() []StationID {
	return w.stationIDs
}

// Station returns the warehouse's station with the given id, or nil. The
// returned value is the live queue — callers must treat it as read-only.
func (w *Warehouse) Station(id StationID) *Station {
	return w.stations[id]
}

// SetCostModel binds the cost model used for cost accrual.
func (w *Warehouse) SetCostModel(c CostModel) {
	w.costs = c
}

// CostModel returns the bound cost model.
func (w *Warehouse) CostModel() CostModel {
	return w.costs
}

// SetDepartureGenerator binds the source of (pod, station) departure
// requests.
func (w *Warehouse) SetDepartureGenerator(g DepartureGenerator) {
	w.gen = g
	w.availableCache = nil
}

// Generator returns the bound departure generator.
func (w *Warehouse) Generator() DepartureGenerator {
	return w.gen
}

// T returns the current simulated time.
func (w *Warehouse) T() int64 { return w.t }

// TotalCosts returns the accumulated travel cost. It is monotonically
// non-decreasing under a non-negative cost model.
func (w *Warehouse) TotalCosts() float64 { return w.totalCosts }

// Finished reports whether the departure generator is exhausted.
func (w *Warehouse) Finished() bool {
	return w.gen == nil || w.gen.Len() == 0
}

// AssignPodToPlace puts a pod onto an empty place during setup.
func (w *Warehouse) AssignPodToPlace(pod PodID, place PlaceID) error {
	if pod < 1 || int(pod) > w.numPods {
		return fmt.Errorf("assign pod %d to place %d: %w", pod, place, ErrPodNotFound)
	}
	if place < 1 || int(place) > w.numPlaces {
		return fmt.Errorf("assign pod %d to place %d: %w", pod, place, ErrPlaceNotFound)
	}
	if occupant, ok := w.placeToPod[place]; ok {
		return fmt.Errorf("assign pod %d: place %d holds pod %d: %w", pod, place, occupant, ErrPlaceOccupied)
	}
	if existing, ok := w.podToPlace[pod]; ok {
		return fmt.Errorf("assign pod %d: already on place %d: %w", pod, existing, ErrPodLocationNotUnique)
	}
	if st := w.StationOfPod(pod); st != InvalidStation {
		return fmt.Errorf("assign pod %d: already queued at station %d: %w", pod, st, ErrPodLocationNotUnique)
	}
	w.placeToPod[place] = pod
	w.podToPlace[pod] = place
	w.availableCache = nil
	return nil
}

// AssignPodToStation enqueues a pod at a station during setup. The queue
// must not be full; setup never evicts.
func (w *Warehouse) AssignPodToStation(pod PodID, station StationID) error {
	if pod < 1 || int(pod) > w.numPods {
		return fmt.Errorf("assign pod %d to station %d: %w", pod, station, ErrPodNotFound)
	}
	st, ok := w.stations[station]
	if !ok {
		return fmt.Errorf("assign pod %d to station %d: %w", pod, station, ErrStationNotFound)
	}
	if _, ok := w.podToPlace[pod]; ok {
		return fmt.Errorf("assign pod %d: already in storage: %w", pod, ErrPodLocationNotUnique)
	}
	if evicted := st.Enqueue(pod); evicted != InvalidPod {
		inconsistent(w.t, "setup enqueue evicted pod %d from station %d", evicted, station)
	}
	w.podToStation[pod] = station
	return nil
}

// PlaceByPod returns the place holding the pod, or InvalidPlace if the pod
// is not in storage.
func (w *Warehouse) PlaceByPod(pod PodID) PlaceID {
	if place, ok := w.podToPlace[pod]; ok {
		return place
	}
	return InvalidPlace
}

// PodByPlace returns the pod on the place, or InvalidPod if it is free.
func (w *Warehouse) PodByPlace(place PlaceID) PodID {
	if pod, ok := w.placeToPod[place]; ok {
		return pod
	}
	return InvalidPod
}

// PlaceIsFree reports whether the place holds no pod.
func (w *Warehouse) PlaceIsFree(place PlaceID) bool {
	_, ok := w.placeToPod[place]
	return !ok
}

// StationOfPod returns the station the pod is queued at, or InvalidStation.
func (w *Warehouse) StationOfPod(pod PodID) StationID {
	if st, ok := w.podToStation[pod]; ok && st != InvalidStation {
		return st
	}
	return InvalidStation
}

// PodsInStorage returns the pods currently on places, ascending. Departure
// generators restrict their candidate draws to this set.
func (w *Warehouse) PodsInStorage() []PodID {
	out := make([]PodID, 0, len(w.podToPlace))
	for pod := range w.podToPlace {
		out = append(out, pod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AvailablePlaces returns the places a policy may choose this tick, in
// ascending order: every free place plus, while departures remain, the place
// about to be vacated by the current departure. The result is cached until
// the next mutation.
func (w *Warehouse) AvailablePlaces() []PlaceID {
	if w.availableCache == nil {
		w.updateAvailablePlaces()
	}
	return w.availableCache
}

func (w *Warehouse) updateAvailablePlaces() {
	available := make([]PlaceID, 0, w.numPlaces-len(w.placeToPod)+1)
	for place := PlaceID(1); place <= PlaceID(w.numPlaces); place++ {
		if _, ok := w.placeToPod[place]; !ok {
			available = append(available, place)
		}
	}
	if w.gen != nil && w.gen.Len() != 0 {
		pod, _ := w.gen.Current()
		if place := w.PlaceByPod(pod); place != InvalidPlace {
			available = append(available, place)
		}
	}
	// Ascending order keeps policy behavior reproducible.
	sort.Slice(available, func(i, j int) bool { return available[i] < available[j] })
	w.availableCache = available
}

// NextArrivalToStorage returns the pod that must be repositioned into
// storage this tick and the station it leaves, or (InvalidPod,
// InvalidStation) if no repositioning is due. It is a pure peek: policies
// call it before deciding, Next calls it again when transitioning.
//
// Candidate rules, in order:
//  1. the current departure targets a full station — its head will be
//     evicted by the arrival;
//  2. otherwise the head of the lowest-id station whose queue is already
//     full.
func (w *Warehouse) NextArrivalToStorage() (PodID, StationID) {
	if w.gen == nil || w.gen.Len() == 0 {
		return InvalidPod, InvalidStation
	}
	pod, station := w.gen.Current()
	if pod != InvalidPod {
		if st, ok := w.stations[station]; ok && st.IsFull() {
			return st.Head(), station
		}
	}
	for _, id := range w.stationIDs {
		if st := w.stations[id]; st.IsFull() {
			return st.Head(), id
		}
	}
	return InvalidPod, InvalidStation
}

// Next applies one transition: the current departure (if any) is enqueued
// at its station, the repositioning candidate (if any) is placed at target,
// costs are accrued for both movements, time advances by one and the
// generator moves on. target is ignored when no repositioning is due.
//
// It returns true while departures remain. Validation failures return a
// wrapped sentinel error with the warehouse unchanged.
func (w *Warehouse) Next(target PlaceID) (bool, error) {
	if w.gen == nil || w.gen.Len() == 0 {
		return false, nil
	}

	pod, stationID := w.gen.Current()
	candidate, fromStation := w.NextArrivalToStorage()

	// Validate everything before mutating.
	if pod != InvalidPod {
		if _, ok := w.stations[stationID]; !ok {
			return true, fmt.Errorf("departure of pod %d: %w: station %d", pod, ErrStationNotFound, stationID)
		}
		if _, ok := w.podToPlace[pod]; !ok {
			return true, fmt.Errorf("departure of pod %d to station %d: %w", pod, stationID, ErrPodNotInStorage)
		}
	}
	if candidate != InvalidPod {
		if target < 1 || int(target) > w.numPlaces {
			return true, fmt.Errorf("reposition pod %d: %w: place %d", candidate, ErrPlaceNotFound, target)
		}
		occupant, occupied := w.placeToPod[target]
		if occupied && occupant != pod {
			// The place being vacated by this tick's departure is fair game.
			return true, fmt.Errorf("reposition pod %d at t=%d: place %d holds pod %d: %w",
				candidate, w.t, target, occupant, ErrPlaceOccupied)
		}
	}

	evictionByArrival := false
	if pod != InvalidPod {
		evictionByArrival = w.stations[stationID].IsFull()
		w.movePodToStation(pod, stationID)
	}
	if candidate != InvalidPod {
		if !evictionByArrival {
			// Rule 2 candidate: drain the full queue explicitly.
			if head := w.stations[fromStation].Dequeue(); head != candidate {
				inconsistent(w.t, "station %d head changed from %d to %d mid-transition", fromStation, candidate, head)
			}
		}
		w.movePodFromStation(candidate, fromStation, target)
	}

	w.t++
	w.gen.Next()
	w.availableCache = nil
	if w.gen.Len() == 0 {
		return false, nil
	}
	w.updateAvailablePlaces()
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		nextPod, nextStation := w.gen.Current()
		logrus.Debugf("[t=%d] next departure pod=%d station=%d", w.t, nextPod, nextStation)
	}
	return true, nil
}

// movePodToStation removes the pod from its place and enqueues it,
// accruing the to-station cost. The caller has validated the pod's
// location. An eviction caused by the enqueue is handled by the caller.
func (w *Warehouse) movePodToStation(pod PodID, station StationID) {
	place := w.podToPlace[pod]
	delete(w.placeToPod, place)
	delete(w.podToPlace, pod)
	w.totalCosts += w.costs.ToStation(place, station)
	w.stations[station].Enqueue(pod)
	w.podToStation[pod] = station
}

// movePodFromStation puts a dequeued pod onto a free place, accruing the
// from-station cost.
func (w *Warehouse) movePodFromStation(pod PodID, station StationID, place PlaceID) {
	if existing, ok := w.podToPlace[pod]; ok {
		inconsistent(w.t, "pod %d arriving from station %d is already on place %d", pod, station, existing)
	}
	w.totalCosts += w.costs.FromStation(station, place)
	w.placeToPod[place] = pod
	w.podToPlace[pod] = place
	delete(w.podToStation, pod)
}

// EmptyStorageArea removes all pods from storage places.
func (w *Warehouse) EmptyStorageArea() {
	w.placeToPod = make(map[PlaceID]PodID)
	w.podToPlace = make(map[PodID]PlaceID)
	w.availableCache = nil
}

// EmptyStations removes all pods from station queues.
func (w *Warehouse) EmptyStations() {
	for _, st := range w.stations {
		st.Clear()
	}
	w.podToStation = make(map[PodID]StationID)
}

// DeletePods removes every pod from the warehouse, keeping places and
// stations.
func (w *Warehouse) DeletePods() {
	w.EmptyStorageArea()
	w.EmptyStations()
}

// Clone returns a deep copy of the warehouse for speculative runs. The
// departure generator must be cloneable (deterministic or recorded); the
// static cost model is shared by reference when shareCosts is true, per the
// immutability contract of CostModel.
func (w *Warehouse) Clone(shareCosts bool) (*Warehouse, error) {
	var genCopy DepartureGenerator
	if w.gen != nil {
		cg, ok := w.gen.(CloneableGenerator)
		if !ok {
			return nil, fmt.Errorf("clone warehouse: generator %T is not cloneable; record it first", w.gen)
		}
		genCopy = cg.CloneGenerator()
	}

	cp := NewWarehouse()
	cp.numPods = w.numPods
	cp.numPlaces = w.numPlaces
	cp.t = w.t
	cp.totalCosts = w.totalCosts
	cp.gen = genCopy

	if err := deepcopy.Copy(&cp.placeToPod, w.placeToPod); err != nil {
		return nil, fmt.Errorf("clone warehouse: %w", err)
	}
	if err := deepcopy.Copy(&cp.podToPlace, w.podToPlace); err != nil {
		return nil, fmt.Errorf("clone warehouse: %w", err)
	}
	if err := deepcopy.Copy(&cp.podToStation, w.podToStation); err != nil {
		return nil, fmt.Errorf("clone warehouse: %w", err)
	}
	for _, id := range w.stationIDs {
		cp.AddStation(w.stations[id])
	}

	if shareCosts {
		cp.costs = w.costs
	} else if w.costs != nil {
		cp.costs = PrecomputeCosts(w.costs)
	}
	return cp, nil
}
