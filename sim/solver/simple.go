// Package solver implements the placement policies of the pod
// repositioning simulator: greedy baselines, two forecast-driven priority
// heuristics and the batch Tetris interval-rearrangement heuristic.
package solver

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/prp-sim/prp-sim/sim"
)

// CostMode selects how CheapestPlace (and the Tetris improve phase) price a
// candidate place.
type CostMode int

const (
	// FromStationOnly prices only the movement from the station into the
	// place.
	FromStationOnly CostMode = iota
	// DecisionCosts adds the anticipated movement from the place to the
	// pod's next station, looked up in a deterministic generator's future
	// list.
	DecisionCosts
)

// futureLister is implemented by generators that can reveal their remaining
// departures (deterministic replays).
type futureLister interface {
	Remaining() []sim.Departure
}

// Random picks uniformly among the available places.
type Random struct {
	w   *sim.Warehouse
	rng *rand.Rand
}

// NewRandom creates a random placement policy drawing from an explicitly
// owned rng.
func NewRandom(w *sim.Warehouse, rng *rand.Rand) *Random {
	return &Random{w: w, rng: rng}
}

func (r *Random) DecideNewPlace() sim.PlaceID {
	pod, _ := r.w.NextArrivalToStorage()
	if pod == sim.InvalidPod {
		return sim.InvalidPlace
	}
	available := r.w.AvailablePlaces()
	return available[r.rng.Intn(len(available))]
}

// Fixed always returns a pod to the place it held when the policy was
// constructed.
type Fixed struct {
	w         *sim.Warehouse
	positions map[sim.PodID]sim.PlaceID
}

// NewFixed snapshots the current storage assignment; pods queued at
// stations at construction time have no snapshot and must not depart before
// their first repositioning.
func NewFixed(w *sim.Warehouse) *Fixed {
	f := &Fixed{w: w, positions: make(map[sim.PodID]sim.PlaceID)}
	for _, pod := range w.PodsInStorage() {
		f.positions[pod] = w.PlaceByPod(pod)
	}
	return f
}

// NewFixedPositions uses an explicit pod→place assignment instead of a
// snapshot.
func NewFixedPositions(w *sim.Warehouse, positions map[sim.PodID]sim.PlaceID) *Fixed {
	cp := make(map[sim.PodID]sim.PlaceID, len(positions))
	for pod, place := range positions {
		cp[pod] = place
	}
	return &Fixed{w: w, positions: cp}
}

func (f *Fixed) DecideNewPlace() sim.PlaceID {
	pod, _ := f.w.NextArrivalToStorage()
	if pod == sim.InvalidPod {
		return sim.InvalidPlace
	}
	return f.positions[pod]
}

// CheapestPlace scans the available places and picks the one with minimal
// cost for the arriving pod; ties go to the lowest place id.
type CheapestPlace struct {
	w     *sim.Warehouse
	costs sim.CostModel
	mode  CostMode
}

// NewCheapestPlace creates the greedy policy against the warehouse's own
// cost model.
func NewCheapestPlace(w *sim.Warehouse, mode CostMode) *CheapestPlace {
	return &CheapestPlace{w: w, costs: w.CostModel(), mode: mode}
}

// NewCheapestPlaceWithCosts rates places with a different cost model than
// the warehouse accrues — the Tetris seed phase passes a negated model
// here.
func NewCheapestPlaceWithCosts(w *sim.Warehouse, costs sim.CostModel, mode CostMode) *CheapestPlace {
	return &CheapestPlace{w: w, costs: costs, mode: mode}
}

func (c *CheapestPlace) DecideNewPlace() sim.PlaceID {
	pod, station := c.w.NextArrivalToStorage()
	if pod == sim.InvalidPod {
		return sim.InvalidPlace
	}

	best := sim.InvalidPlace
	bestCosts := math.Inf(1)
	for _, place := range c.w.AvailablePlaces() {
		cur := c.costs.FromStation(station, place)
		if c.mode == DecisionCosts {
			if next := c.nextStation(pod); next != sim.InvalidStation {
				cur += c.costs.ToStation(place, next)
			}
		}
		if cur < bestCosts {
			best = place
			bestCosts = cur
		}
	}
	return best
}

// nextStation anticipates the station the pod will visit next, or
// InvalidStation if the pod never departs again or the generator cannot
// reveal its future.
func (c *CheapestPlace) nextStation(pod sim.PodID) sim.StationID {
	fl, ok := c.w.Generator().(futureLister)
	if !ok {
		return sim.InvalidStation
	}
	for _, dep := range fl.Remaining() {
		if dep.Pod == pod {
			return dep.Station
		}
	}
	return sim.InvalidStation
}

// SomePlace assigns the free place with the smallest id; used to create
// throwaway feasible runs where the choice of place does not matter.
type SomePlace struct {
	w *sim.Warehouse
}

// NewSomePlace creates the smallest-index policy.
func NewSomePlace(w *sim.Warehouse) *SomePlace {
	return &SomePlace{w: w}
}

func (s *SomePlace) DecideNewPlace() sim.PlaceID {
	pod, _ := s.w.NextArrivalToStorage()
	if pod == sim.InvalidPod {
		return sim.InvalidPlace
	}
	for _, place := range s.w.Places() {
		if s.w.PlaceIsFree(place) {
			return place
		}
	}
	// Only the slot vacated by the current departure is left.
	departing, _ := s.w.Generator().Current()
	return s.w.PlaceByPod(departing)
}

// Playback replays a precomputed decision sequence, one entry per tick.
type Playback struct {
	actions []sim.PlaceID
	next    int
}

// NewPlayback creates a policy replaying the given decisions. InvalidPlace
// entries mean "no repositioning this tick".
func NewPlayback(actions []sim.PlaceID) *Playback {
	return &Playback{actions: append([]sim.PlaceID(nil), actions...)}
}

func (p *Playback) DecideNewPlace() sim.PlaceID {
	if p.next >= len(p.actions) {
		return sim.InvalidPlace
	}
	action := p.actions[p.next]
	p.next++
	return action
}

// Reset restarts the playback from the first decision.
func (p *Playback) Reset() {
	p.next = 0
}

// Remaining returns the number of not-yet-replayed decisions.
func (p *Playback) Remaining() int {
	return len(p.actions) - p.next
}
