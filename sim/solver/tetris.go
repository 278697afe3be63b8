package solver

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/prp-sim/prp-sim/sim"
)

// OccupationPriority selects the order in which the Tetris improve sweep
// visits occupation intervals.
type OccupationPriority int

const (
	// PodFrequencyPriority moves intervals of frequently departing pods
	// first.
	PodFrequencyPriority OccupationPriority = iota
	// SojournTimePriority moves the shortest stays first.
	SojournTimePriority
	// DeparturePriority moves the earliest-ending stays first.
	DeparturePriority
)

// SolveTetris computes a full decision sequence for the warehouse's
// remaining departures in two phases. The seed phase runs the greedy
// cheapest-place policy against negated costs on a clone, deliberately
// parking frequent pods on bad places, which yields a feasible occupation
// table plus empirical station weights. The improve phase sweeps the
// intervals once in the selected priority order and relocates each one to
// the cheapest place whose intervals are free for the exact window.
//
// The warehouse is not modified; its generator must be cloneable. The result
// has one entry per remaining departure, InvalidPlace for ticks without a
// placement, and is meant to be fed to a Playback policy.
func SolveTetris(w *sim.Warehouse, mode CostMode, prio OccupationPriority) ([]sim.PlaceID, error) {
	if w.Generator() == nil || !w.Generator().IsFinite() {
		return nil, fmt.Errorf("tetris: needs a finite departure generator")
	}
	tBegin := w.T()
	horizon := w.Generator().Len()

	table, avg, err := preSolve(w)
	if err != nil {
		return nil, err
	}

	costFunc := costFunction(avg, mode)
	sortOccupations := occupationSort(prio)

	improve(table, w.Places(), tBegin, costFunc, sortOccupations)

	return tableToSolution(table, tBegin, horizon), nil
}

// preSolve produces a feasible occupation table by replaying the departures
// on a clone under negated costs, plus an average-cost model weighted by the
// station frequencies observed in that replay.
func preSolve(w *sim.Warehouse) (sim.OccupationTable, *sim.AverageCosts, error) {
	clone, err := w.Clone(true)
	if err != nil {
		return nil, nil, fmt.Errorf("tetris pre-solve: %w", err)
	}

	seed := NewCheapestPlaceWithCosts(clone, &sim.NegatedCosts{Base: w.CostModel()}, DecisionCosts)
	occupations, err := sim.ExtractOccupations(clone, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("tetris pre-solve: %w", err)
	}

	table := sim.BuildOccupationTable(occupations, w.Places())
	weights := sim.StationFrequencies(occupations, false)
	return table, sim.NewAverageCosts(w.CostModel(), weights), nil
}

// costFunction prices one interval's storage visit. Open station sides fall
// back to the weighted expectation of the seed run.
func costFunction(avg *sim.AverageCosts, mode CostMode) func(sim.StationID, sim.PlaceID, sim.StationID) float64 {
	if mode == FromStationOnly {
		return func(from sim.StationID, place sim.PlaceID, _ sim.StationID) float64 {
			return avg.FromStation(from, place)
		}
	}
	return func(from sim.StationID, place sim.PlaceID, to sim.StationID) float64 {
		return avg.Decision(from, place, to)
	}
}

// improve sweeps the intervals once: each movable interval is relocated to
// the cheapest place that is free for its window. No backtracking; an
// interval with a cheaper but occupied alternative stays where it is.
func improve(table sim.OccupationTable, places []sim.PlaceID, tBegin int64,
	costFunc func(sim.StationID, sim.PlaceID, sim.StationID) float64,
	sortOccupations func([]sim.Occupation) []sim.Occupation) {

	occupations := sortOccupations(table.Occupations())
	for _, occ := range occupations {
		// Intervals begun before the solve are initial constraints.
		if occ.Begin < tBegin {
			continue
		}

		bestCosts := costFunc(occ.FromStation, occ.Place, occ.ToStation)
		bestPlace := occ.Place
		cheaperBlocked := false
		for _, place := range places {
			cur := costFunc(occ.FromStation, place, occ.ToStation)
			if cur >= bestCosts {
				continue
			}
			// Cost check first; the overlap scan is the expensive part.
			if table[place].IsFree(occ.Begin, occ.End) {
				bestCosts = cur
				bestPlace = place
			} else {
				cheaperBlocked = true
			}
		}

		if bestPlace == occ.Place {
			if cheaperBlocked {
				logrus.Debugf("tetris: pod %d interval [%d, %d) blocked on place %d, cheaper places occupied",
					occ.Pod, occ.Begin, occ.End, occ.Place)
			}
			continue
		}
		moved, ok := table[occ.Place].Remove(occ.Begin)
		if !ok {
			logrus.Warnf("tetris: interval beginning at %d vanished from place %d", occ.Begin, occ.Place)
			continue
		}
		moved.Place = bestPlace
		table[bestPlace].Occupy(moved)
	}
}

// occupationSort returns the interval ordering for the improve sweep.
func occupationSort(prio OccupationPriority) func([]sim.Occupation) []sim.Occupation {
	switch prio {
	case PodFrequencyPriority:
		return frequencyPriority
	case SojournTimePriority:
		return func(occs []sim.Occupation) []sim.Occupation {
			out := append([]sim.Occupation(nil), occs...)
			sort.SliceStable(out, func(i, j int) bool { return out[i].Span() < out[j].Span() })
			return out
		}
	case DeparturePriority:
		return func(occs []sim.Occupation) []sim.Occupation {
			out := append([]sim.Occupation(nil), occs...)
			sort.SliceStable(out, func(i, j int) bool {
				if out[i].End != out[j].End {
					return out[i].End < out[j].End
				}
				return out[i].Begin < out[j].Begin
			})
			return out
		}
	default:
		panic(fmt.Sprintf("unknown occupation priority %d", prio))
	}
}

// frequencyPriority orders intervals by how often their pod occurs in the
// table, most frequent pod first, then by begin. Equal counts rank the lower
// pod id first.
func frequencyPriority(occs []sim.Occupation) []sim.Occupation {
	counts := make(map[sim.PodID]int)
	for _, occ := range occs {
		counts[occ.Pod]++
	}
	pods := make([]sim.PodID, 0, len(counts))
	for pod := range counts {
		pods = append(pods, pod)
	}
	sort.Slice(pods, func(i, j int) bool { return pods[i] < pods[j] })
	sort.SliceStable(pods, func(i, j int) bool { return counts[pods[i]] > counts[pods[j]] })

	rank := make(map[sim.PodID]int, len(pods))
	for i, pod := range pods {
		rank[pod] = i
	}

	out := append([]sim.Occupation(nil), occs...)
	sort.SliceStable(out, func(i, j int) bool {
		if rank[out[i].Pod] != rank[out[j].Pod] {
			return rank[out[i].Pod] < rank[out[j].Pod]
		}
		return out[i].Begin < out[j].Begin
	})
	return out
}

// tableToSolution converts the occupation table back into a per-tick
// decision slice: an interval beginning at t means the decision at tick t-1
// placed its pod there. Ticks without a placement become InvalidPlace; the
// slice is padded to one entry per remaining departure.
func tableToSolution(table sim.OccupationTable, tBegin int64, horizon int) []sim.PlaceID {
	type arrival struct {
		t     int64
		place sim.PlaceID
	}
	var arrivals []arrival
	for _, occ := range table.Occupations() {
		if occ.Begin < tBegin {
			continue
		}
		arrivals = append(arrivals, arrival{t: occ.Begin, place: occ.Place})
	}
	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].t < arrivals[j].t })

	solution := make([]sim.PlaceID, 0, horizon)
	for _, a := range arrivals {
		idx := int(a.t - tBegin - 1)
		for len(solution) < idx {
			solution = append(solution, sim.InvalidPlace)
		}
		solution = append(solution, a.place)
	}
	for len(solution) < horizon {
		solution = append(solution, sim.InvalidPlace)
	}
	return solution
}
