package solver

import (
	"sort"

	"github.com/prp-sim/prp-sim/sim"
)

// DefaultPriorityFactor is the multiplier applied to the arriving pod's own
// frequency when ranking competitors. Slightly above one so the arriving pod
// wins exact frequency ties without otherwise distorting the ranking.
const DefaultPriorityFactor = 1.00001

// PriorityA places frequently departing pods on cheap places using nothing
// but frequencies observed so far. Per decision it ranks all pods by
// historical departure frequency, ranks the available places by expected
// round-trip cost, asks each pod in priority order whether it wants one of
// the offered places, and maps the arriving pod's rank among the movers onto
// the place ranking.
type PriorityA struct {
	w *sim.Warehouse

	podFrequencies     *FrequencyCounter[sim.PodID]
	stationFrequencies *FrequencyCounter[sim.StationID]

	// PriorityFactor weights the arriving pod's frequency in the ranking.
	PriorityFactor float64
}

// NewPriorityA creates the forecast-free priority policy.
func NewPriorityA(w *sim.Warehouse) *PriorityA {
	return &PriorityA{
		w:                  w,
		podFrequencies:     NewFrequencyCounter(w.Pods()),
		stationFrequencies: NewFrequencyCounter(w.StationIDs()),
		PriorityFactor:     DefaultPriorityFactor,
	}
}

func (a *PriorityA) DecideNewPlace() sim.PlaceID {
	pod, station := a.w.NextArrivalToStorage()
	if pod == sim.InvalidPod {
		return sim.InvalidPlace
	}

	// Frequencies include the current departure before the ranking is built.
	a.podFrequencies.Increment(pod)
	a.stationFrequencies.Increment(station)

	weights := a.estimateStationWeights()
	pods := a.concurrentPods(pod)
	places := rankAvailablePlaces(a.w, station, weights)
	pods = a.wantToChange(pods, places, weights)

	return scalePosition(places, pods, pod)
}

// estimateStationWeights turns the observed station frequencies into a
// probability distribution; uniform while no data exists yet.
func (a *PriorityA) estimateStationWeights() map[sim.StationID]float64 {
	stations := a.w.StationIDs()
	w := make(map[sim.StationID]float64, len(stations))
	total := a.stationFrequencies.Total()
	if total == 0 {
		for _, id := range stations {
			w[id] = 1 / float64(len(stations))
		}
		return w
	}
	for _, id := range stations {
		w[id] = a.stationFrequencies.Count(id) / total
	}
	return w
}

// concurrentPods ranks all pods by frequency, highest first; the arriving
// pod's frequency is boosted by the priority factor. Stable over ascending
// pod ids so equal frequencies keep a canonical order.
func (a *PriorityA) concurrentPods(current sim.PodID) []sim.PodID {
	pods := a.w.Pods()
	priority := make(map[sim.PodID]float64, len(pods))
	for _, pod := range pods {
		p := a.podFrequencies.Count(pod)
		if pod == current {
			p *= a.PriorityFactor
		}
		priority[pod] = p
	}
	sort.SliceStable(pods, func(i, j int) bool { return priority[pods[i]] > priority[pods[j]] })
	return pods
}

// wantToChange filters the pod ranking down to the pods that actually
// compete for the offered places: pods in storage compete only while the
// cheapest remaining offer beats their current place; pods away from storage
// always compete because their old place may be taken.
func (a *PriorityA) wantToChange(pods []sim.PodID, places []sim.PlaceID,
	weights map[sim.StationID]float64) []sim.PodID {
	costs := a.w.CostModel()

	offers := append([]sim.PlaceID(nil), places...)
	sort.SliceStable(offers, func(i, j int) bool {
		return averagePlaceCost(costs, offers[i], weights) < averagePlaceCost(costs, offers[j], weights)
	})

	var result []sim.PodID
	for _, pod := range pods {
		place := a.w.PlaceByPod(pod)
		if place == sim.InvalidPlace {
			result = append(result, pod)
			continue
		}
		if len(offers) == 0 {
			continue
		}
		if averagePlaceCost(costs, place, weights) > averagePlaceCost(costs, offers[0], weights) {
			result = append(result, pod)
			offers = offers[1:]
		}
	}
	return result
}

// placeCost prices one arrival: the exact from-station movement plus the
// expected later to-station movement under the station distribution.
func placeCost(costs sim.CostModel, from sim.StationID, place sim.PlaceID,
	weights map[sim.StationID]float64) float64 {
	result := costs.FromStation(from, place)
	for _, id := range costs.StationIDs() {
		result += costs.ToStation(place, id) * weights[id]
	}
	return result
}

// averagePlaceCost is the expected round-trip cost of a place under the
// station distribution.
func averagePlaceCost(costs sim.CostModel, place sim.PlaceID,
	weights map[sim.StationID]float64) float64 {
	var result float64
	for _, id := range costs.StationIDs() {
		result += weights[id] * (costs.FromStation(id, place) + costs.ToStation(place, id))
	}
	return result
}

// rankAvailablePlaces sorts this tick's available places by placeCost,
// cheapest first. Stable over ascending place ids.
func rankAvailablePlaces(w *sim.Warehouse, from sim.StationID,
	weights map[sim.StationID]float64) []sim.PlaceID {
	costs := w.CostModel()
	places := append([]sim.PlaceID(nil), w.AvailablePlaces()...)
	sort.SliceStable(places, func(i, j int) bool {
		return placeCost(costs, from, places[i], weights) < placeCost(costs, from, places[j], weights)
	})
	return places
}

// scalePosition maps the pod's rank among the movers onto the place ranking.
// When more pods compete than places are offered, the rank is linearly
// rescaled and truncated; otherwise the rank indexes the places directly.
func scalePosition(places []sim.PlaceID, pods []sim.PodID, pod sim.PodID) sim.PlaceID {
	i := -1
	for n, id := range pods {
		if id == pod {
			i = n
			break
		}
	}
	if i < 0 {
		// The arriving pod is away from storage and therefore always
		// competes; not finding it means the caller passed a foreign pod.
		return places[0]
	}
	if len(pods) > len(places) {
		i = int(float64(len(places)) / float64(len(pods)) * float64(i))
	}
	return places[i]
}
