package solver

import (
	"math"
	"sort"

	"github.com/prp-sim/prp-sim/sim"
)

// KnownWindow simulates partial knowledge about upcoming departures: at any
// time the policy sees at most n future departures, grouped by destination
// station. Pods already queued at stations are certain knowledge and fill
// the window first; the remainder comes from the departure list.
type KnownWindow struct {
	all       []sim.Departure
	beginT    int64
	byStation map[sim.StationID][]sim.PodID
}

// NewKnownWindow creates a window over the full departure list. beginT is
// the warehouse time the list starts at, so that later updates can index the
// list by warehouse time.
func NewKnownWindow(departures []sim.Departure, beginT int64) *KnownWindow {
	w := &KnownWindow{
		all:       append([]sim.Departure(nil), departures...),
		beginT:    beginT,
		byStation: make(map[sim.StationID][]sim.PodID),
	}
	for _, dep := range w.all {
		if _, ok := w.byStation[dep.Station]; !ok {
			w.byStation[dep.Station] = nil
		}
	}
	return w
}

// Update rebuilds the per-station lists: station queues first (whole queues,
// the budget is checked between stations), then up to n minus the queued
// pods from the future list starting at the warehouse's current time.
func (k *KnownWindow) Update(w *sim.Warehouse, n int) {
	for id := range k.byStation {
		k.byStation[id] = nil
	}

	added := 0
	for _, id := range w.StationIDs() {
		if added >= n {
			break
		}
		for _, pod := range w.Station(id).Pods() {
			k.byStation[id] = append(k.byStation[id], pod)
			added++
		}
	}

	begin := int(w.T() - k.beginT)
	end := begin + n - added
	if end > len(k.all) {
		end = len(k.all)
	}
	for i := begin; i < end; i++ {
		dep := k.all[i]
		k.byStation[dep.Station] = append(k.byStation[dep.Station], dep.Pod)
	}
}

// Stations returns the window's station ids in ascending order.
func (k *KnownWindow) Stations() []sim.StationID {
	out := make([]sim.StationID, 0, len(k.byStation))
	for id := range k.byStation {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Pods returns the known upcoming departures for one station, in order.
func (k *KnownWindow) Pods(station sim.StationID) []sim.PodID {
	return k.byStation[station]
}

// timedDeparture is a window entry spread out on the estimated service-time
// axis of its station.
type timedDeparture struct {
	t   float64
	pod sim.PodID
}

// PriorityB extends the frequency ranking of PriorityA with a rolling window
// of known future departures. It estimates a horizon T up to the arriving
// pod's next storage departure, ranks only pods expected to depart before T
// (plus an estimated unknown mass), and matches pods to places by direct
// best-improvement search instead of rank rescaling alone.
type PriorityB struct {
	w      *sim.Warehouse
	window *KnownWindow

	// NDepartures bounds how many future departures the window reveals.
	NDepartures int
	// UseUnknownFrequencies adds the estimated departure mass beyond the
	// window to the ranking.
	UseUnknownFrequencies bool
	// PriorityFactor weights the arriving pod's frequency in the ranking.
	PriorityFactor float64

	podHistory     *FrequencyCounter[sim.PodID]
	podFuture      *FrequencyCounter[sim.PodID]
	stationHistory *FrequencyCounter[sim.StationID]
	stationFuture  *FrequencyCounter[sim.StationID]

	// stationDep spreads the window entries of each station on an estimated
	// service-time axis, rebuilt every decision.
	stationDep map[sim.StationID][]timedDeparture
}

// NewPriorityB creates the forecast-aware priority policy. departures is the
// full remaining departure list starting at the warehouse's current time;
// nDepartures bounds the visible window.
func NewPriorityB(w *sim.Warehouse, departures []sim.Departure, nDepartures int) *PriorityB {
	return &PriorityB{
		w:                     w,
		window:                NewKnownWindow(departures, w.T()),
		NDepartures:           nDepartures,
		UseUnknownFrequencies: true,
		PriorityFactor:        DefaultPriorityFactor,
		podHistory:            NewFrequencyCounter(w.Pods()),
		podFuture:             NewFrequencyCounter(w.Pods()),
		stationHistory:        NewFrequencyCounter(w.StationIDs()),
		stationFuture:         NewFrequencyCounter(w.StationIDs()),
		stationDep:            make(map[sim.StationID][]timedDeparture),
	}
}

func (b *PriorityB) DecideNewPlace() sim.PlaceID {
	pod, station := b.w.NextArrivalToStorage()
	if pod == sim.InvalidPod {
		return sim.InvalidPlace
	}

	b.window.Update(b.w, b.NDepartures)
	pods := b.concurrentPods(pod, station)
	weights := b.estimateStationWeights()
	places := rankAvailablePlaces(b.w, station, weights)
	pods = b.betterWantToChange(pods, places, weights)

	// History counts the current departure only after the ranking used it as
	// future knowledge.
	b.podHistory.Increment(pod)
	b.stationHistory.Increment(station)

	return scalePosition(places, pods, pod)
}

// updateStatistics rebuilds the future counters and the per-station timed
// departure lists from the current window.
func (b *PriorityB) updateStatistics(currentStation sim.StationID) {
	b.podFuture = NewFrequencyCounter(b.w.Pods())
	b.stationFuture = NewFrequencyCounter(b.w.StationIDs())
	for _, station := range b.window.Stations() {
		for _, pod := range b.window.Pods(station) {
			b.podFuture.Increment(pod)
			b.stationFuture.Increment(station)
		}
	}

	interDeps := b.serviceTimes(currentStation)
	b.stationDep = make(map[sim.StationID][]timedDeparture, len(b.window.byStation))
	for _, station := range b.window.Stations() {
		var t float64
		var list []timedDeparture
		for _, pod := range b.window.Pods(station) {
			list = append(list, timedDeparture{t: t, pod: pod})
			t += interDeps[station]
		}
		b.stationDep[station] = list
	}
}

// serviceTimes estimates per-station inter-departure spacing on the time
// axis of the current station: stations seen as often as the current one get
// spacing 1, rarer stations proportionally more. Stations without any count
// get infinite spacing.
func (b *PriorityB) serviceTimes(currentStation sim.StationID) map[sim.StationID]float64 {
	out := make(map[sim.StationID]float64, len(b.w.StationIDs()))
	fCurrent := b.stationHistory.Count(currentStation) + b.stationFuture.Count(currentStation)
	for _, id := range b.w.StationIDs() {
		fStation := b.stationHistory.Count(id) + b.stationFuture.Count(id)
		if fStation == 0 {
			out[id] = math.Inf(1)
			continue
		}
		out[id] = fCurrent / fStation
	}
	return out
}

// estimateT estimates when the arriving pod departs from storage again: its
// earliest known future departure on the service-time axis, or an
// extrapolation from its average recurrence when the window does not contain
// it. The queue ahead of that departure is subtracted since the pod leaves
// storage one queue length earlier.
func (b *PriorityB) estimateT(currentPod sim.PodID, currentStation sim.StationID) float64 {
	earliest := math.Inf(1)
	nextStation := sim.InvalidStation
	for _, station := range b.window.Stations() {
		for _, dep := range b.stationDep[station] {
			// The first entry (t == 0) is the current departure itself.
			if dep.pod == currentPod && 0 < dep.t && dep.t < earliest {
				earliest = dep.t
				nextStation = station
			}
		}
	}

	interDeps := b.serviceTimes(currentStation)
	if nextStation == sim.InvalidStation {
		podMass := b.podHistory.Count(currentPod) + b.podFuture.Count(currentPod)
		if podMass > 0 {
			nAvgOthers := (b.podHistory.Total() + b.podFuture.Total()) / podMass
			earliest = math.Max(float64(len(b.stationDep[currentStation])), nAvgOthers+1) *
				interDeps[currentStation]
		}
		nextStation = currentStation
	}

	depT := earliest
	if st := b.w.Station(nextStation); st != nil {
		depT -= float64(st.MaxN) * interDeps[nextStation]
	}
	if math.IsNaN(depT) || depT < 1e-5 {
		// Early ticks can produce inconsistent estimates.
		depT = 1e-5
	}
	return depT
}

// estimateUnknownFrequencies distributes the departures expected before T
// but beyond the window proportionally to each pod's combined frequency.
func (b *PriorityB) estimateUnknownFrequencies(currentStation sim.StationID, T float64) map[sim.PodID]float64 {
	freq := make(map[sim.PodID]float64, b.w.NumPods())
	total := b.podHistory.Total() + b.podFuture.Total()
	if total == 0 {
		return freq
	}

	serviceTimes := b.serviceTimes(currentStation)
	var numServices float64
	for _, station := range b.w.StationIDs() {
		known := float64(len(b.window.Pods(station)) - 1)
		if expected := T/serviceTimes[station] - known; expected > 0 {
			numServices += expected
		}
	}
	for _, pod := range b.w.Pods() {
		freq[pod] = numServices * (b.podHistory.Count(pod) + b.podFuture.Count(pod)) / total
	}
	return freq
}

// estimateStationWeights is like PriorityA's, but mixes historical and
// window counts.
func (b *PriorityB) estimateStationWeights() map[sim.StationID]float64 {
	stations := b.w.StationIDs()
	w := make(map[sim.StationID]float64, len(stations))
	total := b.stationHistory.Total() + b.stationFuture.Total()
	if total == 0 {
		for _, id := range stations {
			w[id] = 1 / float64(len(stations))
		}
		return w
	}
	for _, id := range stations {
		w[id] = (b.stationHistory.Count(id) + b.stationFuture.Count(id)) / total
	}
	return w
}

// concurrentPods ranks the pods expected to depart before the horizon T,
// highest combined mass first. Pods with zero mass do not compete.
func (b *PriorityB) concurrentPods(currentPod sim.PodID, currentStation sim.StationID) []sim.PodID {
	b.updateStatistics(currentStation)
	depT := b.estimateT(currentPod, currentStation)

	mass := NewFrequencyCounter(b.w.Pods())
	for _, station := range b.window.Stations() {
		for _, dep := range b.stationDep[station] {
			if dep.t < depT {
				mass.Increment(dep.pod)
			}
		}
	}
	if b.UseUnknownFrequencies {
		for pod, f := range b.estimateUnknownFrequencies(currentStation, depT) {
			mass.Add(pod, f)
		}
	}

	var pods []sim.PodID
	priority := make(map[sim.PodID]float64)
	for _, pod := range b.w.Pods() {
		f := mass.Count(pod)
		if f == 0 {
			continue
		}
		if pod == currentPod {
			f *= b.PriorityFactor
		}
		pods = append(pods, pod)
		priority[pod] = f
	}
	sort.SliceStable(pods, func(i, j int) bool { return priority[pods[i]] > priority[pods[j]] })
	return pods
}

// estimatedCost prices a storage visit with the known stations priced
// exactly and unknown sides replaced by the weighted expectation.
func (b *PriorityB) estimatedCost(from sim.StationID, place sim.PlaceID, to sim.StationID,
	weights map[sim.StationID]float64) float64 {
	costs := b.w.CostModel()
	var result float64
	if from != sim.InvalidStation {
		result = costs.FromStation(from, place)
	} else {
		for _, id := range costs.StationIDs() {
			result += weights[id] * costs.FromStation(id, place)
		}
	}
	if to != sim.InvalidStation {
		result += costs.ToStation(place, to)
	} else {
		for _, id := range costs.StationIDs() {
			result += weights[id] * costs.ToStation(place, id)
		}
	}
	return result
}

// estimateFromStation guesses which station the pod will arrive to storage
// from: its current queue if it is away from storage, otherwise its next
// departure in the deterministic future.
func (b *PriorityB) estimateFromStation(pod sim.PodID) sim.StationID {
	if st := b.w.StationOfPod(pod); st != sim.InvalidStation {
		return st
	}
	if fl, ok := b.w.Generator().(futureLister); ok {
		for _, dep := range fl.Remaining() {
			if dep.Pod == pod {
				return dep.Station
			}
		}
	}
	return sim.InvalidStation
}

// estimateToStation would guess the pod's next destination after the
// arrival; no estimator is wired yet, so the expected mix is used.
func (b *PriorityB) estimateToStation(sim.PodID) sim.StationID {
	return sim.InvalidStation
}

// podWantsToChange returns the offered place with the lowest estimated cost
// that strictly beats the pod's current place, or InvalidPlace.
func (b *PriorityB) podWantsToChange(pod sim.PodID, offers []sim.PlaceID,
	weights map[sim.StationID]float64) sim.PlaceID {
	place := b.w.PlaceByPod(pod)
	from := b.estimateFromStation(pod)
	to := b.estimateToStation(pod)

	bestCosts := math.Inf(1)
	if place != sim.InvalidPlace {
		bestCosts = b.estimatedCost(from, place, to, weights)
	}

	best := sim.InvalidPlace
	for _, offer := range offers {
		if c := b.estimatedCost(from, offer, to, weights); c < bestCosts {
			best = offer
			bestCosts = c
		}
	}
	return best
}

// betterWantToChange matches pods to places by best improvement: each pod in
// priority order claims the offered place minimizing its own estimated cost;
// claimed places leave the pool. Pods away from storage compete even without
// an improving offer.
func (b *PriorityB) betterWantToChange(pods []sim.PodID, places []sim.PlaceID,
	weights map[sim.StationID]float64) []sim.PodID {
	costs := b.w.CostModel()
	offers := append([]sim.PlaceID(nil), places...)
	sort.SliceStable(offers, func(i, j int) bool {
		return averagePlaceCost(costs, offers[i], weights) < averagePlaceCost(costs, offers[j], weights)
	})

	var result []sim.PodID
	for _, pod := range pods {
		better := b.podWantsToChange(pod, offers, weights)
		if better != sim.InvalidPlace {
			result = append(result, pod)
			for i, offer := range offers {
				if offer == better {
					offers = append(offers[:i], offers[i+1:]...)
					break
				}
			}
			continue
		}
		if b.w.PlaceByPod(pod) == sim.InvalidPlace {
			result = append(result, pod)
		}
	}
	return result
}
