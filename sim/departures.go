package sim

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// LenInfinite is the Len() result of an unbounded generator.
const LenInfinite = -1

// Departure is one (pod, station) request: move the pod from storage into
// the station's queue.
type Departure struct {
	Pod     PodID
	Station StationID
}

// DepartureGenerator produces the stream of departure requests that drives
// the warehouse. Current peeks without consuming; the warehouse calls Next
// once per tick. Exhaustion is communicated purely via Len() == 0, never as
// an error.
type DepartureGenerator interface {
	// Current returns the pending departure, or (InvalidPod,
	// InvalidStation) for a tick without one.
	Current() (PodID, StationID)
	// Next advances to the following departure.
	Next()
	// Len returns the number of remaining departures including the current
	// one, or LenInfinite for unbounded generators.
	Len() int
	// IsFinite reports whether the generator eventually exhausts.
	IsFinite() bool
}

// CloneableGenerator is implemented by generators that can be duplicated
// for speculative runs without sharing mutable state.
type CloneableGenerator interface {
	DepartureGenerator
	CloneGenerator() DepartureGenerator
}

// === DeterministicDepartures ===

// DeterministicDepartures replays a fixed list of departures.
type DeterministicDepartures struct {
	departures []Departure
	next       int
}

// NewDeterministicDepartures creates a replay generator over the given
// list. The slice is copied.
func NewDeterministicDepartures(departures []Departure) *DeterministicDepartures {
	return &DeterministicDepartures{
		departures: append([]Departure(nil), departures...),
	}
}

func (d *DeterministicDepartures) Current() (PodID, StationID) {
	if d.next >= len(d.departures) {
		return InvalidPod, InvalidStation
	}
	dep := d.departures[d.next]
	return dep.Pod, dep.Station
}

func (d *DeterministicDepartures) Next() {
	if d.next < len(d.departures) {
		d.next++
	}
}

func (d *DeterministicDepartures) Len() int {
	return len(d.departures) - d.next
}

func (d *DeterministicDepartures) IsFinite() bool { return true }

// Remaining returns the not-yet-consumed departures, current first. The
// forecast policies and the anticipating cheapest-place mode read this.
func (d *DeterministicDepartures) Remaining() []Departure {
	return d.departures[d.next:]
}

// CloneGenerator implements CloneableGenerator.
func (d *DeterministicDepartures) CloneGenerator() DepartureGenerator {
	cp := NewDeterministicDepartures(d.departures)
	cp.next = d.next
	return cp
}

// === MarkovianGenerator ===

// MarkovianGenerator draws each departure independently: the pod from the
// static pod weights renormalized over the pods currently in storage, the
// station from the static station weights. The candidate set is sorted
// ascending before every draw so a fixed seed yields the same sequence no
// matter which policy consumes it.
type MarkovianGenerator struct {
	w              *Warehouse
	podWeights     map[PodID]float64
	stationWeights map[StationID]float64
	remaining      int
	current        *Departure
	rng            *rand.Rand
}

// NewMarkovianGenerator creates a weighted stochastic generator producing n
// departures (LenInfinite for unbounded) from an explicitly owned rng.
func NewMarkovianGenerator(w *Warehouse, podWeights map[PodID]float64,
	stationWeights map[StationID]float64, n int, rng *rand.Rand) *MarkovianGenerator {
	return &MarkovianGenerator{
		w:              w,
		podWeights:     podWeights,
		stationWeights: stationWeights,
		remaining:      n,
		rng:            rng,
	}
}

func (m *MarkovianGenerator) Current() (PodID, StationID) {
	if m.current == nil {
		dep := m.generate()
		m.current = &dep
	}
	return m.current.Pod, m.current.Station
}

func (m *MarkovianGenerator) Next() {
	dep := m.generate()
	m.current = &dep
	if m.remaining != LenInfinite {
		m.remaining--
	}
}

func (m *MarkovianGenerator) Len() int { return m.remaining }
func (m *MarkovianGenerator) IsFinite() bool { return m.remaining != LenInfinite }

func (m *MarkovianGenerator) generate() Departure {
	pods := m.w.PodsInStorage()
	weights := make([]float64, len(pods))
	var total float64
	for i, pod := range pods {
		weights[i] = m.podWeights[pod]
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}
	pod := pods[sampleIndex(weights, m.rng)]
	station := drawStation(m.w.StationIDs(), m.stationWeights, m.rng)
	return Departure{Pod: pod, Station: station}
}

// === CyclicGenerator ===

// CyclicGenerator cycles through all pods so that no pod departs twice
// before every other pod had its turn. Pods that cannot depart (already
// away from storage) are parked on a deferred queue which is drained first
// on later draws. Stations are drawn independently by weight.
type CyclicGenerator struct {
	w              *Warehouse
	stationWeights map[StationID]float64
	remaining      int
	current        *Departure
	rng            *rand.Rand

	// Shuffle reshuffles the primary queue on every refill instead of
	// using ascending pod order.
	Shuffle bool

	basePods []PodID
	primary  []PodID
	deferred []PodID
}

// NewCyclicGenerator creates a fairness-oriented generator producing n
// departures (LenInfinite for unbounded).
func NewCyclicGenerator(w *Warehouse, stationWeights map[StationID]float64,
	n int, rng *rand.Rand) *CyclicGenerator {
	base := w.Pods()
	sort.Slice(base, func(i, j int) bool { return base[i] < base[j] })
	return &CyclicGenerator{
		w:              w,
		stationWeights: stationWeights,
		remaining:      n,
		rng:            rng,
		basePods:       base,
	}
}

func (c *CyclicGenerator) Current() (PodID, StationID) {
	if c.current == nil {
		dep := c.generate()
		c.current = &dep
	}
	return c.current.Pod, c.current.Station
}

func (c *CyclicGenerator) Next() {
	dep := c.generate()
	c.current = &dep
	if c.remaining != LenInfinite {
		c.remaining--
	}
}

func (c *CyclicGenerator) Len() int { return c.remaining }
func (c *CyclicGenerator) IsFinite() bool { return c.remaining != LenInfinite }

func (c *CyclicGenerator) generate() Departure {
	pod := InvalidPod

	// Deferred pods get their missed turn as soon as they are back in
	// storage.
	for i, candidate := range c.deferred {
		if c.w.PlaceByPod(candidate) != InvalidPlace {
			pod = candidate
			c.deferred = append(c.deferred[:i], c.deferred[i+1:]...)
			break
		}
	}

	for pod == InvalidPod {
		if len(c.primary) == 0 {
			c.primary = c.refill()
		}
		candidate := c.primary[0]
		c.primary = c.primary[1:]
		if c.w.PlaceByPod(candidate) != InvalidPlace {
			pod = candidate
		} else {
			c.deferred = append(c.deferred, candidate)
		}
	}

	station := drawStation(c.w.StationIDs(), c.stationWeights, c.rng)
	return Departure{Pod: pod, Station: station}
}

func (c *CyclicGenerator) refill() []PodID {
	out := append([]PodID(nil), c.basePods...)
	if c.Shuffle {
		c.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// === DepartureRecorder ===

// DepartureRecorder is a proxy that records the departures another
// generator produces, so a stochastic run can later be replayed
// deterministically (or fed to forecast-aware policies).
type DepartureRecorder struct {
	inner    DepartureGenerator
	recorded []Departure

	// currentRecorded marks the inner generator's pending departure as
	// already appended, so interleaved Current/Next calls in any order
	// record each position exactly once.
	currentRecorded bool
}

// NewDepartureRecorder wraps a generator.
func NewDepartureRecorder(inner DepartureGenerator) *DepartureRecorder {
	return &DepartureRecorder{inner: inner}
}

func (r *DepartureRecorder) recordCurrent() {
	if r.currentRecorded || r.inner.Len() == 0 {
		return
	}
	pod, station := r.inner.Current()
	r.recorded = append(r.recorded, Departure{Pod: pod, Station: station})
	r.currentRecorded = true
}

func (r *DepartureRecorder) Current() (PodID, StationID) {
	r.recordCurrent()
	return r.inner.Current()
}

func (r *DepartureRecorder) Next() {
	r.recordCurrent()
	r.inner.Next()
	r.currentRecorded = false
}

func (r *DepartureRecorder) Len() int { return r.inner.Len() }
func (r *DepartureRecorder) IsFinite() bool { return r.inner.IsFinite() }

// Recorded returns all departures observed so far, in order.
func (r *DepartureRecorder) Recorded() []Departure {
	return r.recorded
}

// ToDeterministic converts the recording into a replayable generator.
func (r *DepartureRecorder) ToDeterministic() *DeterministicDepartures {
	return NewDeterministicDepartures(r.recorded)
}

// === Weights ===

// GeometricWeights returns per-pod departure weights following a truncated
// geometric distribution where the most frequent pod departs ratio times as
// often as the least frequent one. ratio == 1 is the uniform special case.
//
//	q = ratio^(-1/(n-1)),  weight(i) = q^(i-1) · (1-q)/(1-q^n)
func GeometricWeights(npods int, ratio float64) map[PodID]float64 {
	w := make(map[PodID]float64, npods)
	if ratio == 1 {
		for pod := PodID(1); pod <= PodID(npods); pod++ {
			w[pod] = 1 / float64(npods)
		}
		return w
	}

	q := math.Pow(ratio, -1/float64(npods-1))
	w1 := (1 - q) / (1 - math.Pow(q, float64(npods)))
	for pod := PodID(1); pod <= PodID(npods); pod++ {
		w[pod] = w1 * math.Pow(q, float64(pod-1))
	}
	return w
}

// UniformStationWeights assigns every station the same weight.
func UniformStationWeights(stations []StationID) map[StationID]float64 {
	w := make(map[StationID]float64, len(stations))
	for _, s := range stations {
		w[s] = 1 / float64(len(stations))
	}
	return w
}

// drawStation samples a station id by weight. Stations are iterated in
// ascending id order so the draw depends only on the rng state.
func drawStation(stations []StationID, weights map[StationID]float64, rng *rand.Rand) StationID {
	w := make([]float64, len(stations))
	for i, s := range stations {
		w[i] = weights[s]
	}
	return stations[sampleIndex(w, rng)]
}

// sampleIndex draws an index from a categorical distribution.
func sampleIndex(weights []float64, rng *rand.Rand) int {
	idx, ok := sampleuv.NewWeighted(weights, rng).Take()
	if !ok {
		panic("sampleIndex: all weights zero")
	}
	return idx
}
