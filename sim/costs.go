package sim

import "sort"

// CostModel prices single pod movements between stations and storage
// places. Implementations must be immutable during a run; the warehouse and
// all policies share one instance by reference.
type CostModel interface {
	// FromStation is the cost of moving a pod from a station back to a
	// storage place.
	FromStation(station StationID, place PlaceID) float64
	// ToStation is the cost of moving a pod from a storage place to a
	// station.
	ToStation(place PlaceID, station StationID) float64
	// StationIDs returns the station domain in ascending order.
	StationIDs() []StationID
	// PlaceIDs returns the place domain in ascending order.
	PlaceIDs() []PlaceID
}

// ZeroCosts prices every movement at zero. Used for test purposes and for
// speculative replays where only the dynamics matter.
type ZeroCosts struct {
	Stations []StationID
	Places   []PlaceID
}

func (z *ZeroCosts) FromStation(StationID, PlaceID) float64 { return 0 }
func (z *ZeroCosts) ToStation(PlaceID, StationID) float64   { return 0 }
func (z *ZeroCosts) StationIDs() []StationID                { return z.Stations }
func (z *ZeroCosts) PlaceIDs() []PlaceID                    { return z.Places }

// ConstantCosts prices every from-station movement at one constant and every
// to-station movement at another. Used for test purposes.
type ConstantCosts struct {
	Stations []StationID
	Places   []PlaceID
	FromCost float64
	ToCost   float64
}

func (c *ConstantCosts) FromStation(StationID, PlaceID) float64 { return c.FromCost }
func (c *ConstantCosts) ToStation(PlaceID, StationID) float64   { return c.ToCost }
func (c *ConstantCosts) StationIDs() []StationID                { return c.Stations }
func (c *ConstantCosts) PlaceIDs() []PlaceID                    { return c.Places }

// TableCosts stores both cost directions in lookup tables: O(S·P) to build,
// O(1) per lookup afterwards.
type TableCosts struct {
	fromStation map[StationID]map[PlaceID]float64
	toStation   map[PlaceID]map[StationID]float64
	stations    []StationID
	places      []PlaceID
}

// NewTableCosts creates an empty table for the given domains.
func NewTableCosts(stations []StationID, places []PlaceID) *TableCosts {
	t := &TableCosts{
		fromStation: make(map[StationID]map[PlaceID]float64, len(stations)),
		toStation:   make(map[PlaceID]map[StationID]float64, len(places)),
		stations:    sortedStations(stations),
		places:      sortedPlaces(places),
	}
	for _, s := range t.stations {
		t.fromStation[s] = make(map[PlaceID]float64, len(places))
	}
	for _, p := range t.places {
		t.toStation[p] = make(map[StationID]float64, len(stations))
	}
	return t
}

// PrecomputeCosts materializes any cost model into a TableCosts.
func PrecomputeCosts(other CostModel) *TableCosts {
	t := NewTableCosts(other.StationIDs(), other.PlaceIDs())
	for _, s := range t.stations {
		for _, p := range t.places {
			t.fromStation[s][p] = other.FromStation(s, p)
			t.toStation[p][s] = other.ToStation(p, s)
		}
	}
	return t
}

// SetFromStation sets the cost of moving from a station to a place.
func (t *TableCosts) SetFromStation(station StationID, place PlaceID, cost float64) {
	t.fromStation[station][place] = cost
}

// SetToStation sets the cost of moving from a place to a station.
func (t *TableCosts) SetToStation(place PlaceID, station StationID, cost float64) {
	t.toStation[place][station] = cost
}

func (t *TableCosts) FromStation(station StationID, place PlaceID) float64 {
	return t.fromStation[station][place]
}

func (t *TableCosts) ToStation(place PlaceID, station StationID) float64 {
	return t.toStation[place][station]
}

func (t *TableCosts) StationIDs() []StationID { return t.stations }
func (t *TableCosts) PlaceIDs() []PlaceID     { return t.places }

// NegatedCosts inverts another model so that the cheapest place becomes the
// most expensive one. The Tetris seed phase runs a greedy solver against
// this view to push frequent pods into deliberately bad slots first.
type NegatedCosts struct {
	Base CostModel
}

func (n *NegatedCosts) FromStation(station StationID, place PlaceID) float64 {
	return -n.Base.FromStation(station, place)
}

func (n *NegatedCosts) ToStation(place PlaceID, station StationID) float64 {
	return -n.Base.ToStation(place, station)
}

func (n *NegatedCosts) StationIDs() []StationID { return n.Base.StationIDs() }
func (n *NegatedCosts) PlaceIDs() []PlaceID     { return n.Base.PlaceIDs() }

// AverageCosts augments a base model with expectations under a station-visit
// probability distribution. Every heuristic that needs an expected round
// trip looks it up here instead of recomputing the sum per call.
type AverageCosts struct {
	*TableCosts
	weights map[StationID]float64

	// average[p] = Σ_s w(s)·(from(s,p) + to(p,s))
	average map[PlaceID]float64
	// estimated[s][p] = from(s,p) + Σ_s' w(s')·to(p,s')
	estimated map[StationID]map[PlaceID]float64
	// expectedTo[p] = Σ_s w(s)·to(p,s), expectedFrom[p] = Σ_s w(s)·from(s,p)
	expectedTo   map[PlaceID]float64
	expectedFrom map[PlaceID]float64
}

// NewAverageCosts precomputes expected costs per place from a base model and
// station weights. Weights should sum to 1; they are used as given.
func NewAverageCosts(base CostModel, weights map[StationID]float64) *AverageCosts {
	a := &AverageCosts{
		TableCosts:   PrecomputeCosts(base),
		weights:      weights,
		average:      make(map[PlaceID]float64),
		estimated:    make(map[StationID]map[PlaceID]float64),
		expectedTo:   make(map[PlaceID]float64),
		expectedFrom: make(map[PlaceID]float64),
	}
	for _, p := range a.places {
		var avg, to, from float64
		// Ascending station order keeps the float summation reproducible.
		for _, s := range a.stations {
			w := weights[s]
			avg += w * (a.fromStation[s][p] + a.toStation[p][s])
			to += w * a.toStation[p][s]
			from += w * a.fromStation[s][p]
		}
		a.average[p] = avg
		a.expectedTo[p] = to
		a.expectedFrom[p] = from
	}
	for _, s := range a.stations {
		a.estimated[s] = make(map[PlaceID]float64, len(a.places))
		for _, p := range a.places {
			a.estimated[s][p] = a.fromStation[s][p] + a.expectedTo[p]
		}
	}
	return a
}

// Average returns the expected round-trip cost of a place under the station
// distribution.
func (a *AverageCosts) Average(place PlaceID) float64 {
	return a.average[place]
}

// Estimated returns the exact from-station cost plus the expected to-station
// cost of a place.
func (a *AverageCosts) Estimated(from StationID, place PlaceID) float64 {
	return a.estimated[from][place]
}

// Decision prices a full storage visit. Known side stations are priced
// exactly; an InvalidStation side falls back to the weighted expectation.
func (a *AverageCosts) Decision(from StationID, place PlaceID, to StationID) float64 {
	var c float64
	if from != InvalidStation {
		c = a.fromStation[from][place]
	} else {
		c = a.expectedFrom[place]
	}
	if to != InvalidStation {
		c += a.toStation[place][to]
	} else {
		c += a.expectedTo[place]
	}
	return c
}

func sortedStations(ids []StationID) []StationID {
	out := append([]StationID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedPlaces(ids []PlaceID) []PlaceID {
	out := append([]PlaceID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
