package sim

import (
	"math"
	"sort"
)

// Time sentinels for open-ended occupation intervals. TimeInf compares
// greater than any finite tick, TimeNegInf smaller.
const (
	TimeInf    = int64(math.MaxInt64)
	TimeNegInf = int64(math.MinInt64)
)

// Occupation is one continuous span of simulated time during which a pod
// occupies a place. The interval is half-open [Begin, End); End == TimeInf
// while the stay is ongoing, Begin == TimeNegInf for pods placed before the
// simulation started. FromStation is the station the pod arrived from
// (InvalidStation for initial placements), ToStation the station it left to
// (InvalidStation while ongoing).
type Occupation struct {
	Place       PlaceID
	Pod         PodID
	Begin       int64
	End         int64
	FromStation StationID
	ToStation   StationID
}

// Span returns the interval length, saturating at TimeInf for open ends.
func (o Occupation) Span() int64 {
	if o.Begin == TimeNegInf || o.End == TimeInf {
		return TimeInf
	}
	return o.End - o.Begin
}

// Intersects reports whether the half-open intervals [a1, b1) and [a2, b2)
// overlap. Infinite sentinel ends compare like ordinary values.
func Intersects(a1, b1, a2, b2 int64) bool {
	if a1 <= a2 && a2 < b1 {
		return true
	}
	if a1 < b2 && b2 <= b1 {
		return true
	}
	if a2 < a1 && b2 > b1 {
		return true
	}
	return false
}

// IntervalSet stores the occupation intervals of one place, sorted by
// begin. Intervals on one place never overlap.
type IntervalSet struct {
	intervals []Occupation
}

// IsFree reports whether [begin, end) overlaps none of the stored
// intervals.
func (s *IntervalSet) IsFree(begin, end int64) bool {
	for _, iv := range s.intervals {
		if Intersects(iv.Begin, iv.End, begin, end) {
			return false
		}
	}
	return true
}

// Occupy inserts an interval, keeping the set sorted by begin.
func (s *IntervalSet) Occupy(occ Occupation) {
	i := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].Begin >= occ.Begin
	})
	s.intervals = append(s.intervals, Occupation{})
	copy(s.intervals[i+1:], s.intervals[i:])
	s.intervals[i] = occ
}

// Remove deletes and returns the interval that begins at begin.
func (s *IntervalSet) Remove(begin int64) (Occupation, bool) {
	i := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].Begin >= begin
	})
	if i == len(s.intervals) || s.intervals[i].Begin != begin {
		return Occupation{}, false
	}
	occ := s.intervals[i]
	s.intervals = append(s.intervals[:i], s.intervals[i+1:]...)
	return occ, true
}

// Intervals returns the stored intervals sorted by begin. Callers must not
// modify the returned slice.
func (s *IntervalSet) Intervals() []Occupation {
	return s.intervals
}

// Len returns the number of stored intervals.
func (s *IntervalSet) Len() int {
	return len(s.intervals)
}

// OccupationTable maps every place to its interval set.
type OccupationTable map[PlaceID]*IntervalSet

// NewOccupationTable creates an empty table covering all given places.
func NewOccupationTable(places []PlaceID) OccupationTable {
	t := make(OccupationTable, len(places))
	for _, p := range places {
		t[p] = &IntervalSet{}
	}
	return t
}

// BuildOccupationTable indexes a list of occupations by place. Places
// absent from the list still get an (empty) entry, which is why the full
// place domain is passed separately.
func BuildOccupationTable(occupations []Occupation, places []PlaceID) OccupationTable {
	t := NewOccupationTable(places)
	for _, occ := range occupations {
		t[occ.Place].Occupy(occ)
	}
	return t
}

// Occupations flattens the table back into a list, places ascending,
// intervals by begin.
func (t OccupationTable) Occupations() []Occupation {
	places := make([]PlaceID, 0, len(t))
	for p := range t {
		places = append(places, p)
	}
	sort.Slice(places, func(i, j int) bool { return places[i] < places[j] })

	var out []Occupation
	for _, p := range places {
		out = append(out, t[p].intervals...)
	}
	return out
}

// pendingInterval tracks a stay that has not ended yet during extraction.
type pendingInterval struct {
	begin       int64
	fromStation StationID
}

// ExtractOccupations drives the warehouse to exhaustion with the given
// policy and returns every place-occupation interval of the run, including
// the TimeNegInf intervals of the initial placement and the TimeInf
// intervals of pods that never departed again.
//
// The warehouse is consumed. Callers who need to keep the original state
// pass a Clone — typically with a ZeroCosts model when only the dynamics
// matter.
func ExtractOccupations(w *Warehouse, policy PlacementPolicy) ([]Occupation, error) {
	var occupations []Occupation

	pending := make(map[PlaceID]pendingInterval, w.NumPlaces())
	for _, place := range w.Places() {
		pending[place] = pendingInterval{begin: TimeNegInf, fromStation: InvalidStation}
	}

	for !w.Finished() {
		departingPod, toStation := w.Generator().Current()
		fromPlace := w.PlaceByPod(departingPod)
		target := policy.DecideNewPlace()
		_, fromStation := w.NextArrivalToStorage()

		if fromPlace != InvalidPlace {
			// The departing pod leaves its place at t+1.
			p := pending[fromPlace]
			occupations = append(occupations, Occupation{
				Place:       fromPlace,
				Pod:         departingPod,
				Begin:       p.begin,
				End:         w.T() + 1,
				FromStation: p.fromStation,
				ToStation:   toStation,
			})
			delete(pending, fromPlace)
		}
		if target != InvalidPlace {
			pending[target] = pendingInterval{begin: w.T() + 1, fromStation: fromStation}
		}

		if _, err := w.Next(target); err != nil {
			return nil, err
		}
	}

	// Stays that outlive the departure stream remain open-ended.
	places := make([]PlaceID, 0, len(pending))
	for place := range pending {
		places = append(places, place)
	}
	sort.Slice(places, func(i, j int) bool { return places[i] < places[j] })
	for _, place := range places {
		pod := w.PodByPlace(place)
		if pod == InvalidPod {
			continue
		}
		p := pending[place]
		occupations = append(occupations, Occupation{
			Place:       place,
			Pod:         pod,
			Begin:       p.begin,
			End:         TimeInf,
			FromStation: p.fromStation,
			ToStation:   InvalidStation,
		})
	}

	return occupations, nil
}

// StationFrequencies counts how often each destination station occurs in
// occupation data; normalized to a probability distribution unless absolute
// is requested.
func StationFrequencies(occupations []Occupation, absolute bool) map[StationID]float64 {
	freq := make(map[StationID]float64)
	var n float64
	for _, occ := range occupations {
		if occ.ToStation != InvalidStation {
			freq[occ.ToStation]++
			n++
		}
	}
	if !absolute && n > 0 {
		for id := range freq {
			freq[id] /= n
		}
	}
	return freq
}

// DepartureStats holds how often each pod and station occur in a departure
// stream.
type DepartureStats struct {
	PodUsage     map[PodID]int
	StationUsage map[StationID]int
}

// MarginalFrequencies consumes a finite generator and tallies pod and
// station occurrences.
func MarginalFrequencies(gen DepartureGenerator) DepartureStats {
	stats := DepartureStats{
		PodUsage:     make(map[PodID]int),
		StationUsage: make(map[StationID]int),
	}
	for gen.Len() > 0 {
		pod, station := gen.Current()
		gen.Next()
		stats.PodUsage[pod]++
		stats.StationUsage[station]++
	}
	return stats
}
