package sim

import (
	"fmt"
	"sort"
)

// RunStats aggregates statistics about one simulation run for final
// reporting.
type RunStats struct {
	Ticks          int64
	TotalCosts     float64
	Repositionings int
	// Departures counts how often each station was the target of a
	// departure request.
	Departures map[StationID]int
}

// NewRunStats creates an empty stats collector.
func NewRunStats() *RunStats {
	return &RunStats{Departures: make(map[StationID]int)}
}

// Print displays the aggregated run statistics.
func (s *RunStats) Print() {
	fmt.Println("=== Simulation Statistics ===")
	fmt.Printf("Ticks            : %d\n", s.Ticks)
	fmt.Printf("Total costs      : %.2f\n", s.TotalCosts)
	fmt.Printf("Repositionings   : %d\n", s.Repositionings)

	stations := make([]StationID, 0, len(s.Departures))
	for id := range s.Departures {
		stations = append(stations, id)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i] < stations[j] })
	for _, id := range stations {
		fmt.Printf("Station %d        : %d departures\n", id, s.Departures[id])
	}
}
