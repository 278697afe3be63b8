package sim

import "github.com/sirupsen/logrus"

// Run drives the warehouse to exhaustion: every tick the policy decides a
// place, then the warehouse applies the transition. Returns the collected
// run statistics; a validation error from the transition stops the run.
func Run(w *Warehouse, policy PlacementPolicy) (*RunStats, error) {
	stats := NewRunStats()

	for !w.Finished() {
		pod, station := w.Generator().Current()
		target := policy.DecideNewPlace()
		if target != InvalidPlace {
			stats.Repositionings++
		}
		if pod != InvalidPod {
			stats.Departures[station]++
		}

		more, err := w.Next(target)
		stats.Ticks++
		if err != nil {
			return stats, err
		}
		if !more {
			break
		}
	}

	stats.TotalCosts = w.TotalCosts()
	logrus.Debugf("run finished after %d ticks, total costs %.2f", stats.Ticks, stats.TotalCosts)
	return stats, nil
}
