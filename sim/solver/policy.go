package solver

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/prp-sim/prp-sim/sim"
)

// Policy names accepted by NewPolicy.
const (
	PolicyRandom           = "random"
	PolicyFixed            = "fixed"
	PolicySomePlace        = "someplace"
	PolicyCheapest         = "cheapest"
	PolicyCheapestDecision = "cheapest-decision"
	PolicyPriorityA        = "priority-a"
	PolicyPriorityB        = "priority-b"
	PolicyTetris           = "tetris"
)

// PolicyNames lists the policies NewPolicy accepts, in help-text order.
func PolicyNames() []string {
	return []string{
		PolicyRandom, PolicyFixed, PolicySomePlace,
		PolicyCheapest, PolicyCheapestDecision,
		PolicyPriorityA, PolicyPriorityB, PolicyTetris,
	}
}

// NewPolicy creates a placement policy by name. The warehouse must be fully
// configured. rng seeds the stochastic policies; windowSize bounds the
// forecast window of priority-b. priority-b and tetris need a generator that
// reveals its future (deterministic or recorded). Panics on an unknown name
// or an unusable generator, mirroring the hard-fail contract of the scenario
// loader.
func NewPolicy(name string, w *sim.Warehouse, rng *rand.Rand, windowSize int) sim.PlacementPolicy {
	switch name {
	case PolicyRandom:
		return NewRandom(w, rng)
	case PolicyFixed:
		return NewFixed(w)
	case PolicySomePlace:
		return NewSomePlace(w)
	case PolicyCheapest:
		return NewCheapestPlace(w, FromStationOnly)
	case PolicyCheapestDecision:
		return NewCheapestPlace(w, DecisionCosts)
	case PolicyPriorityA:
		return NewPriorityA(w)
	case PolicyPriorityB:
		return NewPriorityB(w, mustFuture(w), windowSize)
	case PolicyTetris:
		solution, err := SolveTetris(w, DecisionCosts, PodFrequencyPriority)
		if err != nil {
			panic(fmt.Sprintf("tetris solve failed: %v", err))
		}
		return NewPlayback(solution)
	default:
		panic(fmt.Sprintf("unknown policy %q (supported: %v)", name, PolicyNames()))
	}
}

func mustFuture(w *sim.Warehouse) []sim.Departure {
	fl, ok := w.Generator().(futureLister)
	if !ok {
		panic(fmt.Sprintf("policy needs a deterministic departure list, generator is %T", w.Generator()))
	}
	return fl.Remaining()
}
