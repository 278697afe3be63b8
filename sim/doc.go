// Package sim provides the core discrete-event simulation of the pod
// repositioning problem: mobile storage pods on fixed places, bounded
// pick-station queues, and a tick-by-tick transition that accounts travel
// costs.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - objects.go: ids, the INVALID sentinel, and the bounded Station queue
//   - warehouse.go: the state machine, one transition per tick
//   - departures.go: the generators that drive the warehouse
//
// # Architecture
//
// The sim package owns all state; placement policies live in sim/solver and
// consume the warehouse through a small read/decide surface
// (AvailablePlaces, NextArrivalToStorage, Next). Occupancy extraction
// (occupancy.go) replays a finished or speculative run into per-place
// time intervals, which the batch Tetris heuristic rearranges.
//
// Determinism is mandatory throughout: every random draw comes from an
// explicitly seeded generator, and every iterate-then-choose step imposes
// ascending-id order first.
package sim
