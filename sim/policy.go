package sim

// PlacementPolicy decides, once per tick before Next, which place the
// repositioning candidate is put on. Implementations return InvalidPlace
// when NextArrivalToStorage reports no candidate.
//
// Implementations live in sim/solver; the interface sits here so the
// runner and occupancy extraction can drive any policy.
type PlacementPolicy interface {
	DecideNewPlace() PlaceID
}
