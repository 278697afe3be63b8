package sim

import (
	"errors"
	"fmt"
)

// Recoverable validation errors. Callers passing bad ids get one of these
// wrapped with context; test with errors.Is.
var (
	ErrPlaceNotFound        = errors.New("place does not exist")
	ErrPodNotFound          = errors.New("pod does not exist")
	ErrStationNotFound      = errors.New("station does not exist")
	ErrPlaceOccupied        = errors.New("place is occupied")
	ErrPodNotInStorage      = errors.New("pod is not in storage")
	ErrPodLocationNotUnique = errors.New("pod already located elsewhere")
	ErrNoPodToReposition    = errors.New("no pod to reposition")
)

// ConsistencyError reports a state that must never exist, such as one pod
// mapped to two places. It indicates a defect in this package, not bad
// caller input, and is raised as a panic value.
type ConsistencyError struct {
	T   int64
	Msg string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation at t=%d: %s", e.T, e.Msg)
}

// inconsistent aborts the run. Recovering from this panic leaves the
// warehouse in an undefined state.
func inconsistent(t int64, format string, args ...any) {
	panic(&ConsistencyError{T: t, Msg: fmt.Sprintf(format, args...)})
}
