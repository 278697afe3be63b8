package sim

import (
	"fmt"
	"strings"
)

// PodID identifies a mobile storage pod. Valid pods are numbered 1..N.
type PodID int

// PlaceID identifies a fixed storage slot. Valid places are numbered 1..P.
type PlaceID int

// StationID identifies a pick/pack station.
type StationID int

// InvalidID is the shared "no object" / "no decision" sentinel.
const InvalidID = 0

const (
	InvalidPod     PodID     = InvalidID
	InvalidPlace   PlaceID   = InvalidID
	InvalidStation StationID = InvalidID
)

// Station is a bounded FIFO queue of pods being picked. A pod enqueued onto
// a full station pushes the head out; the evicted pod must be repositioned
// into storage in the same tick.
type Station struct {
	ID   StationID
	MaxN int     // queue capacity
	pods []PodID // head first
}

// NewStation creates a station with queue capacity maxN.
func NewStation(id StationID, maxN int) *Station {
	return &Station{ID: id, MaxN: maxN}
}

// Enqueue appends a pod to the queue. If the queue is already at capacity
// the former head is removed and returned; otherwise InvalidPod is returned.
// The queue length never exceeds MaxN.
func (s *Station) Enqueue(pod PodID) PodID {
	formerHead := InvalidPod
	if len(s.pods) >= s.MaxN {
		formerHead = s.pods[0]
		s.pods = s.pods[1:]
	}
	s.pods = append(s.pods, pod)
	return formerHead
}

// Dequeue removes and returns the head pod, or InvalidPod if the queue is
// empty.
func (s *Station) Dequeue() PodID {
	if len(s.pods) == 0 {
		return InvalidPod
	}
	head := s.pods[0]
	s.pods = s.pods[1:]
	return head
}

// Head returns the pod at the queue head without removing it.
func (s *Station) Head() PodID {
	if len(s.pods) == 0 {
		return InvalidPod
	}
	return s.pods[0]
}

// Pods returns the queue contents, head first. The returned slice is the
// station's internal storage — callers may iterate but must not modify it.
func (s *Station) Pods() []PodID {
	return s.pods
}

// Contains reports whether the pod is currently queued at this station.
func (s *Station) Contains(pod PodID) bool {
	for _, p := range s.pods {
		if p == pod {
			return true
		}
	}
	return false
}

// Len returns the number of queued pods.
func (s *Station) Len() int {
	return len(s.pods)
}

// IsFull reports whether the queue is at capacity.
func (s *Station) IsFull() bool {
	return len(s.pods) == s.MaxN
}

// Clear empties the queue.
func (s *Station) Clear() {
	s.pods = nil
}

func (s *Station) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "station %d [", s.ID)
	for i, p := range s.pods {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d", p)
	}
	fmt.Fprintf(&sb, "] cap=%d", s.MaxN)
	return sb.String()
}
