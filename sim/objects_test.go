package sim

import "testing"

func TestStation_Enqueue_BelowCapacity_NoEviction(t *testing.T) {
	// GIVEN a station with capacity 2
	st := NewStation(1, 2)

	// WHEN two pods are enqueued
	first := st.Enqueue(7)
	second := st.Enqueue(8)

	// THEN nothing is evicted and the queue holds both in FIFO order
	if first != InvalidPod || second != InvalidPod {
		t.Errorf("Enqueue below capacity evicted: got %d, %d, want none", first, second)
	}
	if st.Len() != 2 {
		t.Errorf("Len: got %d, want 2", st.Len())
	}
	if st.Head() != 7 {
		t.Errorf("Head: got %d, want 7", st.Head())
	}
}

func TestStation_Enqueue_Full_EvictsHead(t *testing.T) {
	// GIVEN a full station with capacity 2 holding [7, 8]
	st := NewStation(1, 2)
	st.Enqueue(7)
	st.Enqueue(8)

	// WHEN another pod is enqueued
	evicted := st.Enqueue(9)

	// THEN the head is evicted and the length stays at capacity
	if evicted != 7 {
		t.Errorf("Enqueue on full queue: evicted %d, want 7", evicted)
	}
	if st.Len() != 2 {
		t.Errorf("Len after eviction: got %d, want 2", st.Len())
	}
	want := []PodID{8, 9}
	for i, pod := range st.Pods() {
		if pod != want[i] {
			t.Errorf("queue[%d]: got %d, want %d", i, pod, want[i])
		}
	}
}

func TestStation_Dequeue_Empty_ReturnsInvalid(t *testing.T) {
	st := NewStation(1, 2)
	if got := st.Dequeue(); got != InvalidPod {
		t.Errorf("Dequeue on empty station: got %d, want InvalidPod", got)
	}
}

func TestStation_Contains(t *testing.T) {
	st := NewStation(1, 3)
	st.Enqueue(4)
	if !st.Contains(4) {
		t.Error("Contains(4): got false, want true")
	}
	if st.Contains(5) {
		t.Error("Contains(5): got true, want false")
	}
}
