package pbal

import "testing"

func TestHysteresisTracker_StartsInfeasible(t *testing.T) {
	h := NewHysteresisTracker(15)
	if h.Feasible() {
		t.Error("fresh tracker must start infeasible")
	}
}

func TestHysteresisTracker_FeasibleLatchesImmediately(t *testing.T) {
	h := NewHysteresisTracker(15)
	c := CornerContact{Vertex: 1, Slip: 0.03}
	h.Observe(c, true)
	if !h.Feasible() {
		t.Fatal("single feasible report must latch")
	}
	if h.Corner() != c {
		t.Errorf("latched corner = %+v, want %+v", h.Corner(), c)
	}
}

func TestHysteresisTracker_PatienceWindow(t *testing.T) {
	h := NewHysteresisTracker(15)
	h.Observe(CornerContact{Vertex: 2}, true)

	for i := 0; i < 14; i++ {
		h.Observe(CornerContact{}, false)
		if !h.Feasible() {
			t.Fatalf("flipped after %d misses, patience is 15", i+1)
		}
	}

	h.Observe(CornerContact{}, false)
	if h.Feasible() {
		t.Error("15th consecutive miss must flip infeasible")
	}
}

func TestHysteresisTracker_FeasibleResetsMissCount(t *testing.T) {
	h := NewHysteresisTracker(15)
	h.Observe(CornerContact{Vertex: 2}, true)

	for i := 0; i < 14; i++ {
		h.Observe(CornerContact{}, false)
	}
	// A single feasible report must fully reset the window.
	h.Observe(CornerContact{Vertex: 3}, true)
	for i := 0; i < 14; i++ {
		h.Observe(CornerContact{}, false)
	}
	if !h.Feasible() {
		t.Error("miss count must reset on a feasible report")
	}
	if h.Corner().Vertex != 3 {
		t.Errorf("latched vertex = %d, want 3", h.Corner().Vertex)
	}
}
