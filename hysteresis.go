package pbal

// HysteresisTracker debounces the corner-contact feasibility verdict.
// Single-cycle feasibility is noisy near the corner/flush transition
// boundary, so a feasible report latches immediately while an infeasible
// one only takes effect after it has persisted for the patience window.
type HysteresisTracker struct {
	patience int

	missCount int
	feasible  bool
	corner    CornerContact
}

// NewHysteresisTracker creates a tracker with the given patience
// (number of consecutive infeasible cycles tolerated).
func NewHysteresisTracker(patience int) *HysteresisTracker {
	return &HysteresisTracker{
		patience:  patience,
		missCount: patience + 1,
	}
}

// Observe feeds one cycle's feasibility report. When feasible, the
// payload is latched as the current corner hypothesis and the miss count
// resets; otherwise the miss count grows and feasibility flips off only
// once it reaches the patience.
func (h *HysteresisTracker) Observe(c CornerContact, feasible bool) {
	if feasible {
		h.feasible = true
		h.corner = c
		h.missCount = 0
		return
	}

	h.missCount++
	if h.missCount >= h.patience {
		h.feasible = false
	}
}

// Feasible reports the debounced corner-contact verdict.
func (h *HysteresisTracker) Feasible() bool {
	return h.feasible
}

// Corner returns the latched corner hypothesis. Only meaningful while
// Feasible is true.
func (h *HysteresisTracker) Corner() CornerContact {
	return h.corner
}
