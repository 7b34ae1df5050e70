package pbal

// ClassifyWallContact decides wall engagement from the measured
// manipulation-frame wrench and the latest friction polytope. A side is
// engaged when any of its inequality rows is violated by more than the
// force margin.
//
// Fail-open policy: a side with no usable inequality is treated as
// engaged. Until the friction-cone service has produced a boundary a
// false negative on wall contact would inject wrong constraints into the
// estimator, which is judged worse than a false positive.
func ClassifyWallContact(w WrenchSample, p FrictionPolytope, margin float64) (WallFlag, bool) {
	planar := w.Planar()

	right := true
	if p.RightDefined() {
		right = anyViolated(p.Right, planar, margin)
	}

	left := true
	if p.LeftDefined() {
		left = anyViolated(p.Left, planar, margin)
	}

	flag := WallNone
	switch {
	case right && !left:
		flag = WallRight
	case left && !right:
		flag = WallLeft
	case right && left:
		flag = WallBoth
	}

	return flag, right || left
}

func anyViolated(rows []HalfPlane, w [3]float64, margin float64) bool {
	for _, row := range rows {
		if row.Dot(w) > row.B+margin {
			return true
		}
	}
	return false
}
