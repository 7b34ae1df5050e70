// Package contactmode implements the geometric contact/vision hypothesis
// reasoner consulted by the estimation loop. All verdicts are computed
// against the previous cycle's estimate; "cannot determine" outcomes are
// empty sets or -1 indices, never errors.
package contactmode

import (
	"math"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

// Config holds the reasoner's geometric tolerances.
type Config struct {
	// HandHalfLength is half the length of the hand contact line.
	HandHalfLength float64
	// CaptureRadius is the max vertex distance from the hand line for a
	// corner-contact hypothesis.
	CaptureRadius float64
	// ReleaseForce is the contact normal force below which the
	// line-to-no-contact transition check fires.
	ReleaseForce float64
	// SettleAngle is the max rotation for a ground face to count as a
	// plausible resting face in no-contact hypotheses.
	SettleAngle float64
	// HeadingTol is the max heading mismatch when matching vision
	// hypotheses against kinematic ones.
	HeadingTol float64
	// PositionTol is the max centroid distance when matching vision
	// hypotheses against kinematic ones.
	PositionTol float64
	// EdgeTol is the max per-edge length mismatch when aligning the
	// object polygon onto a vision polygon.
	EdgeTol float64
}

// DefaultConfig returns the tolerances tuned on the hardware.
func DefaultConfig() Config {
	return Config{
		HandHalfLength: 0.05,
		CaptureRadius:  0.01,
		ReleaseForce:   1.0,
		SettleAngle:    0.6,
		HeadingTol:     0.25,
		PositionTol:    0.03,
		EdgeTol:        0.02,
	}
}

// Reasoner holds the per-cycle measurement context and the previous
// estimate it reasons against. It is pure computation: no transport, no
// estimator mutation.
type Reasoner struct {
	cfg Config

	pose        pbal.PoseSample
	worldWrench pbal.WrenchSample
	eeWrench    pbal.WrenchSample

	torqueBoundaryTest bool
	torqueBoundaryFlag int

	prev   *pbal.Estimate
	vision [][2]float64
}

// New creates a reasoner.
func New(cfg Config) *Reasoner {
	return &Reasoner{cfg: cfg}
}

// UpdatePoseAndWrench records this cycle's hand pose and wrenches.
func (r *Reasoner) UpdatePoseAndWrench(pose pbal.PoseSample, worldWrench, eeWrench pbal.WrenchSample) {
	r.pose = pose
	r.worldWrench = worldWrench
	r.eeWrench = eeWrench
}

// UpdateTorqueBoundary records the torque-boundary test result.
func (r *Reasoner) UpdateTorqueBoundary(test bool, flag int) {
	r.torqueBoundaryTest = test
	r.torqueBoundaryFlag = flag
}

// UpdatePreviousEstimate records the estimator's latest output. A nil
// estimate leaves the previous one in place.
func (r *Reasoner) UpdatePreviousEstimate(e *pbal.Estimate) {
	if e != nil {
		r.prev = e
	}
}

// UpdateVision records the latest vision polygon.
func (r *Reasoner) UpdateVision(polygon [][2]float64) {
	r.vision = polygon
}

// CheckLineToNoContact reports whether the flush-contact force has
// collapsed, i.e. the hand may have released the object. The check only
// fires out of an actual flush-contact cycle: low force on its own is
// not evidence of a release.
func (r *Reasoner) CheckLineToNoContact(prevFlushContact bool) bool {
	return prevFlushContact && r.prev != nil && r.eeWrench.Normal() < r.cfg.ReleaseForce
}

// FeasibilityOfCornerContact tests the hand-line/object-corner
// hypothesis: exactly one vertex of the previous estimate within the
// capture radius of the hand line and inside the hand's extent, with
// both neighbors clear of the line.
func (r *Reasoner) FeasibilityOfCornerContact() (pbal.CornerContact, bool) {
	if r.prev == nil {
		return pbal.CornerContact{}, false
	}
	n := r.prev.NumVertices()

	candidate := -1
	var candDepth, candSlip float64
	for i := 0; i < n; i++ {
		depth, slip := handCoords(r.pose, vertexPoint(r.prev, i))
		if math.Abs(depth) > r.cfg.CaptureRadius || math.Abs(slip) > r.cfg.HandHalfLength {
			continue
		}
		if candidate >= 0 {
			// Two captured vertices means a face is flush, not a corner.
			return pbal.CornerContact{}, false
		}
		candidate, candDepth, candSlip = i, depth, slip
	}
	if candidate < 0 {
		return pbal.CornerContact{}, false
	}

	for _, j := range []int{(candidate + n - 1) % n, (candidate + 1) % n} {
		depth, _ := handCoords(r.pose, vertexPoint(r.prev, j))
		if math.Abs(depth) <= r.cfg.CaptureRadius {
			return pbal.CornerContact{}, false
		}
	}

	return pbal.CornerContact{Vertex: candidate, Slip: candSlip, Depth: candDepth}, true
}

// CurrentHandContactFace returns the object face closest to flush with
// the hand line and the hand's slip coordinate along it.
func (r *Reasoner) CurrentHandContactFace() (int, float64) {
	if r.prev == nil {
		return 0, 0
	}
	n := r.prev.NumVertices()

	best := 0
	bestCost := math.Inf(1)
	for f := 0; f < n; f++ {
		da, _ := handCoords(r.pose, vertexPoint(r.prev, f))
		db, _ := handCoords(r.pose, vertexPoint(r.prev, (f+1)%n))
		cost := math.Abs(da) + math.Abs(db)
		if cost < bestCost {
			bestCost = cost
			best = f
		}
	}

	a := vertexPoint(r.prev, best)
	b := vertexPoint(r.prev, (best+1)%n)
	mid := a.Add(b).Mul(0.5)
	_, slip := handCoords(r.pose, mid)
	return best, -slip
}

// HypothesesNoObjectMotion returns the single hypothesis that the object
// did not move since the previous estimate.
func (r *Reasoner) HypothesesNoObjectMotion() pbal.HypothesisSet {
	if r.prev == nil {
		return pbal.HypothesisSet{}
	}
	return pbal.HypothesisSet{
		Positions:   [][2]float64{r.prev.Position},
		Headings:    []float64{r.prev.Heading},
		GroundFaces: []int{r.restingFace(r.prev)},
	}
}

// HypothesesLineContact returns the hypothesis that the object stayed
// flush on the hand line, its heading corrected so the contact face is
// parallel to the hand.
func (r *Reasoner) HypothesesLineContact() pbal.HypothesisSet {
	if r.prev == nil {
		return pbal.HypothesisSet{}
	}
	face, _ := r.CurrentHandContactFace()

	_, _, tangent := handFrame(r.pose)
	handDir := math.Atan2(tangent.Y, tangent.X)
	correction := pbal.Mod2Pi(handDir - faceAngle(r.prev, face))

	return pbal.HypothesisSet{
		Positions:   [][2]float64{r.prev.Position},
		Headings:    []float64{pbal.Mod2Pi(r.prev.Heading + correction)},
		GroundFaces: []int{r.restingFace(r.prev)},
	}
}

// HypothesesNoContact enumerates the resting poses the object could have
// settled into after leaving the hand: each face whose required rotation
// is within the settle tolerance, laid flat on the ground plane.
func (r *Reasoner) HypothesesNoContact() pbal.HypothesisSet {
	if r.prev == nil {
		return pbal.HypothesisSet{}
	}
	n := r.prev.NumVertices()
	ground := groundHeight(r.prev)

	var out pbal.HypothesisSet
	for f := 0; f < n; f++ {
		// Rotation that lays face f along the tangential axis with the
		// object above it.
		correction := pbal.Mod2Pi(math.Pi/2 - faceAngle(r.prev, f))
		if math.Abs(correction) > r.cfg.SettleAngle {
			continue
		}

		heading := pbal.Mod2Pi(r.prev.Heading + correction)

		// Rotate the previous vertex cloud about its centroid, then drop
		// it onto the ground plane.
		cn, ct := r.prev.Position[0], r.prev.Position[1]
		low := math.Inf(1)
		for i := 0; i < n; i++ {
			p := rotate(vertexPoint(r.prev, i).Sub(planar(cn, ct)), correction)
			if p.X < low {
				low = p.X
			}
		}
		drop := ground - (cn + low)

		out.Positions = append(out.Positions, [2]float64{cn + drop, ct})
		out.Headings = append(out.Headings, heading)
		out.GroundFaces = append(out.GroundFaces, f)
	}
	return out
}

// HypothesesFromVision enumerates the cyclic vertex correspondences that
// align the object polygon onto the latest vision polygon with matching
// edge lengths. Each candidate carries the object-to-vision index map
// and the implied object heading.
func (r *Reasoner) HypothesesFromVision() pbal.VisionHypothesisSet {
	if r.prev == nil || len(r.vision) == 0 {
		return pbal.VisionHypothesisSet{}
	}
	n := r.prev.NumVertices()
	if len(r.vision) != n {
		return pbal.VisionHypothesisSet{}
	}

	objVertices := make([][2]float64, n)
	for i := 0; i < n; i++ {
		objVertices[i] = [2]float64{r.prev.VertexN[i], r.prev.VertexT[i]}
	}
	objEdges := polygonEdgeLengths(objVertices)
	objAngles := edgeAngles(objVertices)
	visEdges := polygonEdgeLengths(r.vision)
	visAngles := edgeAngles(r.vision)

	// Every cyclic alignment maps the full vertex set onto the vision
	// polygon, so the implied object centroid is the vision centroid.
	var cn, ct float64
	for _, v := range r.vision {
		cn += v[0]
		ct += v[1]
	}
	cn /= float64(n)
	ct /= float64(n)

	var out pbal.VisionHypothesisSet
	for shift := 0; shift < n; shift++ {
		if !edgesMatch(objEdges, visEdges, shift, r.cfg.EdgeTol) {
			continue
		}

		// Average rotation carrying object edges onto vision edges.
		var sumSin, sumCos float64
		for i := 0; i < n; i++ {
			d := visAngles[(i+shift)%n] - objAngles[i]
			sumSin += math.Sin(d)
			sumCos += math.Cos(d)
		}
		delta := math.Atan2(sumSin, sumCos)

		m := make([]int, n)
		for i := 0; i < n; i++ {
			m[i] = (i + shift) % n
		}
		out.ObjToVisionMaps = append(out.ObjToVisionMaps, m)
		out.Positions = append(out.Positions, [2]float64{cn, ct})
		out.Headings = append(out.Headings, pbal.Mod2Pi(r.prev.Heading+delta))
	}
	return out
}

// ChooseVisionHypothesis returns the index of the unique vision
// hypothesis whose heading and centroid position both agree with some
// kinematic hypothesis, or -1 when zero or several agree.
func (r *Reasoner) ChooseVisionHypothesis(vision pbal.VisionHypothesisSet, kinematic pbal.HypothesisSet) int {
	chosen := -1
	for i := 0; i < vision.Len(); i++ {
		for k := 0; k < kinematic.Len(); k++ {
			if math.Abs(pbal.Mod2Pi(vision.Headings[i]-kinematic.Headings[k])) > r.cfg.HeadingTol {
				continue
			}
			dn := vision.Positions[i][0] - kinematic.Positions[k][0]
			dt := vision.Positions[i][1] - kinematic.Positions[k][1]
			if math.Hypot(dn, dt) > r.cfg.PositionTol {
				continue
			}
			if chosen >= 0 && chosen != i {
				return -1
			}
			chosen = i
		}
	}
	return chosen
}

// restingFace returns the face of the estimate closest to the ground plane.
func (r *Reasoner) restingFace(e *pbal.Estimate) int {
	n := e.NumVertices()
	ground := groundHeight(e)

	best := 0
	bestCost := math.Inf(1)
	for f := 0; f < n; f++ {
		cost := (e.VertexN[f] - ground) + (e.VertexN[(f+1)%n] - ground)
		if cost < bestCost {
			bestCost = cost
			best = f
		}
	}
	return best
}

// edgesMatch reports whether every object edge length matches the vision
// edge it maps to under the given cyclic shift.
func edgesMatch(obj, vis []float64, shift int, tol float64) bool {
	n := len(obj)
	for i := 0; i < n; i++ {
		if math.Abs(obj[i]-vis[(i+shift)%n]) > tol {
			return false
		}
	}
	return true
}
