package pbal

import (
	"github.com/golang/geo/r3"
)

// PoseSample is the planar hand pose in the world manipulation frame.
// N is the coordinate along the manipulation-frame normal axis, T along
// the tangential axis, Heading the hand rotation about the out-of-plane axis.
type PoseSample struct {
	N       float64
	T       float64
	Heading float64
}

// WrenchSample is a 6-DOF force/torque measurement in some frame of interest.
type WrenchSample struct {
	Force  r3.Vector
	Torque r3.Vector
}

// Normal returns the force component along the contact normal.
func (w WrenchSample) Normal() float64 {
	return w.Force.X
}

// Planar projects the wrench onto the manipulation plane: (fn, ft, tau).
func (w WrenchSample) Planar() [3]float64 {
	return [3]float64{w.Force.X, w.Force.Y, w.Torque.Z}
}

// HalfPlane is one linear inequality row a·w <= b of a friction polytope
// boundary, expressed over the planar wrench (fn, ft, tau).
type HalfPlane struct {
	A [3]float64
	B float64
}

// Dot evaluates the inequality's left-hand side for a planar wrench.
func (h HalfPlane) Dot(w [3]float64) float64 {
	return h.A[0]*w[0] + h.A[1]*w[1] + h.A[2]*w[2]
}

// FrictionPolytope holds the external wall-contact inequality boundaries
// for the right and left walls. A side with no rows (or with its validity
// flag unset) has not yet been estimated by the friction-cone service.
// The polytope is replaced wholesale on each update and is read-only here.
type FrictionPolytope struct {
	Right      []HalfPlane
	Left       []HalfPlane
	RightValid bool
	LeftValid  bool
}

// RightDefined reports whether the right-wall boundary is usable.
func (p FrictionPolytope) RightDefined() bool {
	return p.RightValid && len(p.Right) > 0
}

// LeftDefined reports whether the left-wall boundary is usable.
func (p FrictionPolytope) LeftDefined() bool {
	return p.LeftValid && len(p.Left) > 0
}

// SlidingState carries the sliding/sticking flags published by the
// sliding-state estimator for the hand and object contacts.
type SlidingState struct {
	ObjectSlidingLeft  bool
	ObjectSlidingRight bool
	HandSlidingLeft    bool
	HandSlidingRight   bool
}

// WallFlag identifies which wall(s) the object is judged to be pressed against.
type WallFlag int

// Wall flag values follow the wire encoding of the polygon contact
// estimate message (-1 none, 0 right, 1 left, 2 both).
const (
	WallNone  WallFlag = -1
	WallRight WallFlag = 0
	WallLeft  WallFlag = 1
	WallBoth  WallFlag = 2
)

func (f WallFlag) String() string {
	switch f {
	case WallRight:
		return "right"
	case WallLeft:
		return "left"
	case WallBoth:
		return "both"
	default:
		return "none"
	}
}

// ContactMode identifies which arbitration branch fired on a cycle.
type ContactMode int

const (
	// ModeIdle means no branch fired; the estimator was not touched.
	ModeIdle ContactMode = iota
	// ModeCorner is an object corner against the hand contact line.
	ModeCorner
	// ModeFlushLine is an object face flush against the hand contact line.
	ModeFlushLine
	// ModeVisionAssist is vision-only tracking with no hand engagement.
	ModeVisionAssist
	// ModeNoContact is free placement on the ground with neither hand nor vision.
	ModeNoContact
)

func (m ContactMode) String() string {
	switch m {
	case ModeCorner:
		return "corner_contact"
	case ModeFlushLine:
		return "flush_line_contact"
	case ModeVisionAssist:
		return "vision_assist"
	case ModeNoContact:
		return "no_contact"
	default:
		return "idle"
	}
}

// CornerContact is the feasibility payload for a hand-line/object-corner
// hypothesis: which vertex is in contact and where it sits along the hand
// contact line. Latched by the hysteresis tracker while corner contact
// remains feasible.
type CornerContact struct {
	// Vertex is the object vertex index in contact with the hand line.
	Vertex int
	// Slip is the tangential coordinate of the vertex in the hand frame.
	Slip float64
	// Depth is the signed normal distance of the vertex from the hand line.
	Depth float64
}

// ContactHypothesis is the tagged result of arbitration for one cycle.
// Only the payload fields for the selected mode are meaningful:
// Corner for ModeCorner, Face for ModeFlushLine.
type ContactHypothesis struct {
	Mode   ContactMode
	Corner CornerContact
	Face   int
}

// HypothesisSet is a set of candidate object poses produced by the
// reasoner from kinematic considerations alone. Parallel slices indexed
// by hypothesis.
type HypothesisSet struct {
	Positions   [][2]float64
	Headings    []float64
	GroundFaces []int
}

// Len returns the number of hypotheses in the set.
func (h HypothesisSet) Len() int {
	return len(h.Headings)
}

// VisionHypothesisSet is a set of candidate rigid alignments of the
// object polygon onto the latest vision polygon. Each candidate carries
// the vertex correspondence (object index -> vision index), the implied
// object centroid position and a heading.
type VisionHypothesisSet struct {
	ObjToVisionMaps [][]int
	Positions       [][2]float64
	Headings        []float64
}

// Len returns the number of vision hypotheses in the set.
func (v VisionHypothesisSet) Len() int {
	return len(v.Headings)
}

// Estimate is the estimator's per-cycle output snapshot. Slices are
// indexed by object vertex; index i always refers to the same physical
// vertex across cycles.
type Estimate struct {
	// VertexN / VertexT are the per-vertex normal/tangential coordinates
	// in the current world manipulation frame.
	VertexN []float64
	VertexT []float64
	// MglCosTheta / MglSinTheta are the per-vertex gravity weight terms.
	MglCosTheta []float64
	MglSinTheta []float64
	// Position and Heading are the current object pose.
	Position [2]float64
	Heading  float64
}

// NumVertices returns the number of object vertices in the estimate.
func (e *Estimate) NumVertices() int {
	return len(e.VertexN)
}

// ContactEstimate is the annotated output snapshot handed to the
// transport layer after each successful estimation cycle.
type ContactEstimate struct {
	VertexN []float64
	VertexT []float64
	VertexZ []float64

	MglCosTheta []float64
	MglSinTheta []float64

	// ContactIndices are the vertices currently marked in ground contact.
	ContactIndices []int
	// HandContactIndices is one vertex for corner mode, two cyclic-adjacent
	// vertices for flush-line mode, empty otherwise.
	HandContactIndices []int
	// WallContactIndices holds the wall-touching vertex when a single
	// wall is flagged, empty otherwise.
	WallContactIndices []int

	WallFlag WallFlag
}
