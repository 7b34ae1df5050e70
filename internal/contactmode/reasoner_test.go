package contactmode

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

// rectEstimate is a 0.06 x 0.10 box resting on the ground plane (N = 0),
// face 0 (vertices 0-1) down.
func rectEstimate() *pbal.Estimate {
	return &pbal.Estimate{
		VertexN:  []float64{0, 0, 0.06, 0.06},
		VertexT:  []float64{-0.05, 0.05, 0.05, -0.05},
		Position: [2]float64{0.03, 0},
		Heading:  0,
	}
}

func newTestReasoner(prev *pbal.Estimate) *Reasoner {
	r := New(DefaultConfig())
	r.UpdatePreviousEstimate(prev)
	return r
}

func TestCheckLineToNoContact(t *testing.T) {
	r := New(DefaultConfig())
	r.UpdatePoseAndWrench(pbal.PoseSample{}, pbal.WrenchSample{},
		pbal.WrenchSample{Force: r3.Vector{X: 0.5}})
	if r.CheckLineToNoContact(true) {
		t.Error("no previous estimate: check must not fire")
	}

	r.UpdatePreviousEstimate(rectEstimate())
	if !r.CheckLineToNoContact(true) {
		t.Error("normal force 0.5 below release threshold: check must fire")
	}

	r.UpdatePoseAndWrench(pbal.PoseSample{}, pbal.WrenchSample{},
		pbal.WrenchSample{Force: r3.Vector{X: 1.5}})
	if r.CheckLineToNoContact(true) {
		t.Error("normal force 1.5 above release threshold: check must not fire")
	}
}

func TestCheckLineToNoContact_RequiresFlushHistory(t *testing.T) {
	r := newTestReasoner(rectEstimate())
	r.UpdatePoseAndWrench(pbal.PoseSample{}, pbal.WrenchSample{},
		pbal.WrenchSample{Force: r3.Vector{X: 0.2}})

	// Low force without a preceding flush-contact cycle is not a release.
	if r.CheckLineToNoContact(false) {
		t.Error("check fired without flush-contact history")
	}
	if !r.CheckLineToNoContact(true) {
		t.Error("check must fire when the previous cycle was flush contact")
	}
}

func TestUpdatePreviousEstimate_NilKeepsLast(t *testing.T) {
	r := newTestReasoner(rectEstimate())
	r.UpdatePreviousEstimate(nil)

	hyp := r.HypothesesNoObjectMotion()
	if hyp.Len() != 1 {
		t.Fatal("nil update must not discard the previous estimate")
	}
}

func TestFeasibilityOfCornerContact_SingleVertexOnHandLine(t *testing.T) {
	r := newTestReasoner(rectEstimate())

	// Hand line through vertex 2 at 45 degrees: both neighbors sit well
	// off the line.
	r.UpdatePoseAndWrench(
		pbal.PoseSample{N: 0.06, T: 0.05, Heading: math.Pi / 4},
		pbal.WrenchSample{}, pbal.WrenchSample{})

	c, ok := r.FeasibilityOfCornerContact()
	if !ok {
		t.Fatal("corner hypothesis should be feasible")
	}
	if c.Vertex != 2 {
		t.Errorf("corner vertex = %d, want 2", c.Vertex)
	}
	if math.Abs(c.Slip) > 1e-9 || math.Abs(c.Depth) > 1e-9 {
		t.Errorf("slip/depth = (%v, %v), want (0, 0)", c.Slip, c.Depth)
	}
}

func TestFeasibilityOfCornerContact_FlushFaceRejected(t *testing.T) {
	r := newTestReasoner(rectEstimate())

	// Hand line flush with face 0: two captured vertices, not a corner.
	r.UpdatePoseAndWrench(
		pbal.PoseSample{N: 0, T: 0, Heading: 0},
		pbal.WrenchSample{}, pbal.WrenchSample{})

	if _, ok := r.FeasibilityOfCornerContact(); ok {
		t.Error("a flush face must not pass the corner feasibility test")
	}
}

func TestFeasibilityOfCornerContact_NoVertexNearLine(t *testing.T) {
	r := newTestReasoner(rectEstimate())
	r.UpdatePoseAndWrench(
		pbal.PoseSample{N: -0.1, T: 0, Heading: math.Pi / 4},
		pbal.WrenchSample{}, pbal.WrenchSample{})

	if _, ok := r.FeasibilityOfCornerContact(); ok {
		t.Error("hand far from every vertex must be infeasible")
	}
}

func TestCurrentHandContactFace(t *testing.T) {
	r := newTestReasoner(rectEstimate())

	// Hand flush with face 0, offset 0.01 along its own tangent.
	r.UpdatePoseAndWrench(
		pbal.PoseSample{N: 0, T: 0.01, Heading: 0},
		pbal.WrenchSample{}, pbal.WrenchSample{})

	face, slip := r.CurrentHandContactFace()
	if face != 0 {
		t.Errorf("face = %d, want 0", face)
	}
	if math.Abs(slip-0.01) > 1e-9 {
		t.Errorf("slip = %v, want 0.01", slip)
	}
}

func TestHypothesesNoObjectMotion(t *testing.T) {
	prev := rectEstimate()
	r := newTestReasoner(prev)

	hyp := r.HypothesesNoObjectMotion()
	if hyp.Len() != 1 {
		t.Fatalf("hypothesis count = %d, want 1", hyp.Len())
	}
	if hyp.Positions[0] != prev.Position || hyp.Headings[0] != prev.Heading {
		t.Errorf("hypothesis pose = (%v, %v), want previous pose", hyp.Positions[0], hyp.Headings[0])
	}
	if hyp.GroundFaces[0] != 0 {
		t.Errorf("resting face = %d, want 0", hyp.GroundFaces[0])
	}
}

func TestHypothesesLineContact_CorrectsHeadingToHand(t *testing.T) {
	r := newTestReasoner(rectEstimate())

	// Hand tilted 0.1 rad relative to the flush face.
	r.UpdatePoseAndWrench(
		pbal.PoseSample{N: 0, T: 0, Heading: 0.1},
		pbal.WrenchSample{}, pbal.WrenchSample{})

	hyp := r.HypothesesLineContact()
	if hyp.Len() != 1 {
		t.Fatalf("hypothesis count = %d, want 1", hyp.Len())
	}
	if math.Abs(hyp.Headings[0]-0.1) > 1e-9 {
		t.Errorf("corrected heading = %v, want 0.1", hyp.Headings[0])
	}
}

func TestHypothesesNoContact_FlatBoxHasOneRestingPose(t *testing.T) {
	prev := rectEstimate()
	r := newTestReasoner(prev)

	hyp := r.HypothesesNoContact()
	if hyp.Len() != 1 {
		t.Fatalf("hypothesis count = %d, want 1 (only the down face settles within tolerance)", hyp.Len())
	}
	if hyp.GroundFaces[0] != 0 {
		t.Errorf("resting face = %d, want 0", hyp.GroundFaces[0])
	}
	if hyp.Positions[0] != prev.Position || hyp.Headings[0] != prev.Heading {
		t.Errorf("settled pose = (%v, %v), want unchanged previous pose",
			hyp.Positions[0], hyp.Headings[0])
	}
}

func TestHypothesesNoContact_TiltedBoxSettlesFlat(t *testing.T) {
	// The box of rectEstimate rotated 0.3 rad about its centroid.
	prev := rectEstimate()
	tilted := &pbal.Estimate{
		VertexN:  make([]float64, 4),
		VertexT:  make([]float64, 4),
		Position: prev.Position,
		Heading:  0.3,
	}
	c, s := math.Cos(0.3), math.Sin(0.3)
	for i := range prev.VertexN {
		dn := prev.VertexN[i] - prev.Position[0]
		dt := prev.VertexT[i] - prev.Position[1]
		tilted.VertexN[i] = prev.Position[0] + c*dn - s*dt
		tilted.VertexT[i] = prev.Position[1] + s*dn + c*dt
	}

	r := newTestReasoner(tilted)
	hyp := r.HypothesesNoContact()
	if hyp.Len() != 1 {
		t.Fatalf("hypothesis count = %d, want 1", hyp.Len())
	}
	// Settling rotates the tilt away: heading returns to 0.
	if math.Abs(hyp.Headings[0]) > 1e-9 {
		t.Errorf("settled heading = %v, want 0", hyp.Headings[0])
	}
}

func TestHypothesesFromVision_RectangleHasTwoAlignments(t *testing.T) {
	prev := rectEstimate()
	r := newTestReasoner(prev)

	// Vision sees the same box, translated.
	vision := make([][2]float64, 4)
	for i := range prev.VertexN {
		vision[i] = [2]float64{prev.VertexN[i] + 0.02, prev.VertexT[i] - 0.01}
	}
	r.UpdateVision(vision)

	hyp := r.HypothesesFromVision()
	if hyp.Len() != 2 {
		t.Fatalf("hypothesis count = %d, want 2 (0.06 x 0.10 box has a 2-fold symmetry)", hyp.Len())
	}
	if math.Abs(hyp.Headings[0]) > 1e-9 {
		t.Errorf("identity alignment heading = %v, want 0", hyp.Headings[0])
	}
	if math.Abs(math.Abs(hyp.Headings[1])-math.Pi) > 1e-9 {
		t.Errorf("flipped alignment heading = %v, want +/-pi", hyp.Headings[1])
	}
	for i, m := range hyp.ObjToVisionMaps[0] {
		if m != i {
			t.Errorf("identity map[%d] = %d, want %d", i, m, i)
		}
	}
	// Implied centroid follows the vision polygon.
	for i := 0; i < hyp.Len(); i++ {
		if math.Abs(hyp.Positions[i][0]-0.05) > 1e-9 || math.Abs(hyp.Positions[i][1]+0.01) > 1e-9 {
			t.Errorf("position[%d] = %v, want translated centroid (0.05, -0.01)", i, hyp.Positions[i])
		}
	}
}

func TestHypothesesFromVision_VertexCountMismatch(t *testing.T) {
	r := newTestReasoner(rectEstimate())
	r.UpdateVision([][2]float64{{0, 0}, {1, 0}, {0, 1}})
	if hyp := r.HypothesesFromVision(); hyp.Len() != 0 {
		t.Errorf("hypothesis count = %d, want 0 on vertex-count mismatch", hyp.Len())
	}
}

func TestChooseVisionHypothesis(t *testing.T) {
	r := New(DefaultConfig())

	at := [2]float64{0.03, 0}
	vision := pbal.VisionHypothesisSet{
		ObjToVisionMaps: [][]int{{0, 1, 2, 3}, {2, 3, 0, 1}},
		Positions:       [][2]float64{at, at},
		Headings:        []float64{0, math.Pi},
	}

	// Unique agreement with the kinematic pose.
	kin := pbal.HypothesisSet{Positions: [][2]float64{{0.04, 0.01}}, Headings: []float64{0.05}}
	if got := r.ChooseVisionHypothesis(vision, kin); got != 0 {
		t.Errorf("unique agreement: chose %d, want 0", got)
	}

	// Both alignments agree with some kinematic hypothesis: ambiguous.
	kin = pbal.HypothesisSet{Positions: [][2]float64{at, at}, Headings: []float64{0, math.Pi}}
	if got := r.ChooseVisionHypothesis(vision, kin); got != -1 {
		t.Errorf("ambiguous agreement: chose %d, want -1", got)
	}

	// No heading agreement at all.
	kin = pbal.HypothesisSet{Positions: [][2]float64{at}, Headings: []float64{math.Pi / 2}}
	if got := r.ChooseVisionHypothesis(vision, kin); got != -1 {
		t.Errorf("no agreement: chose %d, want -1", got)
	}
}

func TestChooseVisionHypothesis_PositionMismatchRejected(t *testing.T) {
	r := New(DefaultConfig())

	// Heading matches but the vision centroid sits 0.1 away from every
	// kinematic candidate: not the same object placement.
	vision := pbal.VisionHypothesisSet{
		ObjToVisionMaps: [][]int{{0, 1, 2, 3}},
		Positions:       [][2]float64{{0.13, 0}},
		Headings:        []float64{0},
	}
	kin := pbal.HypothesisSet{Positions: [][2]float64{{0.03, 0}}, Headings: []float64{0}}
	if got := r.ChooseVisionHypothesis(vision, kin); got != -1 {
		t.Errorf("distant centroid: chose %d, want -1", got)
	}

	kin.Positions[0] = [2]float64{0.12, 0}
	if got := r.ChooseVisionHypothesis(vision, kin); got != 0 {
		t.Errorf("centroid within tolerance: chose %d, want 0", got)
	}
}
