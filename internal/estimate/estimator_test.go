package estimate

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

// boxPrior is a 0.06 x 0.10 box resting on the ground plane, face 0 down.
func boxPrior() [][2]float64 {
	return [][2]float64{
		{0, -0.05},
		{0, 0.05},
		{0.06, 0.05},
		{0.06, -0.05},
	}
}

func newBoxEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := New(DefaultConfig(), boxPrior())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func TestNew_DegeneratePrior(t *testing.T) {
	if _, err := New(DefaultConfig(), [][2]float64{{0, 0}, {1, 0}}); !errors.Is(err, pbal.ErrDegenerateShapePrior) {
		t.Errorf("err = %v, want ErrDegenerateShapePrior", err)
	}
}

func TestInitialEstimate(t *testing.T) {
	e := newBoxEstimator(t)
	est := e.InitialEstimate()

	prior := boxPrior()
	for i := range prior {
		if math.Abs(est.VertexN[i]-prior[i][0]) > 1e-12 || math.Abs(est.VertexT[i]-prior[i][1]) > 1e-12 {
			t.Errorf("vertex %d = (%v, %v), want (%v, %v)",
				i, est.VertexN[i], est.VertexT[i], prior[i][0], prior[i][1])
		}
	}
	if math.Abs(est.Position[0]-0.03) > 1e-12 || math.Abs(est.Position[1]) > 1e-12 {
		t.Errorf("position = %v, want centroid (0.03, 0)", est.Position)
	}
	if e.HasRunOnce() {
		t.Error("HasRunOnce must be false before the first solve")
	}
}

func TestComputeEstimate_UnderdeterminedCycle(t *testing.T) {
	e := newBoxEstimator(t)

	// No AdvanceTime at all.
	if got := e.ComputeEstimate(); got != nil {
		t.Error("solve without a staged cycle must return nil")
	}

	// Cycle with a pose but no kinematic constraint.
	e.AdvanceTime()
	e.AddPoseObservation(pbal.PoseSample{})
	if got := e.ComputeEstimate(); got != nil {
		t.Error("solve without a kinematic constraint must return nil")
	}

	// Cycle with a constraint but no pose.
	e.AdvanceTime()
	e.AddFlushKinematicConstraint()
	if got := e.ComputeEstimate(); got != nil {
		t.Error("solve without a pose observation must return nil")
	}
	if e.HasRunOnce() {
		t.Error("failed cycles must not set HasRunOnce")
	}
}

func TestComputeEstimate_NoContactPinsPose(t *testing.T) {
	e := newBoxEstimator(t)

	target := [2]float64{0.1, 0.2}
	var est *pbal.Estimate
	for i := 0; i < 5; i++ {
		e.AdvanceTime()
		e.AddPoseObservation(pbal.PoseSample{N: 0.5, T: 0.5})
		e.AddNoContactKinematicConstraint(target, 0.4, 1)
		est = e.ComputeEstimate()
		if est == nil {
			t.Fatalf("iteration %d: solve returned nil", i)
		}
	}

	if math.Abs(est.Position[0]-target[0]) > 1e-3 || math.Abs(est.Position[1]-target[1]) > 1e-3 {
		t.Errorf("position = %v, want %v", est.Position, target)
	}
	if math.Abs(est.Heading-0.4) > 1e-3 {
		t.Errorf("heading = %v, want 0.4", est.Heading)
	}

	contacts := e.ActiveContactVertices()
	if len(contacts) != 2 || contacts[0] != 1 || contacts[1] != 2 {
		t.Errorf("contact vertices = %v, want hypothesis face [1 2]", contacts)
	}
	if !e.HasRunOnce() {
		t.Error("HasRunOnce must be true after a successful solve")
	}
}

func TestComputeEstimate_CornerPullsVertexToHand(t *testing.T) {
	e := newBoxEstimator(t)

	// Hand line through (0.07, 0.05) at 45 degrees; vertex 2 starts at
	// (0.06, 0.05).
	pose := pbal.PoseSample{N: 0.07, T: 0.05, Heading: math.Pi / 4}
	corner := pbal.CornerContact{Vertex: 2, Slip: 0}

	var est *pbal.Estimate
	for i := 0; i < 10; i++ {
		e.AdvanceTime()
		e.AddPoseObservation(pose)
		e.AddCornerKinematicConstraint(corner)
		est = e.ComputeEstimate()
		if est == nil {
			t.Fatalf("iteration %d: solve returned nil", i)
		}
	}

	dn := est.VertexN[2] - 0.07
	dt := est.VertexT[2] - 0.05
	if math.Hypot(dn, dt) > 1e-3 {
		t.Errorf("vertex 2 = (%v, %v), want near hand point (0.07, 0.05)", est.VertexN[2], est.VertexT[2])
	}
}

func TestComputeEstimate_FlushAlignsFaceWithHand(t *testing.T) {
	e := newBoxEstimator(t)
	e.SetActiveContactFace(0)
	e.SetSlip(0)

	// Hand line tilted 0.1 rad against the currently vertical face 0.
	pose := pbal.PoseSample{N: 0, T: 0, Heading: 0.1}

	var est *pbal.Estimate
	for i := 0; i < 10; i++ {
		e.AdvanceTime()
		e.AddPoseObservation(pose)
		e.AddFlushKinematicConstraint()
		est = e.ComputeEstimate()
		if est == nil {
			t.Fatalf("iteration %d: solve returned nil", i)
		}
	}

	if math.Abs(est.Heading-0.1) > 1e-2 {
		t.Errorf("heading = %v, want near hand tilt 0.1", est.Heading)
	}
	if e.ActiveContactFace() != 0 {
		t.Errorf("active face = %d, want 0", e.ActiveContactFace())
	}
}

func TestComputeEstimate_VisionTranslatesObject(t *testing.T) {
	e := newBoxEstimator(t)

	// Vision sees the box translated by (0.02, -0.01).
	vision := make([][2]float64, 4)
	for i, v := range boxPrior() {
		vision[i] = [2]float64{v[0] + 0.02, v[1] - 0.01}
	}

	var est *pbal.Estimate
	for i := 0; i < 20; i++ {
		e.AdvanceTime()
		e.AddPoseObservation(pbal.PoseSample{})
		e.AddNoContactKinematicConstraintVisionAssisted()
		e.AddVisionObservation(vision)
		e.AddVisionConstraintCorner([]int{0, 1, 2, 3})
		est = e.ComputeEstimate()
		if est == nil {
			t.Fatalf("iteration %d: solve returned nil", i)
		}
	}

	if math.Abs(est.Position[0]-0.05) > 1e-3 || math.Abs(est.Position[1]+0.01) > 1e-3 {
		t.Errorf("position = %v, want (0.05, -0.01)", est.Position)
	}
	if math.Abs(est.Heading) > 1e-2 {
		t.Errorf("heading = %v, want 0 (pure translation)", est.Heading)
	}
}

func TestComputeEstimate_FlushVisionActsAlongHandLine(t *testing.T) {
	e := newBoxEstimator(t)
	e.SetActiveContactFace(0)
	e.SetSlip(0)

	// Hand flush with face 0. Vision sees the box shifted 0.02 along the
	// hand line and 0.01 off it.
	pose := pbal.PoseSample{N: 0, T: 0, Heading: 0}
	vision := make([][2]float64, 4)
	for i, v := range boxPrior() {
		vision[i] = [2]float64{v[0] + 0.01, v[1] + 0.02}
	}

	var est *pbal.Estimate
	for i := 0; i < 15; i++ {
		e.AdvanceTime()
		e.AddPoseObservation(pose)
		e.AddFlushKinematicConstraint()
		e.AddVisionObservation(vision)
		e.AddVisionConstraintFlush([]int{0, 1, 2, 3})
		est = e.ComputeEstimate()
		if est == nil {
			t.Fatalf("iteration %d: solve returned nil", i)
		}
	}

	// The tangential component follows vision; the normal shift is the
	// flush constraint's to resolve and must not leak in.
	if math.Abs(est.Position[1]-0.02) > 1e-3 {
		t.Errorf("tangential position = %v, want 0.02", est.Position[1])
	}
	if math.Abs(est.Position[0]-0.03) > 1e-4 {
		t.Errorf("normal position = %v, want unchanged centroid 0.03", est.Position[0])
	}
	if math.Abs(est.Heading) > 1e-3 {
		t.Errorf("heading = %v, want 0", est.Heading)
	}
}

func TestComputeEstimate_GravityTermsFromTorque(t *testing.T) {
	e := newBoxEstimator(t)

	// Pin the object in place; the staged wrench applies a known moment
	// about the pivot (first contact vertex).
	pose := pbal.PoseSample{N: 0.06, T: 0}
	wrench := pbal.WrenchSample{Torque: r3.Vector{Z: 0.5}}

	e.AdvanceTime()
	e.AddPoseObservation(pose)
	e.AddWrenchObservation(wrench)
	e.AddNoContactKinematicConstraint([2]float64{0.03, 0}, 0, 0)
	est := e.ComputeEstimate()
	if est == nil {
		t.Fatal("solve returned nil")
	}

	// Heading stays 0, so the regressor is (1, 0): the cos term absorbs
	// the full moment about the pivot.
	pivot := e.ActiveContactVertices()[0]
	hand := r3.Vector{X: pose.N, Y: pose.T}
	pv := r3.Vector{X: est.VertexN[pivot], Y: est.VertexT[pivot]}
	rel := hand.Sub(pv)
	wantTau := wrench.Torque.Z + rel.X*wrench.Force.Y - rel.Y*wrench.Force.X

	if math.Abs(est.MglCosTheta[pivot]-wantTau) > 1e-3 {
		t.Errorf("MglCosTheta[%d] = %v, want %v", pivot, est.MglCosTheta[pivot], wantTau)
	}
	if math.Abs(est.MglSinTheta[pivot]) > 1e-6 {
		t.Errorf("MglSinTheta[%d] = %v, want 0", pivot, est.MglSinTheta[pivot])
	}
}
