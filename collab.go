package pbal

// Estimator is the incremental pose-and-shape estimator the loop drives.
// Each cycle that a branch fires, the loop advances time, stages
// observations and exactly one kinematic constraint (plus optionally a
// vision constraint), then asks for a fresh estimate. How poses are
// parameterized internally is the implementation's business.
type Estimator interface {
	// AdvanceTime begins a new estimation step.
	AdvanceTime()

	AddPoseObservation(p PoseSample)
	AddWrenchObservation(w WrenchSample)
	AddSlidingState(s SlidingState)
	SetWallContact(on bool)

	// AddCornerKinematicConstraint pins the latched corner-contact vertex
	// to the hand contact line.
	AddCornerKinematicConstraint(c CornerContact)
	// AddFlushKinematicConstraint aligns the active contact face with the
	// hand contact line.
	AddFlushKinematicConstraint()
	// AddNoContactKinematicConstraintVisionAssisted keeps the state
	// well-conditioned when the hand is disengaged and vision is about to
	// be fused.
	AddNoContactKinematicConstraintVisionAssisted()
	// AddNoContactKinematicConstraint pins the object to a single
	// kinematic hypothesis when neither hand contact nor vision is
	// available.
	AddNoContactKinematicConstraint(position [2]float64, heading float64, groundFace int)

	AddVisionObservation(polygon [][2]float64)
	// AddVisionConstraintCorner / AddVisionConstraintFlush fuse the vision
	// polygon using the chosen hypothesis's object-to-vision vertex map,
	// under the corner-contact and flush-contact models respectively.
	AddVisionConstraintCorner(objToVision []int)
	AddVisionConstraintFlush(objToVision []int)

	// ComputeEstimate solves the staged system. Returns nil when the
	// system is underdetermined for this cycle; the caller skips
	// publication and keeps the last known-good snapshot.
	ComputeEstimate() *Estimate

	// HasRunOnce reports whether at least one estimate has been produced.
	HasRunOnce() bool
	// ActiveContactVertices returns the vertices currently believed to be
	// in ground contact, or nil when unknown.
	ActiveContactVertices() []int
	// ActiveContactFace returns the current hand-contact face index, or
	// -1 when there is none (corner contact has no face).
	ActiveContactFace() int
	// SetActiveContactFace sets or clears (-1) the hand-contact face.
	SetActiveContactFace(face int)
	// SetSlip re-seeds the hand-frame slip parameter when entering
	// flush-line contact from another mode.
	SetSlip(s float64)
}

// Reasoner is the contact/vision hypothesis reasoner consulted by the
// loop. It owns the geometric feasibility math; the loop only consumes
// its boolean verdicts and hypothesis sets.
type Reasoner interface {
	UpdatePoseAndWrench(pose PoseSample, worldWrench, eeWrench WrenchSample)
	UpdateTorqueBoundary(test bool, flag int)
	UpdatePreviousEstimate(e *Estimate)
	UpdateVision(polygon [][2]float64)

	// CheckLineToNoContact reports whether the transition from
	// hand-line/object-line contact to no contact should be considered.
	// prevFlushContact is the loop's record of whether the previous
	// cycle ran the flush-line branch; without that history there is no
	// line contact to transition out of.
	CheckLineToNoContact(prevFlushContact bool) bool

	// FeasibilityOfCornerContact evaluates the hand-line/object-corner
	// hypothesis against the previous estimate. ok is false when the
	// hypothesis is geometrically infeasible this cycle.
	FeasibilityOfCornerContact() (c CornerContact, ok bool)

	// CurrentHandContactFace returns the face currently judged flush with
	// the hand line and the slip parameter of the hand along it.
	CurrentHandContactFace() (face int, slip float64)

	HypothesesNoObjectMotion() HypothesisSet
	HypothesesLineContact() HypothesisSet
	HypothesesNoContact() HypothesisSet
	HypothesesFromVision() VisionHypothesisSet

	// ChooseVisionHypothesis selects the vision hypothesis consistent with
	// the kinematic set. Returns -1 when no hypothesis is unambiguously
	// chosen; that is a normal insufficient-evidence outcome, not an error.
	ChooseVisionHypothesis(vision VisionHypothesisSet, kinematic HypothesisSet) int
}
