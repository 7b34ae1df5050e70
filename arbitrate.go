package pbal

// NoFace marks the absence of an active hand-contact face.
const NoFace = -1

// ArbitrationContext aggregates everything one cycle's arbitration reads.
// It is built fresh each cycle and discarded afterwards; the only state
// crossing cycles does so through the hysteresis tracker, the staleness
// gate and the PrevStepWasLineContact flag threaded through here.
type ArbitrationContext struct {
	Pose        PoseSample
	WorldWrench WrenchSample
	EEWrench    WrenchSample
	Sliding     SlidingState

	// TorqueBoundary is true when the torque-boundary test has been
	// received and reports true.
	TorqueBoundary bool

	WallFlag      WallFlag
	WallContactOn bool

	// Debounced corner-contact verdict and its latched payload.
	CornerFeasible bool
	Corner         CornerContact

	// LineToNoContact is the reasoner's line-to-no-contact transition check.
	LineToNoContact bool

	// VisionNew marks a vision message that arrived this cycle;
	// VisionFresh and VisionLongStale are the staleness gate's verdicts.
	// Vision and VisionHypotheses are the latest received polygon and its
	// hypothesis set, possibly carried over from an earlier cycle.
	VisionNew        bool
	VisionFresh      bool
	VisionLongStale  bool
	Vision           [][2]float64
	VisionHypotheses VisionHypothesisSet

	// PrevStepWasLineContact is read and rewritten by the cascade.
	PrevStepWasLineContact bool
}

// ArbitrationResult reports what the cascade decided for one cycle.
type ArbitrationResult struct {
	Hypothesis     ContactHypothesis
	CanRunEstimate bool
	VisionFused    bool
}

// modeBranch is one guard/action pair of the cascade. The action returns
// false when the branch was selected but aborted on an inner check
// (ambiguous hypotheses); the cycle then idles rather than trying a
// later branch.
type modeBranch struct {
	guard func(*ArbitrationContext) bool
	run   func(*ArbitrationContext, *ArbitrationResult) bool
}

// ModeArbitrator evaluates the contact-mode cascade once per cycle and
// drives the estimator calls for whichever branch fires. Branch order is
// fixed: physical contact outranks vision, vision outranks the
// no-contact transition. At most one branch executes per cycle.
type ModeArbitrator struct {
	cfg      Config
	est      Estimator
	reasoner Reasoner

	branches []modeBranch
}

// NewModeArbitrator wires the cascade against the given collaborators.
func NewModeArbitrator(cfg Config, est Estimator, reasoner Reasoner) *ModeArbitrator {
	a := &ModeArbitrator{cfg: cfg, est: est, reasoner: reasoner}
	a.branches = []modeBranch{
		{a.guardCorner, a.runCorner},
		{a.guardFlush, a.runFlush},
		{a.guardVisionAssist, a.runVisionAssist},
		{a.guardNoContact, a.runNoContact},
	}
	return a
}

// Arbitrate selects and executes at most one branch. When no guard
// matches, or the selected branch aborts, the result is ModeIdle with no
// estimator mutation beyond what the branch staged before aborting
// (branches stage nothing before their inner checks).
func (a *ModeArbitrator) Arbitrate(c *ArbitrationContext) ArbitrationResult {
	var res ArbitrationResult
	for _, br := range a.branches {
		if !br.guard(c) {
			continue
		}
		if !br.run(c, &res) {
			return ArbitrationResult{Hypothesis: ContactHypothesis{Mode: ModeIdle, Face: NoFace}}
		}
		res.CanRunEstimate = true
		return res
	}
	return ArbitrationResult{Hypothesis: ContactHypothesis{Mode: ModeIdle, Face: NoFace}}
}

func (a *ModeArbitrator) guardCorner(c *ArbitrationContext) bool {
	return c.TorqueBoundary && c.CornerFeasible && c.EEWrench.Normal() > a.cfg.NormalForceThreshold
}

func (a *ModeArbitrator) runCorner(c *ArbitrationContext, res *ArbitrationResult) bool {
	c.PrevStepWasLineContact = false

	a.est.AdvanceTime()
	a.est.AddPoseObservation(c.Pose)
	a.est.AddWrenchObservation(c.WorldWrench)
	a.est.AddSlidingState(c.Sliding)
	a.est.SetWallContact(c.WallContactOn)

	a.est.AddCornerKinematicConstraint(c.Corner)
	a.est.SetActiveContactFace(NoFace)

	if c.VisionFresh {
		kinematic := a.reasoner.HypothesesNoObjectMotion()
		if idx := a.reasoner.ChooseVisionHypothesis(c.VisionHypotheses, kinematic); idx >= 0 {
			a.est.AddVisionObservation(c.Vision)
			a.est.AddVisionConstraintCorner(c.VisionHypotheses.ObjToVisionMaps[idx])
			res.VisionFused = true
		}
	}

	res.Hypothesis = ContactHypothesis{Mode: ModeCorner, Corner: c.Corner, Face: NoFace}
	return true
}

func (a *ModeArbitrator) guardFlush(c *ArbitrationContext) bool {
	return c.TorqueBoundary && c.EEWrench.Normal() > a.cfg.NormalForceThreshold
}

func (a *ModeArbitrator) runFlush(c *ArbitrationContext, res *ArbitrationResult) bool {
	a.est.AdvanceTime()

	face, slip := a.reasoner.CurrentHandContactFace()
	a.est.SetActiveContactFace(face)

	// Cold-start re-sync of the slip parameter when entering flush
	// contact from any other mode.
	if !c.PrevStepWasLineContact {
		a.est.SetSlip(slip)
	}

	a.est.AddPoseObservation(c.Pose)
	a.est.AddWrenchObservation(c.WorldWrench)
	a.est.AddSlidingState(c.Sliding)
	a.est.SetWallContact(c.WallContactOn)

	a.est.AddFlushKinematicConstraint()

	if c.VisionFresh {
		kinematic := a.reasoner.HypothesesLineContact()
		if idx := a.reasoner.ChooseVisionHypothesis(c.VisionHypotheses, kinematic); idx >= 0 {
			a.est.AddVisionObservation(c.Vision)
			a.est.AddVisionConstraintFlush(c.VisionHypotheses.ObjToVisionMaps[idx])
			res.VisionFused = true
		}
	}

	c.PrevStepWasLineContact = true
	res.Hypothesis = ContactHypothesis{Mode: ModeFlushLine, Face: face}
	return true
}

func (a *ModeArbitrator) guardVisionAssist(c *ArbitrationContext) bool {
	return c.VisionNew
}

func (a *ModeArbitrator) runVisionAssist(c *ArbitrationContext, res *ArbitrationResult) bool {
	kinematic := a.reasoner.HypothesesNoObjectMotion()
	idx := a.reasoner.ChooseVisionHypothesis(c.VisionHypotheses, kinematic)
	if idx < 0 {
		return false
	}

	c.PrevStepWasLineContact = false

	a.est.AdvanceTime()
	a.est.SetActiveContactFace(NoFace)
	a.est.AddPoseObservation(c.Pose)
	a.est.AddWrenchObservation(c.WorldWrench)
	a.est.AddSlidingState(c.Sliding)
	a.est.SetWallContact(c.WallContactOn)

	// The unconstrained pose is ill-conditioned once the hand lets go;
	// anchor it to the previous state before fusing vision.
	if a.est.HasRunOnce() {
		a.est.AddNoContactKinematicConstraintVisionAssisted()
	}

	a.est.AddVisionObservation(c.Vision)
	a.est.AddVisionConstraintCorner(c.VisionHypotheses.ObjToVisionMaps[idx])
	res.VisionFused = true

	res.Hypothesis = ContactHypothesis{Mode: ModeVisionAssist, Face: NoFace}
	return true
}

func (a *ModeArbitrator) guardNoContact(c *ArbitrationContext) bool {
	return c.LineToNoContact && c.VisionLongStale
}

func (a *ModeArbitrator) runNoContact(c *ArbitrationContext, res *ArbitrationResult) bool {
	kinematic := a.reasoner.HypothesesNoContact()

	// An ambiguous multi-hypothesis result blocks the transition; keeping
	// the last valid mode beats guessing where the object landed.
	if kinematic.Len() != 1 {
		return false
	}

	c.PrevStepWasLineContact = false

	a.est.AdvanceTime()
	a.est.SetActiveContactFace(NoFace)
	a.est.AddPoseObservation(c.Pose)
	a.est.AddWrenchObservation(c.WorldWrench)
	a.est.AddSlidingState(c.Sliding)
	// Wall state is intentionally not updated in this branch: the object
	// has left the hand and the wall classifier's wrench is meaningless.

	a.est.AddNoContactKinematicConstraint(
		kinematic.Positions[0], kinematic.Headings[0], kinematic.GroundFaces[0])

	res.Hypothesis = ContactHypothesis{Mode: ModeNoContact, Face: NoFace}
	return true
}
