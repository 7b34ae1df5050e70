package transport

import (
	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
)

// topicKind identifies which subscribed topic a message belongs to.
type topicKind int

const (
	topicPose topicKind = iota
	topicWorldWrench
	topicEEWrench
	topicTorqueBoundary
	topicSliding
	topicFriction
	topicVision
)

// topicState retains the latest payload per topic plus has-new flags.
// Both transport modes funnel decoded messages through here; the loop
// reads a snapshot once per tick.
type topicState struct {
	pose      pbal.PoseSample
	poseValid bool

	worldWrench      pbal.WrenchSample
	worldWrenchValid bool
	eeWrench         pbal.WrenchSample
	eeWrenchValid    bool

	tbTest  bool
	tbFlag  int
	tbValid bool

	sliding      pbal.SlidingState
	slidingValid bool

	friction pbal.FrictionPolytope

	vision    [][2]float64
	visionNew bool
}

// apply decodes one raw message into the state. Undecodable payloads are
// reported and otherwise dropped; a corrupt message must not stall the loop.
func (s *topicState) apply(kind topicKind, payload []byte) error {
	switch kind {
	case topicPose:
		p, err := decodePose(payload)
		if err != nil {
			return err
		}
		s.pose = p
		s.poseValid = true

	case topicWorldWrench:
		w, err := decodeWrench(payload)
		if err != nil {
			return err
		}
		s.worldWrench = w
		s.worldWrenchValid = true

	case topicEEWrench:
		w, err := decodeWrench(payload)
		if err != nil {
			return err
		}
		s.eeWrench = w
		s.eeWrenchValid = true

	case topicTorqueBoundary:
		test, flag, err := decodeTorqueBoundary(payload)
		if err != nil {
			return err
		}
		s.tbTest, s.tbFlag, s.tbValid = test, flag, true

	case topicSliding:
		st, err := decodeSliding(payload)
		if err != nil {
			return err
		}
		s.sliding = st
		s.slidingValid = true

	case topicFriction:
		// Replaced wholesale on each update, no staleness tracking.
		f, err := decodeFriction(payload)
		if err != nil {
			return err
		}
		s.friction = f

	case topicVision:
		v, err := decodeVision(payload)
		if err != nil {
			return err
		}
		s.vision = v
		s.visionNew = true
	}
	return nil
}

// snapshot builds a CycleInput from the current state and clears the
// per-cycle has-new flags.
func (s *topicState) snapshot(in *pbal.CycleInput) {
	in.Pose = s.pose
	in.PoseValid = s.poseValid
	in.WorldWrench = s.worldWrench
	in.WorldWrenchValid = s.worldWrenchValid
	in.EEWrench = s.eeWrench
	in.EEWrenchValid = s.eeWrenchValid
	in.TorqueBoundaryTest = s.tbTest
	in.TorqueBoundaryFlag = s.tbFlag
	in.TorqueBoundaryValid = s.tbValid
	in.Sliding = s.sliding
	in.SlidingValid = s.slidingValid
	in.Friction = s.friction
	in.VisionNew = s.visionNew
	in.Vision = s.vision

	s.visionNew = false
}
