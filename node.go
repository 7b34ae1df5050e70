package pbal

import (
	"go.viam.com/rdk/logging"
)

// Node owns the contact-mode estimation loop: the transport layer, the
// two collaborators, the arbitrator and the small amount of state that
// survives across cycles.
type Node struct {
	logger logging.Logger
	cfg    Config

	transport Transport
	est       Estimator
	reasoner  Reasoner

	arbitrator *ModeArbitrator
	hysteresis *HysteresisTracker
	staleness  *StalenessGate

	// The only scalars crossing cycle boundaries besides the tracker and
	// gate state above.
	prevLineContact bool
	lastVision      [][2]float64
	lastVisionHyp   VisionHypothesisSet

	// frictionFailOpen remembers whether the previous cycle was running
	// fail-open so the warning fires on transitions, not every tick.
	frictionFailOpen bool
}

// NewNode wires a loop node from its collaborators. The estimator and
// reasoner must already be seeded with the object shape prior and the
// initial hand pose.
func NewNode(logger logging.Logger, cfg Config, transport Transport, est Estimator, reasoner Reasoner) *Node {
	return &Node{
		logger:     logger,
		cfg:        cfg,
		transport:  transport,
		est:        est,
		reasoner:   reasoner,
		arbitrator: NewModeArbitrator(cfg, est, reasoner),
		hysteresis: NewHysteresisTracker(cfg.CornerContactPatience),
		staleness:  NewStalenessGate(cfg.VisionFreshWindow, cfg.VisionNoContactWindow),

		// The loop starts with the object grasped flush against the hand.
		prevLineContact: true,
	}
}
