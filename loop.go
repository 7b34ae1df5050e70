package pbal

import (
	"context"
	"errors"
	"time"

	"github.com/RobotResearchRepos/mcubelab-pbal/internal/metrics"
)

// Run executes the fixed-rate estimation loop until the transport layer
// reports shutdown. A cycle always runs to completion once started; the
// only suspension point is the end-of-cycle wait inside Transport.Step.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info("Starting contact-mode estimation loop")

	for {
		in, err := n.transport.Step(ctx)
		if err != nil {
			if errors.Is(err, ErrShutdown) {
				n.logger.Info("Transport shutdown, stopping loop")
				return nil
			}
			return err
		}

		n.runCycle(in)
	}
}

// runCycle performs one arbitration cycle: classify wall contact, update
// the reasoner and the gates, run the cascade, and publish the snapshot
// if a branch fired and the estimator produced output.
func (n *Node) runCycle(in *CycleInput) {
	start := time.Now()
	metrics.LoopCycles.Inc()

	// Wall classification is a pure function of the wrench and the
	// latest friction polytope.
	failOpen := !in.Friction.RightDefined() || !in.Friction.LeftDefined()
	if failOpen != n.frictionFailOpen {
		if failOpen {
			n.logger.Warn("Friction boundary missing for at least one wall, wall detection running fail-open")
		} else {
			n.logger.Info("Friction boundaries complete, wall detection fully constrained")
		}
		n.frictionFailOpen = failOpen
	}
	if failOpen {
		metrics.FrictionFailOpen.Inc()
	}
	wallFlag, wallOn := ClassifyWallContact(in.WorldWrench, in.Friction, n.cfg.WallContactForceMargin)

	n.reasoner.UpdatePoseAndWrench(in.Pose, in.WorldWrench, in.EEWrench)
	n.reasoner.UpdateTorqueBoundary(in.TorqueBoundaryValid && in.TorqueBoundaryTest, in.TorqueBoundaryFlag)
	lineToNoContact := n.reasoner.CheckLineToNoContact(n.prevLineContact)

	// Corner feasibility is only meaningful once a prior estimate exists.
	if n.est.HasRunOnce() {
		corner, feasible := n.reasoner.FeasibilityOfCornerContact()
		n.hysteresis.Observe(corner, feasible)
	}

	visionNew := in.VisionNew && len(in.Vision) > 0
	if visionNew {
		n.staleness.Accept(in.Now)
		n.lastVision = in.Vision
		n.reasoner.UpdateVision(in.Vision)
		n.lastVisionHyp = n.reasoner.HypothesesFromVision()
	}

	arbCtx := &ArbitrationContext{
		Pose:                   in.Pose,
		WorldWrench:            in.WorldWrench,
		EEWrench:               in.EEWrench,
		Sliding:                in.Sliding,
		TorqueBoundary:         in.TorqueBoundaryValid && in.TorqueBoundaryTest,
		WallFlag:               wallFlag,
		WallContactOn:          wallOn,
		CornerFeasible:         n.hysteresis.Feasible(),
		Corner:                 n.hysteresis.Corner(),
		LineToNoContact:        lineToNoContact,
		VisionNew:              visionNew,
		VisionFresh:            n.staleness.Fresh(in.Now),
		VisionLongStale:        n.staleness.LongStale(in.Now),
		Vision:                 n.lastVision,
		VisionHypotheses:       n.lastVisionHyp,
		PrevStepWasLineContact: n.prevLineContact,
	}

	res := n.arbitrator.Arbitrate(arbCtx)
	n.prevLineContact = arbCtx.PrevStepWasLineContact

	metrics.ModeSelected.WithLabelValues(res.Hypothesis.Mode.String()).Inc()
	if res.VisionFused {
		metrics.VisionFused.Inc()
	}

	if res.CanRunEstimate {
		n.publishEstimate(res, wallFlag)
	}

	metrics.CycleDuration.Observe(time.Since(start).Seconds())
}

// publishEstimate computes the fresh estimate and hands the annotated
// snapshot to the transport layer. A nil estimate skips publication
// entirely; consumers keep the previously published state.
func (n *Node) publishEstimate(res ArbitrationResult, wallFlag WallFlag) {
	est := n.est.ComputeEstimate()
	n.reasoner.UpdatePreviousEstimate(est)

	if est == nil {
		n.logger.Debug("Estimate unavailable this cycle, keeping last published snapshot")
		return
	}

	active := n.est.ActiveContactVertices()

	if p, ok := PivotPoint(est, n.cfg.HandFrontCenterZ, active); ok {
		if err := n.transport.PublishPivotFrame(p); err != nil {
			n.logger.Warnf("Failed to publish pivot frame: %v", err)
		}
	}

	ce := BuildContactEstimate(est, n.cfg.HandFrontCenterZ, active, res.Hypothesis, wallFlag)
	if err := n.transport.PublishContactEstimate(ce); err != nil {
		n.logger.Warnf("Failed to publish contact estimate: %v", err)
		return
	}
	metrics.SnapshotsPublished.Inc()
}
