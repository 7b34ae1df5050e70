package pbal

import (
	"context"
	"errors"
	"time"
)

// ErrShutdown is returned by Transport.Step when the session is over:
// broker connection lost in live mode, recorded data exhausted in replay
// mode. The loop terminates cleanly on it.
var ErrShutdown = errors.New("transport shutdown")

// CycleInput is the transport layer's per-cycle delivery: the latest
// payload for every subscribed topic plus has-new/validity flags. Values
// are owned by the cycle and must not be retained past it.
type CycleInput struct {
	Now time.Time

	Pose      PoseSample
	PoseValid bool

	// WorldWrench is measured in the world manipulation frame, EEWrench
	// in the end-effector (contact) frame.
	WorldWrench      WrenchSample
	WorldWrenchValid bool
	EEWrench         WrenchSample
	EEWrenchValid    bool

	TorqueBoundaryTest  bool
	TorqueBoundaryFlag  int
	TorqueBoundaryValid bool

	Sliding      SlidingState
	SlidingValid bool

	// Friction is the latest polytope from the friction-cone service,
	// used as current with no staleness check.
	Friction FrictionPolytope

	// VisionNew marks a polygon vision estimate that arrived since the
	// previous cycle; Vision is its vertex set in the vision frame.
	VisionNew bool
	Vision    [][2]float64
}

// Transport delivers topic data once per control tick and publishes the
// loop's output snapshots. Step is the loop's sole blocking operation.
type Transport interface {
	// Step blocks until the next control tick (live) or the next batch of
	// recorded data (replay) and returns the cycle's input. Returns
	// ErrShutdown when the session is over.
	Step(ctx context.Context) (*CycleInput, error)

	// PublishPivotFrame publishes the (n, t, z) pivot point.
	PublishPivotFrame(p [3]float64) error

	// PublishContactEstimate publishes the annotated polygon snapshot.
	PublishContactEstimate(ce ContactEstimate) error
}
