package pbal

import "time"

// Config holds the loop's decision thresholds. The defaults are the
// values the system was tuned with on the hardware; change them only with
// a force/torque recalibration.
type Config struct {
	// WallContactForceMargin is added to each friction inequality bound
	// before a wall is declared engaged.
	WallContactForceMargin float64

	// NormalForceThreshold is the minimum contact-frame normal force for
	// either physical-contact branch to fire.
	NormalForceThreshold float64

	// CornerContactPatience is how many consecutive infeasible reports
	// are tolerated before corner contact is declared over.
	CornerContactPatience int

	// VisionFreshWindow is the maximum vision-message age for fusing
	// vision into the current cycle.
	VisionFreshWindow time.Duration

	// VisionNoContactWindow is the minimum vision-message age before the
	// no-contact transition is allowed.
	VisionNoContactWindow time.Duration

	// HandFrontCenterZ is the fixed world height assigned to published
	// vertex positions.
	HandFrontCenterZ float64
}

// DefaultConfig returns the tuned thresholds.
func DefaultConfig() Config {
	return Config{
		WallContactForceMargin: 3.0,
		NormalForceThreshold:   3.0,
		CornerContactPatience:  15,
		VisionFreshWindow:      200 * time.Millisecond,
		VisionNoContactWindow:  time.Second,
		HandFrontCenterZ:       0.041,
	}
}
