package pbal

import (
	"context"
	"errors"

	"go.viam.com/rdk/logging"
)

// WaitForNecessaryData steps the transport until the hand pose, both
// wrench frames and the torque-boundary test have all delivered at least
// one sample, then returns the first complete cycle input. The friction
// polytope and vision stream are optional at startup: the classifier
// runs fail-open without the former and the cascade degrades gracefully
// without the latter.
func WaitForNecessaryData(ctx context.Context, transport Transport, logger logging.Logger) (*CycleInput, error) {
	logger.Info("Waiting for necessary topic data")

	for {
		in, err := transport.Step(ctx)
		if err != nil {
			if errors.Is(err, ErrShutdown) {
				return nil, ErrWarmupAborted
			}
			return nil, err
		}

		if in.PoseValid && in.WorldWrenchValid && in.EEWrenchValid && in.TorqueBoundaryValid {
			logger.Info("All necessary topics live")
			return in, nil
		}
	}
}
