package pbal

import "errors"

var (
	// ErrNoShapePrior is returned when the node is started without an
	// object shape prior.
	ErrNoShapePrior = errors.New("no object shape prior")

	// ErrDegenerateShapePrior is returned when the shape prior has fewer
	// than three vertices.
	ErrDegenerateShapePrior = errors.New("shape prior has fewer than three vertices")

	// ErrWarmupAborted is returned when the transport shuts down before
	// all necessary topics have delivered data.
	ErrWarmupAborted = errors.New("transport shut down during warmup")
)
