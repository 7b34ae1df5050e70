// Package metrics exposes the loop's prometheus instrumentation. The
// estimation core only writes these; nothing in the decision path ever
// reads them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoopCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pbal",
		Subsystem: "loop",
		Name:      "cycles_total",
		Help:      "Total arbitration cycles executed",
	})

	ModeSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbal",
		Subsystem: "loop",
		Name:      "mode_total",
		Help:      "Cycles per selected contact mode",
	}, []string{"mode"})

	VisionFused = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pbal",
		Subsystem: "loop",
		Name:      "vision_fused_total",
		Help:      "Cycles in which a vision constraint was fused",
	})

	SnapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pbal",
		Subsystem: "loop",
		Name:      "snapshots_published_total",
		Help:      "Contact estimate snapshots published",
	})

	FrictionFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pbal",
		Subsystem: "loop",
		Name:      "friction_failopen_total",
		Help:      "Cycles classified with a missing friction boundary",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pbal",
		Subsystem: "loop",
		Name:      "cycle_duration_seconds",
		Help:      "Per-cycle processing duration excluding the tick wait",
		Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
)
