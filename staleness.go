package pbal

import "time"

// StalenessGate tracks the recency of the polygon vision stream. Two
// windows matter downstream: a short one gating whether vision may be
// fused this cycle, and a long one gating the transition into no-contact
// mode (one dropped frame must not abandon hand-contact tracking).
type StalenessGate struct {
	fresh     time.Duration
	longStale time.Duration

	lastAccepted time.Time
	everAccepted bool
}

// NewStalenessGate creates a gate with the given fresh and long-stale windows.
func NewStalenessGate(fresh, longStale time.Duration) *StalenessGate {
	return &StalenessGate{fresh: fresh, longStale: longStale}
}

// Accept records the arrival of a vision message at the given time.
func (g *StalenessGate) Accept(now time.Time) {
	g.lastAccepted = now
	g.everAccepted = true
}

// Age returns the elapsed time since the last accepted message.
func (g *StalenessGate) Age(now time.Time) time.Duration {
	if !g.everAccepted {
		return g.longStale + time.Second
	}
	return now.Sub(g.lastAccepted)
}

// Fresh reports whether vision is recent enough to fuse this cycle.
func (g *StalenessGate) Fresh(now time.Time) bool {
	return g.everAccepted && g.Age(now) <= g.fresh
}

// LongStale reports whether vision has been absent long enough to permit
// the no-contact transition.
func (g *StalenessGate) LongStale(now time.Time) bool {
	return g.Age(now) > g.longStale
}
