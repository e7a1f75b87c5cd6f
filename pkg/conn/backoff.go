package conn

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays per spec §4.1: truncated exponential
// with jitter, reset to the minimum after a connection survives a healthy
// window. It is not safe for concurrent use; the run loop owns it.
type Backoff struct {
	Min           time.Duration
	Max           time.Duration
	Factor        float64
	Jitter        float64 // fraction of the computed delay applied as +/- jitter
	HealthyWindow time.Duration

	current time.Duration
}

// DefaultBackoff returns the spec's default parameters: min 1s, max 30s,
// factor 1.3, jitter +/-50%, healthy window 30s.
func DefaultBackoff() *Backoff {
	return &Backoff{
		Min:           time.Second,
		Max:           30 * time.Second,
		Factor:        1.3,
		Jitter:        0.5,
		HealthyWindow: 30 * time.Second,
	}
}

// Next returns the delay before the next reconnect attempt and advances
// the internal exponent for the following call.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Min
	}
	delay := b.current
	b.current = time.Duration(float64(b.current) * b.Factor)
	if b.current > b.Max {
		b.current = b.Max
	}
	return jitter(delay, b.Jitter)
}

// Reset collapses the backoff back to its minimum, called after a
// connection stays up for at least HealthyWindow.
func (b *Backoff) Reset() {
	b.current = 0
}

// jitter applies a uniform +/-frac perturbation to d.
func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * frac
	return time.Duration(float64(d) * (1 + delta))
}
