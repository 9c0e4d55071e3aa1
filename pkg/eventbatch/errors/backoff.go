package errors

import (
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before re-attempting a failed batch.
type Backoff struct {
	// Initial is the delay after the first failure.
	Initial time.Duration

	// Max caps the delay.
	Max time.Duration

	// Factor is the multiplier applied after each consecutive failure.
	Factor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64
}

// DefaultBackoff is the standard re-arm backoff.
var DefaultBackoff = Backoff{
	Initial: 1 * time.Second,
	Max:     30 * time.Second,
	Factor:  2.0,
	Jitter:  0.1,
}

// Delay returns the delay for the given number of consecutive failures
// (1 for the first failure). Zero fields fall back to DefaultBackoff.
func (b Backoff) Delay(failures int) time.Duration {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoff.Factor
	}

	d := b.Initial
	for i := 1; i < failures; i++ {
		d = time.Duration(float64(d) * b.Factor)
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	return applyJitter(d, b.Jitter)
}

// applyJitter returns base +/- (base * jitter * random).
func applyJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	jitterAmount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + jitterAmount)
}
