package delivery

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Default backoff values for retry scans.
const (
	DefaultInitialInterval   = 15 * time.Second
	DefaultMaxInterval       = 10 * time.Minute
	DefaultBackoffMultiplier = 1.5
	DefaultJitterFactor      = 0.3
)

// Backoff computes growing intervals between idle scans.
type Backoff struct {
	// Base is the interval after a scan that found work.
	Base time.Duration
	// Max caps the interval.
	Max time.Duration
	// Multiplier is the factor by which the interval grows per idle scan.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) added to intervals
	// so peers that restart together do not scan in lockstep. Zero means
	// DefaultJitterFactor, negative disables jitter.
	Jitter float64
}

// DefaultBackoff returns the default backoff configuration.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       DefaultInitialInterval,
		Max:        DefaultMaxInterval,
		Multiplier: DefaultBackoffMultiplier,
		Jitter:     DefaultJitterFactor,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Base <= 0 {
		b.Base = d.Base
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	switch {
	case b.Jitter == 0:
		b.Jitter = d.Jitter
	case b.Jitter < 0:
		b.Jitter = 0
	}
	return b
}

// Delay returns the interval after the given number of consecutive idle scans.
func (b Backoff) Delay(idle int) time.Duration {
	delay := float64(b.Base) * math.Pow(b.Multiplier, float64(idle))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		jitterAmount := delay * b.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait sleeps for Delay(idle) or until ctx is done.
func (b Backoff) Wait(ctx context.Context, idle int) error {
	timer := time.NewTimer(b.Delay(idle))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
