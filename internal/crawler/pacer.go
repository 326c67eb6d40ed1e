package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer spaces requests out with randomized pauses.
type Pacer struct {
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// PacerOption configures a Pacer.
type PacerOption func(*Pacer)

// WithPacerRand sets the random source. Tests pass a seeded one.
func WithPacerRand(rng *rand.Rand) PacerOption {
	return func(p *Pacer) {
		p.rng = rng
	}
}

// WithSleepFunc replaces the sleep, e.g. with a recorder that returns at once.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) PacerOption {
	return func(p *Pacer) {
		p.sleep = fn
	}
}

// NewPacer returns a pacer that really sleeps.
func NewPacer(opts ...PacerOption) *Pacer {
	p := &Pacer{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // pacing does not need a CSPRNG
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait pauses for d.
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// WaitSeconds pauses for a whole number of seconds drawn from [minSec, maxSec].
func (p *Pacer) WaitSeconds(ctx context.Context, minSec, maxSec int) error {
	return p.sleep(ctx, p.Seconds(minSec, maxSec))
}

// Seconds draws a whole number of seconds from [minSec, maxSec].
func (p *Pacer) Seconds(minSec, maxSec int) time.Duration {
	if maxSec <= minSec {
		return time.Duration(minSec) * time.Second
	}
	return time.Duration(minSec+p.rng.IntN(maxSec-minSec+1)) * time.Second
}

// Coin returns true with probability one half.
func (p *Pacer) Coin() bool {
	return p.rng.IntN(2) == 1
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
