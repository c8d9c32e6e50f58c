// Package pacing issues the randomized inter-request delays that keep the
// scrape cadence inside the human-plausible band. The pipeline calls it
// before every navigation.
package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Config bounds the delay draw.
type Config struct {
	// Min/Max bound a single draw. Defaults: 1s / 3s.
	Min time.Duration
	Max time.Duration
	// Cap bounds the widened delay on repeated retries. Default: 30s.
	Cap time.Duration
}

func (c *Config) defaults() {
	if c.Min <= 0 {
		c.Min = time.Second
	}
	if c.Max <= c.Min {
		c.Max = 3 * time.Second
	}
	if c.Cap <= 0 {
		c.Cap = 30 * time.Second
	}
}

// Pacer draws randomized delays from an injected source so tests can pin
// the sequence.
type Pacer struct {
	cfg Config
	rnd *rand.Rand
}

// New creates a Pacer. A nil rnd gets a time-seeded source.
func New(cfg Config, rnd *rand.Rand) *Pacer {
	cfg.defaults()
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Pacer{cfg: cfg, rnd: rnd}
}

// Next returns a delay drawn uniformly from [Min, Max], doubled per retry
// and capped. retry 0 is the first attempt.
func (p *Pacer) Next(retry int) time.Duration {
	span := p.cfg.Max - p.cfg.Min
	d := p.cfg.Min + time.Duration(p.rnd.Int64N(int64(span)+1))
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= p.cfg.Cap {
			return p.cfg.Cap
		}
	}
	return d
}

// Wait sleeps for Next(retry), returning early with the context error on
// cancellation.
func (p *Pacer) Wait(ctx context.Context, retry int) error {
	t := time.NewTimer(p.Next(retry))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
