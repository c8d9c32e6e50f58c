package browser

import (
	"math/rand/v2"
)

// Fingerprint is the identity a session presents: user agent, viewport,
// timezone, and Accept-Language. Everything here must stay mutually
// consistent; a Windows UA with a Mac viewport is itself a signal.
type Fingerprint struct {
	UserAgent string
	Width     int
	Height    int
	Timezone  string
	Locale    string
}

// DefaultFingerprints are desktop Chrome and Firefox identities common in
// Brazilian traffic, paired with mainstream viewports.
func DefaultFingerprints() []Fingerprint {
	const (
		tz     = "America/Sao_Paulo"
		locale = "pt-BR,pt;q=0.9,en;q=0.8"
	)
	return []Fingerprint{
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Width:     1920, Height: 1080, Timezone: tz, Locale: locale,
		},
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			Width:     1366, Height: 768, Timezone: tz, Locale: locale,
		},
		{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Width:     1440, Height: 900, Timezone: tz, Locale: locale,
		},
		{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			Width:     1536, Height: 864, Timezone: tz, Locale: locale,
		},
		{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Width:     1920, Height: 1080, Timezone: tz, Locale: locale,
		},
	}
}

// rotator hands out fingerprints, keeping one identity stable for
// reuseLimit sessions before switching. Per-session switching is its own
// tell; sticking to one identity forever links every run together.
type rotator struct {
	pool       []Fingerprint
	r          *rand.Rand
	reuseLimit int

	current int
	uses    int
}

func newRotator(pool []Fingerprint, reuseLimit int, r *rand.Rand) *rotator {
	return &rotator{
		pool:       pool,
		r:          r,
		reuseLimit: reuseLimit,
		current:    r.IntN(len(pool)),
	}
}

func (ro *rotator) next() Fingerprint {
	if ro.uses >= ro.reuseLimit {
		ro.uses = 0
		if len(ro.pool) > 1 {
			// Pick a different identity than the one just retired.
			offset := 1 + ro.r.IntN(len(ro.pool)-1)
			ro.current = (ro.current + offset) % len(ro.pool)
		}
	}
	ro.uses++
	return ro.pool[ro.current]
}
