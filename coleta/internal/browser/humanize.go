package browser

import (
	"math/rand/v2"
	"time"
)

type gestureKind int

const (
	gestureMove gestureKind = iota
	gestureScroll
	gestureDwell
)

// gesture is one step of a browsing imitation: a mouse move to (x, y),
// a vertical scroll by y, or a plain pause.
type gesture struct {
	kind  gestureKind
	x, y  float64
	pause time.Duration
}

// planGestures produces a randomized move/scroll/dwell sequence for one
// page visit. Pure so the shape is testable; execution lives on Session.
func planGestures(r *rand.Rand, width, height int) []gesture {
	var plan []gesture

	moves := 2 + r.IntN(3)
	for i := 0; i < moves; i++ {
		plan = append(plan, gesture{
			kind:  gestureMove,
			x:     float64(50 + r.IntN(width-100)),
			y:     float64(50 + r.IntN(height-100)),
			pause: time.Duration(100+r.IntN(300)) * time.Millisecond,
		})
	}

	// Scroll down in uneven steps, like a person skimming results.
	scrolls := 2 + r.IntN(3)
	for i := 0; i < scrolls; i++ {
		plan = append(plan, gesture{
			kind:  gestureScroll,
			y:     float64(200 + r.IntN(500)),
			pause: time.Duration(300+r.IntN(700)) * time.Millisecond,
		})
	}

	plan = append(plan, gesture{
		kind:  gestureDwell,
		pause: time.Duration(500+r.IntN(1000)) * time.Millisecond,
	})
	return plan
}
