package heading

import (
	"math"
	"time"
)

const (
	DefaultLerpFactor        = 0.05
	DefaultDeadZone          = 0.3
	DefaultMinUpdateInterval = 50 * time.Millisecond
)

// Step moves current a fraction of the way along the shorter arc towards
// target. Differences inside the dead zone leave current unchanged.
func Step(target, current, lerp, deadZone float64) float64 {
	diff := Diff(target, current)
	if math.Abs(diff) <= deadZone {
		return current
	}
	return Normalize(current + diff*lerp)
}

// Animator tracks the displayed heading across animation frames. Not safe
// for concurrent use; it belongs to the frame loop.
type Animator struct {
	Lerp              float64
	DeadZone          float64
	MinUpdateInterval time.Duration

	current   float64
	started   bool
	published float64
	lastPub   time.Time
}

func NewAnimator() *Animator {
	return &Animator{
		Lerp:              DefaultLerpFactor,
		DeadZone:          DefaultDeadZone,
		MinUpdateInterval: DefaultMinUpdateInterval,
	}
}

// Tick advances the displayed heading one frame towards target. The
// returned heading always reflects the frame; publish is true when the
// change should be shown, which happens at most once per
// MinUpdateInterval and only when the value moved since the last
// publication. The first tick snaps to target.
func (a *Animator) Tick(target float64, now time.Time) (displayed float64, publish bool) {
	if !a.started {
		a.current = Normalize(target)
		a.started = true
		a.published = a.current
		a.lastPub = now
		return a.current, true
	}

	a.current = Step(target, a.current, a.Lerp, a.DeadZone)

	if a.current == a.published || now.Sub(a.lastPub) < a.MinUpdateInterval {
		return a.current, false
	}
	a.published = a.current
	a.lastPub = now
	return a.current, true
}

// Displayed returns the current displayed heading; ok is false before the
// first tick.
func (a *Animator) Displayed() (deg float64, ok bool) {
	return a.current, a.started
}

// Reset forgets the displayed heading so the next tick snaps again.
func (a *Animator) Reset() {
	a.current = 0
	a.started = false
	a.published = 0
	a.lastPub = time.Time{}
}
