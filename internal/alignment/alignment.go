// Package alignment decides whether the displayed heading points at the
// target bearing.
package alignment

import (
	"math"

	"calmh.dev/qibla/internal/heading"
)

// DefaultTolerance is the half-width of the aligned band, in degrees.
const DefaultTolerance = 15

type State int

const (
	NotAligned State = iota
	Aligned
)

func (s State) String() string {
	switch s {
	case Aligned:
		return "aligned"
	case NotAligned:
		return "not-aligned"
	default:
		return "unknown"
	}
}

// Result is the outcome of one evaluation.
type Result struct {
	State       State
	JustEntered bool    // NotAligned -> Aligned on this evaluation
	Diff        float64 // target - displayed, in (-180,180]
}

// Transition computes the next state from the previous one. The heading
// is aligned when |diff| < enter; once aligned it stays so while
// |diff| < exit. An exit tolerance at or below enter gives a single
// threshold.
func Transition(prev State, target, displayed, enter, exit float64) Result {
	diff := heading.Diff(target, displayed)
	tol := enter
	if prev == Aligned && exit > enter {
		tol = exit
	}

	next := NotAligned
	if math.Abs(diff) < tol {
		next = Aligned
	}
	return Result{
		State:       next,
		JustEntered: prev == NotAligned && next == Aligned,
		Diff:        diff,
	}
}

// Detector remembers the previous state between evaluations. Not safe for
// concurrent use.
type Detector struct {
	Enter float64
	Exit  float64
	state State
}

func NewDetector() *Detector {
	return &Detector{Enter: DefaultTolerance, Exit: DefaultTolerance}
}

func (d *Detector) Evaluate(target, displayed float64) Result {
	res := Transition(d.state, target, displayed, d.Enter, d.Exit)
	d.state = res.State
	return res
}

func (d *Detector) State() State {
	return d.state
}

func (d *Detector) Reset() {
	d.state = NotAligned
}
