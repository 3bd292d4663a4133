package heading

import (
	"math"
	"sync"
)

// DefaultWindow is the number of samples averaged by an Aggregator.
const DefaultWindow = 25

// Resultants shorter than this are treated as cancelled out.
const cancelEpsilon = 1e-9

// Aggregator keeps the most recent compass samples in a fixed ring and
// reports their circular mean. It is safe for concurrent use.
type Aggregator struct {
	mut     sync.Mutex
	samples []float64 // ring, len == capacity
	next    int
	count   int
	mean    float64
}

// NewAggregator returns an Aggregator averaging over the last window
// samples. A window below one means DefaultWindow.
func NewAggregator(window int) *Aggregator {
	if window < 1 {
		window = DefaultWindow
	}
	return &Aggregator{samples: make([]float64, window)}
}

// Push adds a sample and returns the new smoothed heading. Non-finite
// samples are dropped without touching the window; ok is then false and
// the previous mean is returned.
func (a *Aggregator) Push(deg float64) (mean float64, ok bool) {
	a.mut.Lock()
	defer a.mut.Unlock()

	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return a.mean, false
	}

	a.samples[a.next] = deg
	a.next = (a.next + 1) % len(a.samples)
	if a.count < len(a.samples) {
		a.count++
	}

	var sinSum, cosSum float64
	for i := 0; i < a.count; i++ {
		rad := a.samples[i] * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}
	if math.Hypot(sinSum, cosSum) < cancelEpsilon {
		// Opposing samples have no direction; report north like atan2(0, 0).
		a.mean = 0
		return a.mean, true
	}
	a.mean = Normalize(math.Atan2(sinSum, cosSum) * 180 / math.Pi)
	return a.mean, true
}

// Mean returns the current smoothed heading; ok is false until the first
// sample has been accepted.
func (a *Aggregator) Mean() (mean float64, ok bool) {
	a.mut.Lock()
	defer a.mut.Unlock()
	return a.mean, a.count > 0
}

func (a *Aggregator) Len() int {
	a.mut.Lock()
	defer a.mut.Unlock()
	return a.count
}

func (a *Aggregator) Cap() int {
	return len(a.samples)
}

// Reset empties the window.
func (a *Aggregator) Reset() {
	a.mut.Lock()
	defer a.mut.Unlock()
	for i := range a.samples {
		a.samples[i] = 0
	}
	a.next = 0
	a.count = 0
	a.mean = 0
}
