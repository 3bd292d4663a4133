package heading

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	cases := []struct {
		target, current float64
		want            float64
	}{
		{10, 0, 10},
		{0, 10, -10},
		{350, 10, -20},
		{10, 350, 20},
		{180, 0, 180},
		{0, 180, 180},
		{359, 1, -2},
		{1, 359, 2},
		{90, 90, 0},
	}

	for _, c := range cases {
		got := Diff(c.target, c.current)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Diff(%f, %f) == %f, want %f", c.target, c.current, got, c.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-1, 359},
		{725, 5},
		{-360, 0},
		{-1e-15, 0},
	}

	for _, c := range cases {
		got := Normalize(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("Normalize(%f) == %f, want %f", c.in, got, c.want)
		}
		assert.True(t, got >= 0 && got < 360, "Normalize(%f) == %f out of range", c.in, got)
	}
}

func TestAggregatorRepeatedSample(t *testing.T) {
	for _, x := range []float64{0, 1, 45, 179.5, 180, 270, 359.9} {
		a := NewAggregator(DefaultWindow)
		for i := 0; i < 40; i++ {
			mean, ok := a.Push(x)
			require.True(t, ok)
			assert.InDelta(t, 0, Diff(x, mean), 1e-9, "sample %f push %d", x, i)
		}
	}
}

func TestAggregatorWraparound(t *testing.T) {
	a := NewAggregator(DefaultWindow)
	mean, _ := a.Push(359)
	assert.InDelta(t, 359, mean, 1e-9)
	mean, _ = a.Push(1)
	assert.InDelta(t, 0, Diff(0, mean), 1e-9)

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			mean, _ = a.Push(1)
		} else {
			mean, _ = a.Push(359)
		}
	}
	assert.Less(t, math.Abs(Diff(0, mean)), 0.1, "mean %f should be near 0", mean)
}

func TestAggregatorEvictsOldest(t *testing.T) {
	a := NewAggregator(3)
	a.Push(90)
	a.Push(90)
	a.Push(90)
	assert.Equal(t, 3, a.Len())

	a.Push(180)
	a.Push(180)
	mean, _ := a.Push(180)
	assert.Equal(t, 3, a.Len())
	assert.InDelta(t, 180, mean, 1e-9)
}

func TestAggregatorRejectsNonFinite(t *testing.T) {
	a := NewAggregator(DefaultWindow)
	_, ok := a.Mean()
	assert.False(t, ok)

	_, ok = a.Push(math.NaN())
	assert.False(t, ok)
	assert.Equal(t, 0, a.Len())

	a.Push(10)
	a.Push(20)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		mean, ok := a.Push(bad)
		assert.False(t, ok)
		assert.InDelta(t, 15, mean, 1e-9)
	}
	assert.Equal(t, 2, a.Len())
}

func TestAggregatorReset(t *testing.T) {
	a := NewAggregator(5)
	a.Push(100)
	a.Push(120)
	a.Reset()
	_, ok := a.Mean()
	assert.False(t, ok)
	assert.Equal(t, 0, a.Len())

	mean, _ := a.Push(300)
	assert.InDelta(t, 300, mean, 1e-9)
}

func TestAggregatorDefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, NewAggregator(0).Cap())
	assert.Equal(t, 7, NewAggregator(7).Cap())
}

func TestAggregatorOpposingSamplesCancel(t *testing.T) {
	cases := [][]float64{
		{0, 180},
		{90, 270},
		{45, 225, 135, 315},
	}

	for _, samples := range cases {
		a := NewAggregator(len(samples))
		var mean float64
		for _, s := range samples {
			var ok bool
			mean, ok = a.Push(s)
			require.True(t, ok)
		}
		assert.Equal(t, 0.0, mean, "%v", samples)
	}
}

func TestAggregatorConcurrentPush(t *testing.T) {
	const (
		writers = 8
		pushes  = 500
	)
	a := NewAggregator(DefaultWindow)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < pushes; i++ {
				mean, ok := a.Push(42)
				assert.True(t, ok)
				assert.InDelta(t, 42, mean, 1e-9)
				a.Mean()
				a.Len()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, DefaultWindow, a.Len())
	mean, ok := a.Mean()
	assert.True(t, ok)
	assert.InDelta(t, 42, mean, 1e-9)
}

func TestStepDeadZone(t *testing.T) {
	assert.Equal(t, 10.0, Step(10.25, 10, DefaultLerpFactor, DefaultDeadZone))
	assert.Equal(t, 10.0, Step(9.75, 10, DefaultLerpFactor, DefaultDeadZone))
	assert.Equal(t, 359.9, Step(0.1, 359.9, DefaultLerpFactor, DefaultDeadZone))
	assert.InDelta(t, 10.05, Step(11, 10, DefaultLerpFactor, DefaultDeadZone), 1e-9)
}

func TestStepTakesShorterArc(t *testing.T) {
	cases := []struct {
		target, current float64
	}{
		{10, 350},
		{350, 10},
		{0, 200},
		{179, 181},
	}

	for _, c := range cases {
		cur := c.current
		for i := 0; i < 500; i++ {
			prev := cur
			cur = Step(c.target, cur, DefaultLerpFactor, DefaultDeadZone)
			// Never crosses the opposite side of the dial.
			opposite := Normalize(c.target + 180)
			assert.Greater(t, math.Abs(Diff(opposite, cur)), math.Abs(Diff(opposite, c.current))-1e-9,
				"target %f from %f passed through %f", c.target, c.current, opposite)
			// Monotonic approach without overshoot.
			assert.LessOrEqual(t, math.Abs(Diff(c.target, cur)), math.Abs(Diff(c.target, prev))+1e-9)
			if d := Diff(c.target, cur); d != 0 {
				assert.Equal(t, math.Signbit(Diff(c.target, c.current)), math.Signbit(d), "overshot %f", c.target)
			}
		}
		assert.LessOrEqual(t, math.Abs(Diff(c.target, cur)), DefaultDeadZone, "target %f from %f", c.target, c.current)
	}
}

func TestStepWrapThroughNorth(t *testing.T) {
	// Target 350 from 10 goes 10 -> 9 -> ... -> 0 -> 359 -> 350.
	cur := 10.0
	crossed := false
	for i := 0; i < 200; i++ {
		cur = Step(350, cur, DefaultLerpFactor, DefaultDeadZone)
		if cur > 300 {
			crossed = true
		}
		assert.False(t, cur > 20 && cur < 340, "passed through %f", cur)
	}
	assert.True(t, crossed)
}

func TestAnimatorFirstTickSnaps(t *testing.T) {
	a := NewAnimator()
	_, ok := a.Displayed()
	assert.False(t, ok)

	now := time.Unix(1000, 0)
	deg, publish := a.Tick(123, now)
	assert.True(t, publish)
	assert.Equal(t, 123.0, deg)
}

func TestAnimatorRateLimit(t *testing.T) {
	a := NewAnimator()
	now := time.Unix(1000, 0)
	a.Tick(0, now)

	// 60 Hz frames chasing a far target: the value moves every frame but
	// publishes at most every 50ms.
	frame := time.Second / 60
	var published []time.Time
	var last float64
	for i := 1; i <= 60; i++ {
		now = now.Add(frame)
		deg, publish := a.Tick(90, now)
		assert.Greater(t, deg, last)
		last = deg
		if publish {
			published = append(published, now)
		}
	}
	require.NotEmpty(t, published)
	for i := 1; i < len(published); i++ {
		assert.GreaterOrEqual(t, published[i].Sub(published[i-1]), DefaultMinUpdateInterval)
	}
	assert.GreaterOrEqual(t, len(published), 15)
	assert.LessOrEqual(t, len(published), 20)
}

func TestAnimatorStillInDeadZone(t *testing.T) {
	a := NewAnimator()
	now := time.Unix(1000, 0)
	a.Tick(45, now)
	for i := 0; i < 10; i++ {
		now = now.Add(100 * time.Millisecond)
		deg, publish := a.Tick(45.2, now)
		assert.False(t, publish)
		assert.Equal(t, 45.0, deg)
	}
}

func TestAnimatorConverges(t *testing.T) {
	a := NewAnimator()
	now := time.Unix(1000, 0)
	a.Tick(350, now)
	var deg float64
	for i := 0; i < 300; i++ {
		now = now.Add(16 * time.Millisecond)
		deg, _ = a.Tick(10, now)
	}
	assert.LessOrEqual(t, math.Abs(Diff(10, deg)), DefaultDeadZone)
}

func TestAnimatorReset(t *testing.T) {
	a := NewAnimator()
	now := time.Unix(1000, 0)
	a.Tick(100, now)
	a.Reset()
	_, ok := a.Displayed()
	assert.False(t, ok)

	deg, publish := a.Tick(200, now.Add(time.Millisecond))
	assert.True(t, publish)
	assert.Equal(t, 200.0, deg)
}
