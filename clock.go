package trafficlight

import (
	"math/rand/v2"
	"time"
)

// Clock is the time source of the toggling loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// IntervalFunc draws the duration of the next cycle.
type IntervalFunc func() time.Duration

// UniformInterval draws whole milliseconds uniformly from [shortest, longest].
func UniformInterval(shortest, longest time.Duration) IntervalFunc {
	lo, hi := shortest.Milliseconds(), longest.Milliseconds()
	if hi < lo {
		lo, hi = hi, lo
	}
	return func() time.Duration {
		return time.Duration(lo+rand.Int64N(hi-lo+1)) * time.Millisecond
	}
}

func FixedInterval(d time.Duration) IntervalFunc {
	return func() time.Duration { return d }
}
