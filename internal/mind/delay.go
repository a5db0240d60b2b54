package mind

import (
	"math/rand"
	"time"
)

// ReplyDelay draws a uniform delay in [min, max] so replies don't land
// robotically fast. Inverted bounds are swapped; negatives clamp to zero.
// rnd is injectable for tests; nil means math/rand.
func ReplyDelay(min, max time.Duration, rnd func() float64) time.Duration {
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	if max < min {
		min, max = max, min
	}
	if max == min {
		return min
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	return min + time.Duration(rnd()*float64(max-min))
}
