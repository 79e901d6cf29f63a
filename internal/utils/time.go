package utils

import (
	"math"
	"math/rand"
	"time"
)

// RandomDuration picks a duration uniformly from [min, max]. It is the
// scheduling primitive behind both the generator delay and order deadlines.
func RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// Round2 rounds a currency amount to two decimal places.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}
