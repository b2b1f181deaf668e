package scheduler

import (
	"math"
	"time"
)

// computePriority produces the canonical priority encoding: lower sample
// numbers dominate, ties broken by earlier submission time. Grounded 1:1 on
// atc.py's queue_put priority computation (p1 = time/10^ceil(log10(time)),
// priority = -sample_number - p1).
func computePriority(sampleNumber int, now time.Time) float64 {
	unixSeconds := float64(now.UnixNano()) / 1e9
	if unixSeconds <= 0 {
		unixSeconds = 1
	}
	magnitude := math.Pow(10, math.Ceil(math.Log10(unixSeconds)))
	fractional := unixSeconds / magnitude
	return -float64(sampleNumber) - fractional
}
