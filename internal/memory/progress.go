package memory

import "math/rand"

// NextLength advances a group length after a completed round. Below max the
// length grows by one; at max it re-rolls uniformly across [min, max].
func NextLength(r *rand.Rand, current, max, min int) int {
	if current < max {
		return current + 1
	}
	if max <= min {
		return min
	}
	return min + r.Intn(max-min+1)
}
