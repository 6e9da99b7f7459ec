package memory

import (
	"fmt"
	"math/rand"
)

// GenerateSequence draws length letters from the pool. A candidate matching
// the first or last accepted letter is rejected outright. A letter already in
// the sequence is kept only when the duplicate draw lands below chance, so
// chance 0 forbids repeats and chance 1 always allows them.
func GenerateSequence(r *rand.Rand, letters []string, length int, duplicateChance float64) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("nil random source")
	}
	if length <= 0 {
		return nil, fmt.Errorf("sequence length must be > 0: %d", length)
	}
	if len(letters) == 0 {
		return nil, fmt.Errorf("empty letter pool")
	}
	if length >= 2 && len(letters) < 2 {
		return nil, fmt.Errorf("letter pool too small for length %d", length)
	}
	if length >= 3 && len(letters) < 3 {
		return nil, fmt.Errorf("letter pool too small for length %d", length)
	}
	if duplicateChance <= 0 && length > len(letters) {
		return nil, fmt.Errorf("length %d exceeds pool size %d with duplicates disabled", length, len(letters))
	}

	memo := make([]string, 0, length)
	for len(memo) < length {
		letter := letters[r.Intn(len(letters))]
		if len(memo) > 0 && (letter == memo[0] || letter == memo[len(memo)-1]) {
			continue
		}
		if containsLetter(memo, letter) && r.Float64() >= duplicateChance {
			continue
		}
		memo = append(memo, letter)
	}
	return memo, nil
}

func containsLetter(memo []string, letter string) bool {
	for _, m := range memo {
		if m == letter {
			return true
		}
	}
	return false
}
