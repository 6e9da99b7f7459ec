package memory

import (
	"math/rand"
	"testing"
)

func TestNextLengthIncrementsBelowMax(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for current := 3; current < 8; current++ {
		if got := NextLength(r, current, 8, 3); got != current+1 {
			t.Fatalf("NextLength(%d) = %d, want %d", current, got, current+1)
		}
	}
}

func TestNextLengthRerollsAtMax(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		got := NextLength(r, 8, 8, 3)
		if got < 3 || got > 8 {
			t.Fatalf("reroll out of band: %d", got)
		}
		seen[got] = true
	}
	for want := 3; want <= 8; want++ {
		if !seen[want] {
			t.Fatalf("value %d never drawn in 500 rerolls", want)
		}
	}
}

func TestNextLengthDegenerateBand(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	if got := NextLength(r, 4, 4, 4); got != 4 {
		t.Fatalf("got %d, want 4", got)
	}
}
