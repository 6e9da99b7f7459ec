package memory

import (
	"math/rand"
	"testing"
)

func TestGenerateSequenceGuardsFirstAndLast(t *testing.T) {
	letters := SplitLetters(classicEdgeAlphabet)
	for seed := int64(1); seed <= 200; seed++ {
		r := rand.New(rand.NewSource(seed))
		seq, err := GenerateSequence(r, letters, 9, 0.15)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if len(seq) != 9 {
			t.Fatalf("seed %d: got length %d", seed, len(seq))
		}
		for i := 1; i < len(seq); i++ {
			if seq[i] == seq[0] {
				t.Fatalf("seed %d: position %d repeats the first letter %q: %v", seed, i, seq[0], seq)
			}
			if seq[i] == seq[i-1] {
				t.Fatalf("seed %d: adjacent repeat at %d: %v", seed, i, seq)
			}
		}
	}
}

func TestGenerateSequenceNoDuplicatesAtZeroChance(t *testing.T) {
	letters := SplitLetters(classicCornerAlphabet)
	for seed := int64(1); seed <= 100; seed++ {
		r := rand.New(rand.NewSource(seed))
		seq, err := GenerateSequence(r, letters, len(letters), 0)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		seen := make(map[string]bool, len(seq))
		for _, l := range seq {
			if seen[l] {
				t.Fatalf("seed %d: duplicate %q with chance 0: %v", seed, l, seq)
			}
			seen[l] = true
		}
	}
}

func TestGenerateSequenceDuplicatesAtFullChance(t *testing.T) {
	// Three letters cannot fill twelve positions without repeats.
	r := rand.New(rand.NewSource(7))
	seq, err := GenerateSequence(r, []string{"A", "B", "C"}, 12, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(seq) != 12 {
		t.Fatalf("got length %d", len(seq))
	}
}

func TestGenerateSequenceDeterministic(t *testing.T) {
	letters := SplitLetters(classicEdgeAlphabet)
	a, err := GenerateSequence(rand.New(rand.NewSource(42)), letters, 7, 0.15)
	if err != nil {
		t.Fatalf("generate a: %v", err)
	}
	b, err := GenerateSequence(rand.New(rand.NewSource(42)), letters, 7, 0.15)
	if err != nil {
		t.Fatalf("generate b: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, a, b)
		}
	}
}

func TestGenerateSequenceRejectsImpossiblePools(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	if _, err := GenerateSequence(r, nil, 3, 0.15); err == nil {
		t.Fatalf("expected error for empty pool")
	}
	if _, err := GenerateSequence(r, []string{"A", "B"}, 3, 0.15); err == nil {
		t.Fatalf("expected error for two-letter pool at length 3")
	}
	if _, err := GenerateSequence(r, []string{"A"}, 2, 0.15); err == nil {
		t.Fatalf("expected error for one-letter pool at length 2")
	}
	if _, err := GenerateSequence(r, []string{"A", "B", "C"}, 4, 0); err == nil {
		t.Fatalf("expected error for length beyond pool with duplicates disabled")
	}
	if _, err := GenerateSequence(r, []string{"A", "B", "C"}, 0, 0.15); err == nil {
		t.Fatalf("expected error for zero length")
	}
}

func TestGenerateSequenceSingleLetter(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	seq, err := GenerateSequence(r, []string{"Q"}, 1, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(seq) != 1 || seq[0] != "Q" {
		t.Fatalf("got %v", seq)
	}
}
