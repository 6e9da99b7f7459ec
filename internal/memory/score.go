package memory

// LetterMark is the position-wise verdict for one target letter.
type LetterMark struct {
	Target string
	Guess  string
	Hit    bool
}

// ScoreRecall compares a guess against the target position by position.
// Positions the guess does not cover score as misses with an empty guess
// letter.
func ScoreRecall(target, guess []string) ([]LetterMark, int) {
	marks := make([]LetterMark, len(target))
	hits := 0
	for i, want := range target {
		got := ""
		if i < len(guess) {
			got = guess[i]
		}
		hit := got == want
		if hit {
			hits++
		}
		marks[i] = LetterMark{Target: want, Guess: got, Hit: hit}
	}
	return marks, hits
}
