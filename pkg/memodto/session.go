package memodto

// GroupState describes one memorization group of the active round.
type GroupState struct {
	Label   string
	Length  int
	Letters []string
}

type SessionState struct {
	SessionUUID      string
	Preset           string
	Phase            string
	Level            int
	Groups           []GroupState
	RecallIndex      int
	CorrectLetters   int
	AttemptedLetters int
	PuzzlesSolved    int
	Accuracy         int
	MemoImage        []byte
	Profile          *TrainerProfile
}

type MathTask struct {
	A int
	B int
}
