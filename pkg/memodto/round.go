package memodto

import "time"

// InputKind discriminates what a mid-round answer produced.
type InputKind string

const (
	InputMathVerdict   InputKind = "math_verdict"
	InputGroupFeedback InputKind = "group_feedback"
	InputRoundSummary  InputKind = "round_summary"
	InputReprompt      InputKind = "reprompt"
)

// RepromptReason explains why the same prompt is repeated.
type RepromptReason string

const (
	RepromptInvalidNumber  RepromptReason = "invalid_number"
	RepromptWrongLength    RepromptReason = "wrong_length"
	RepromptConfirmPending RepromptReason = "confirm_pending"
	RepromptNotInRound     RepromptReason = "not_in_round"
)

// LetterMark is the scored verdict for one position of a recalled group.
type LetterMark struct {
	Target string
	Guess  string
	Hit    bool
}

// GroupFeedback carries the raw scoring of one recalled group. Presentation
// styling happens in the formatter.
type GroupFeedback struct {
	Label  string
	Marks  []LetterMark
	Hits   int
	Length int
}

// GroupPrompt names the next group the player must send.
type GroupPrompt struct {
	Label  string
	Length int
}

type Reprompt struct {
	Reason RepromptReason
	Label  string
	Length int
}

// RoundSummary reports a completed round.
type RoundSummary struct {
	Accuracy  int
	Solves    int
	FullSolve bool
	Level     int
	RoundID   int64
}

// InputResult is the polymorphic outcome of feeding player text into the
// session state machine.
type InputResult struct {
	Kind InputKind

	MathCorrect  bool
	MathExpected int

	Feedback  *GroupFeedback
	NextGroup *GroupPrompt
	Summary   *RoundSummary
	Reprompt  *Reprompt

	State *SessionState
}

// TrainingRound is the persisted record of one finished round.
type TrainingRound struct {
	ID             int64
	SessionUUID    string
	PlayerHash     string
	RoomHash       string
	Preset         string
	Level          int
	Groups         []RoundGroup
	LettersTotal   int
	LettersCorrect int
	MathCorrect    bool
	FullSolve      bool
	StartedAt      time.Time
	EndedAt        time.Time
	Duration       time.Duration
}

type RoundGroup struct {
	Label  string
	Target string
	Guess  string
	Hits   int
}
