package domain

import "time"

// RoundGroup records one memorization group of a finished round.
type RoundGroup struct {
	Label  string `json:"label"`
	Target string `json:"target"`
	Guess  string `json:"guess"`
	Hits   int    `json:"hits"`
}

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

type TrainerProfile struct {
	PlayerHash       string
	RoomHash         string
	PreferredPreset  string
	CorrectLetters   int
	AttemptedLetters int
	PuzzlesSolved    int
	RoundsPlayed     int
	BestLevel        int
	SolveStreak      int
	BestStreak       int
	LastPreset       string
	LastPlayedAt     time.Time
	UpdatedAt        time.Time
	CreatedAt        time.Time
}

// Accuracy returns the lifetime letter accuracy in whole percent, rounded
// down. Zero attempts render as 0.
func (p *TrainerProfile) Accuracy() int {
	if p == nil || p.AttemptedLetters <= 0 {
		return 0
	}
	return p.CorrectLetters * 100 / p.AttemptedLetters
}
