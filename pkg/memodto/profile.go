package memodto

import "time"

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
