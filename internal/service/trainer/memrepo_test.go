package trainer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/Memo-KakaoTalk-bot/internal/domain"
)

func testRound(session string, level int, endedAt time.Time) *domain.TrainingRound {
	return &domain.TrainingRound{
		SessionUUID: session,
		PlayerHash:  "player-1",
		RoomHash:    "room-1",
		Preset:      "classic",
		Level:       level,
		Groups: []domain.RoundGroup{
			{Label: "Edges", Target: "IJKLM", Guess: "IJKLM", Hits: 5},
			{Label: "Corners", Target: "ABC", Guess: "ABD", Hits: 2},
		},
		LettersTotal:   8,
		LettersCorrect: 7,
		MathCorrect:    true,
		StartedAt:      endedAt.Add(-time.Minute),
		EndedAt:        endedAt,
		Duration:       time.Minute,
	}
}

func TestMemoryRepositoryInsertAndDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	id, err := repo.InsertRound(ctx, testRound("s1", 1, now))
	if err != nil {
		t.Fatalf("InsertRound: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}

	if _, err := repo.InsertRound(ctx, testRound("s1", 1, now.Add(time.Second))); !errors.Is(err, ErrDuplicateRound) {
		t.Fatalf("expected ErrDuplicateRound, got %v", err)
	}

	// Same session at another level is a different round.
	if _, err := repo.InsertRound(ctx, testRound("s1", 2, now.Add(time.Second))); err != nil {
		t.Fatalf("InsertRound level 2: %v", err)
	}
}

func TestMemoryRepositoryRecentOrdering(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Now()

	for i := 1; i <= 4; i++ {
		round := testRound("s1", i, base.Add(time.Duration(i)*time.Minute))
		if _, err := repo.InsertRound(ctx, round); err != nil {
			t.Fatalf("InsertRound %d: %v", i, err)
		}
	}

	rounds, err := repo.GetRecentRounds(ctx, "player-1", 3)
	if err != nil {
		t.Fatalf("GetRecentRounds: %v", err)
	}
	if len(rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(rounds))
	}
	if rounds[0].Level != 4 || rounds[1].Level != 3 || rounds[2].Level != 2 {
		t.Fatalf("unexpected order: %d %d %d", rounds[0].Level, rounds[1].Level, rounds[2].Level)
	}

	none, err := repo.GetRecentRounds(ctx, "stranger", 3)
	if err != nil {
		t.Fatalf("GetRecentRounds stranger: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no rounds, got %d", len(none))
	}
}

func TestMemoryRepositoryRoundLookup(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.InsertRound(ctx, testRound("s1", 1, time.Now())); err != nil {
		t.Fatalf("InsertRound: %v", err)
	}

	round, err := repo.GetRoundBySession(ctx, "s1", 1, "player-1")
	if err != nil {
		t.Fatalf("GetRoundBySession: %v", err)
	}
	if round == nil || round.ID != 1 {
		t.Fatalf("expected stored round, got %+v", round)
	}

	missing, err := repo.GetRoundBySession(ctx, "s1", 9, "player-1")
	if err != nil {
		t.Fatalf("GetRoundBySession miss: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown level, got %+v", missing)
	}
}

func TestMemoryRepositoryProfiles(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	missing, err := repo.GetProfile(ctx, "p1", "r1")
	if err != nil {
		t.Fatalf("GetProfile miss: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil profile, got %+v", missing)
	}

	profile := &domain.TrainerProfile{PlayerHash: "p1", RoomHash: "r1", PuzzlesSolved: 3}
	if err := repo.UpsertProfile(ctx, profile); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	// The stored copy must not alias the caller's struct.
	profile.PuzzlesSolved = 99
	stored, err := repo.GetProfile(ctx, "p1", "r1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if stored == nil || stored.PuzzlesSolved != 3 {
		t.Fatalf("expected isolated copy with 3 solves, got %+v", stored)
	}

	if err := repo.UpsertProfile(ctx, &domain.TrainerProfile{PlayerHash: "p2", RoomHash: "r1"}); err != nil {
		t.Fatalf("UpsertProfile p2: %v", err)
	}
	profiles, err := repo.GetProfilesByHashes(ctx, []string{"p1", "p2", "p3"})
	if err != nil {
		t.Fatalf("GetProfilesByHashes: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
}
