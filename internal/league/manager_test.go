package league

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/Memo-KakaoTalk-bot/internal/domain"
	"github.com/park285/Memo-KakaoTalk-bot/internal/service/trainer"
)

func newTestManager(t *testing.T, limit int) (*Manager, trainer.Repository) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	repo := trainer.NewMemoryRepository()
	return NewManager(rdb, repo, limit), repo
}

func TestCreateJoinLeave(t *testing.T) {
	m, _ := newTestManager(t, 2)
	ctx := context.Background()

	created, err := m.Create(ctx, "hash-1", "Alice", "Cube Club")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(created.Code, "LG-") || len(created.Code) != 9 {
		t.Fatalf("unexpected code %q", created.Code)
	}
	if created.Meta.Name != "Cube Club" || created.Meta.CreatorHash != "hash-1" {
		t.Fatalf("unexpected meta: %+v", created.Meta)
	}

	joined, err := m.Join(ctx, created.Code, "hash-2", "Bob")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Members != 2 {
		t.Fatalf("expected 2 members, got %d", joined.Members)
	}

	if _, err := m.Join(ctx, created.Code, "hash-3", "Carol"); !errors.Is(err, ErrLeagueFull) {
		t.Fatalf("expected ErrLeagueFull, got %v", err)
	}

	code, err := m.Leave(ctx, "hash-2")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if code != created.Code {
		t.Fatalf("left %q, expected %q", code, created.Code)
	}

	// The freed seat is usable again.
	if _, err := m.Join(ctx, created.Code, "hash-3", "Carol"); err != nil {
		t.Fatalf("Join after leave: %v", err)
	}
}

func TestOneLeaguePerPlayer(t *testing.T) {
	m, _ := newTestManager(t, 4)
	ctx := context.Background()

	created, err := m.Create(ctx, "hash-1", "Alice", "First")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create(ctx, "hash-1", "Alice", "Second"); !errors.Is(err, ErrAlreadyInLeague) {
		t.Fatalf("expected ErrAlreadyInLeague on second create, got %v", err)
	}

	if _, err := m.Join(ctx, created.Code, "hash-2", "Bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := m.Create(ctx, "hash-2", "Bob", "Splinter"); !errors.Is(err, ErrAlreadyInLeague) {
		t.Fatalf("expected ErrAlreadyInLeague for a member, got %v", err)
	}

	got, err := m.LeagueOfPlayer(ctx, "hash-2")
	if err != nil {
		t.Fatalf("LeagueOfPlayer: %v", err)
	}
	if got != created.Code {
		t.Fatalf("expected %q, got %q", created.Code, got)
	}
}

func TestJoinGuards(t *testing.T) {
	m, _ := newTestManager(t, 4)
	ctx := context.Background()

	if _, err := m.Join(ctx, "LG-ZZZZZZ", "hash-1", "Alice"); !errors.Is(err, ErrLeagueGone) {
		t.Fatalf("expected ErrLeagueGone, got %v", err)
	}
	if _, err := m.Leave(ctx, "hash-1"); !errors.Is(err, ErrNotInLeague) {
		t.Fatalf("expected ErrNotInLeague, got %v", err)
	}

	created, err := m.Create(ctx, "hash-1", "Alice", "Case Club")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Codes are case-insensitive on input.
	if _, err := m.Join(ctx, strings.ToLower(created.Code), "hash-2", "Bob"); err != nil {
		t.Fatalf("Join with lowercase code: %v", err)
	}
}

func TestTableRanking(t *testing.T) {
	m, repo := newTestManager(t, 8)
	ctx := context.Background()

	created, err := m.Create(ctx, "hash-1", "Alice", "Ranked")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Join(ctx, created.Code, "hash-2", "Bob"); err != nil {
		t.Fatalf("Join Bob: %v", err)
	}
	if _, err := m.Join(ctx, created.Code, "hash-3", "Carol"); err != nil {
		t.Fatalf("Join Carol: %v", err)
	}

	now := time.Now()
	profiles := []*domain.TrainerProfile{
		{PlayerHash: "hash-1", RoomHash: "r", PuzzlesSolved: 2, CorrectLetters: 50, AttemptedLetters: 100, RoundsPlayed: 9, UpdatedAt: now},
		{PlayerHash: "hash-2", RoomHash: "r", PuzzlesSolved: 5, CorrectLetters: 80, AttemptedLetters: 100, RoundsPlayed: 7, UpdatedAt: now},
		{PlayerHash: "hash-3", RoomHash: "r", PuzzlesSolved: 2, CorrectLetters: 90, AttemptedLetters: 100, RoundsPlayed: 4, UpdatedAt: now},
	}
	for _, p := range profiles {
		if err := repo.UpsertProfile(ctx, p); err != nil {
			t.Fatalf("UpsertProfile: %v", err)
		}
	}

	meta, rows, err := m.Table(ctx, created.Code)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if meta.Name != "Ranked" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].DisplayName != "Bob" || rows[0].FullSolves != 5 {
		t.Fatalf("expected Bob first, got %+v", rows[0])
	}
	// Equal solves fall back to accuracy.
	if rows[1].DisplayName != "Carol" || rows[2].DisplayName != "Alice" {
		t.Fatalf("unexpected tie break: %+v then %+v", rows[1], rows[2])
	}

	if _, _, err := m.Table(ctx, "LG-MISSIN"); !errors.Is(err, ErrLeagueGone) {
		t.Fatalf("expected ErrLeagueGone, got %v", err)
	}
}

func TestTableWithoutProfilesRanksZero(t *testing.T) {
	m, _ := newTestManager(t, 4)
	ctx := context.Background()

	created, err := m.Create(ctx, "hash-1", "Alice", "Empty")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, rows, err := m.Table(ctx, created.Code)
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(rows) != 1 || rows[0].FullSolves != 0 || rows[0].DisplayName != "Alice" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
