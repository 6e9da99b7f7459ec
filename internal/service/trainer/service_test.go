package trainer

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Memo-KakaoTalk-bot/internal/service/cache"
)

func newTestService(t *testing.T) *Service {
	return newTestServiceWith(t, Config{SessionTTL: time.Hour})
}

func newTestServiceWith(t *testing.T, cfg Config) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cacheSvc := cache.NewCacheServiceFromClient(rdb, zap.NewNop())

	svc, err := NewService(cacheSvc, NewMemoryRepository(), NewMemoCardRenderer(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.SetRandomSeed(7)
	return svc
}

func testMeta() SessionMeta {
	return SessionMeta{SessionID: "rooma:u1", Room: "roomA", Sender: "Alice"}
}

// playRound drives one full round. With missLast the final group's first
// letter is answered wrong, which breaks the full solve.
func playRound(t *testing.T, svc *Service, meta SessionMeta, missLast bool) *InputSummary {
	t.Helper()
	ctx := context.Background()

	state, err := svc.BeginRound(ctx, meta)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	targets := make([]string, len(state.Groups))
	for i, g := range state.Groups {
		targets[i] = strings.Join(g.Letters, "")
	}

	challenge, err := svc.Confirm(ctx, meta)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	summary, err := svc.Input(ctx, meta, strconv.Itoa(challenge.A+challenge.B))
	if err != nil {
		t.Fatalf("math answer: %v", err)
	}
	if summary.Outcome != OutcomeMathVerdict {
		t.Fatalf("expected math verdict, got %s", summary.Outcome)
	}

	for i, target := range targets {
		guess := target
		if missLast && i == len(targets)-1 {
			guess = flipFirst(target)
		}
		summary, err = svc.Input(ctx, meta, guess)
		if err != nil {
			t.Fatalf("recall group %d: %v", i, err)
		}
	}
	return summary
}

func flipFirst(seq string) string {
	runes := []rune(seq)
	if runes[0] == 'A' {
		runes[0] = 'B'
	} else {
		runes[0] = 'A'
	}
	return string(runes)
}

func TestStartInitialState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	state, err := svc.Start(ctx, testMeta(), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Phase != PhaseIdle {
		t.Fatalf("expected idle phase, got %s", state.Phase)
	}
	if state.Preset != "classic" || state.Level != 1 {
		t.Fatalf("unexpected preset/level: %s/%d", state.Preset, state.Level)
	}
	if len(state.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(state.Groups))
	}
	if state.Groups[0].Label != "Edges" || state.Groups[0].Length != 5 {
		t.Fatalf("unexpected first group: %+v", state.Groups[0])
	}
	if state.Groups[1].Label != "Corners" || state.Groups[1].Length != 3 {
		t.Fatalf("unexpected second group: %+v", state.Groups[1])
	}
	if state.Groups[0].Letters != nil {
		t.Fatalf("memo letters must not be exposed while idle")
	}
	if state.AttemptedLetters != 0 || state.CorrectLetters != 0 || state.PuzzlesSolved != 0 || state.Accuracy != 0 {
		t.Fatalf("fresh session has non-zero counters: %+v", state)
	}
	if state.PlayerName != "Alice" {
		t.Fatalf("expected player name Alice, got %q", state.PlayerName)
	}
	if state.SessionUUID == "" {
		t.Fatalf("expected a session uuid")
	}
}

func TestStartDuringRoundReportsInProgress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.BeginRound(ctx, meta); err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	state, err := svc.Start(ctx, meta, "")
	if !errors.Is(err, ErrRoundInProgress) {
		t.Fatalf("expected ErrRoundInProgress, got %v", err)
	}
	if state == nil || state.Phase != PhaseShowingMemo {
		t.Fatalf("expected current state alongside the error, got %+v", state)
	}

	// The round must be untouched: confirm still works.
	if _, err := svc.Confirm(ctx, meta); err != nil {
		t.Fatalf("Confirm after rejected restart: %v", err)
	}
}

func TestBeginRoundShowsMemo(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	state, err := svc.BeginRound(ctx, meta)
	if err != nil {
		t.Fatalf("BeginRound without prior Start: %v", err)
	}
	if state.Phase != PhaseShowingMemo {
		t.Fatalf("expected showing_memo, got %s", state.Phase)
	}
	for _, g := range state.Groups {
		if len(g.Letters) != g.Length {
			t.Fatalf("group %s: %d letters for length %d", g.Label, len(g.Letters), g.Length)
		}
		for _, l := range g.Letters {
			if len(l) != 1 || l != strings.ToUpper(l) {
				t.Fatalf("group %s has malformed letter %q", g.Label, l)
			}
		}
	}

	if _, err := svc.BeginRound(ctx, meta); !errors.Is(err, ErrRoundInProgress) {
		t.Fatalf("expected ErrRoundInProgress on second begin, got %v", err)
	}
}

func TestConfirmPhaseGuards(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Confirm(ctx, meta); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound before first contact, got %v", err)
	}

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Confirm(ctx, meta); !errors.Is(err, ErrNotShowingMemo) {
		t.Fatalf("expected ErrNotShowingMemo while idle, got %v", err)
	}

	if _, err := svc.BeginRound(ctx, meta); err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	challenge, err := svc.Confirm(ctx, meta)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if challenge.A < 1000 || challenge.A > 9999 || challenge.B < 1000 || challenge.B > 9999 {
		t.Fatalf("operands out of range: %d %d", challenge.A, challenge.B)
	}
	if _, err := svc.Confirm(ctx, meta); !errors.Is(err, ErrNotShowingMemo) {
		t.Fatalf("expected ErrNotShowingMemo on double confirm, got %v", err)
	}
}

func TestMathAnswerRepromptOnGarbage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.BeginRound(ctx, meta); err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	challenge, err := svc.Confirm(ctx, meta)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	summary, err := svc.Input(ctx, meta, "twelve")
	if err != nil {
		t.Fatalf("garbage math answer errored: %v", err)
	}
	if summary.Outcome != OutcomeReprompt || summary.Reprompt == nil || summary.Reprompt.Reason != RepromptInvalidNumber {
		t.Fatalf("expected invalid_number reprompt, got %+v", summary)
	}

	// The reprompt must not consume the question.
	summary, err = svc.Input(ctx, meta, strconv.Itoa(challenge.A+challenge.B))
	if err != nil {
		t.Fatalf("math answer after reprompt: %v", err)
	}
	if summary.Outcome != OutcomeMathVerdict || !summary.MathCorrect {
		t.Fatalf("expected correct math verdict, got %+v", summary)
	}
	if summary.MathExpected != challenge.A+challenge.B {
		t.Fatalf("expected sum %d, got %d", challenge.A+challenge.B, summary.MathExpected)
	}
	if summary.NextGroup == nil || summary.NextGroup.Label != "Edges" || summary.NextGroup.Length != 5 {
		t.Fatalf("expected first recall prompt for Edges(5), got %+v", summary.NextGroup)
	}
}

func TestWrongMathAnswerStillAdvances(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.BeginRound(ctx, meta); err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	if _, err := svc.Confirm(ctx, meta); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	summary, err := svc.Input(ctx, meta, "1")
	if err != nil {
		t.Fatalf("Input: %v", err)
	}
	if summary.Outcome != OutcomeMathVerdict || summary.MathCorrect {
		t.Fatalf("expected a wrong math verdict, got %+v", summary)
	}
	if summary.State.Phase != PhaseAwaitRecall {
		t.Fatalf("wrong math answer must still advance to recall, phase %s", summary.State.Phase)
	}
}

func TestWrongLengthRepromptKeepsGroup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	state, err := svc.BeginRound(ctx, meta)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	edges := strings.Join(state.Groups[0].Letters, "")

	challenge, err := svc.Confirm(ctx, meta)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := svc.Input(ctx, meta, strconv.Itoa(challenge.A+challenge.B)); err != nil {
		t.Fatalf("math answer: %v", err)
	}

	summary, err := svc.Input(ctx, meta, "AB")
	if err != nil {
		t.Fatalf("short recall errored: %v", err)
	}
	if summary.Outcome != OutcomeReprompt || summary.Reprompt == nil {
		t.Fatalf("expected reprompt, got %+v", summary)
	}
	if summary.Reprompt.Reason != RepromptWrongLength || summary.Reprompt.Label != "Edges" || summary.Reprompt.Length != 5 {
		t.Fatalf("unexpected reprompt: %+v", summary.Reprompt)
	}
	if summary.State.AttemptedLetters != 0 {
		t.Fatalf("reprompt must not score letters, attempted %d", summary.State.AttemptedLetters)
	}

	// Lowercase input with surrounding spaces is accepted.
	summary, err = svc.Input(ctx, meta, "  "+strings.ToLower(edges)+"  ")
	if err != nil {
		t.Fatalf("recall after reprompt: %v", err)
	}
	if summary.Outcome != OutcomeGroupFeedback || summary.Feedback == nil || summary.Feedback.Hits != 5 {
		t.Fatalf("expected a perfect edges recall, got %+v", summary)
	}
	if summary.NextGroup == nil || summary.NextGroup.Label != "Corners" {
		t.Fatalf("expected prompt for Corners, got %+v", summary.NextGroup)
	}
}

func TestPerfectRoundSummary(t *testing.T) {
	svc := newTestService(t)
	meta := testMeta()

	summary := playRound(t, svc, meta, false)
	if summary.Outcome != OutcomeRoundSummary || summary.Summary == nil {
		t.Fatalf("expected round summary, got %+v", summary)
	}
	res := summary.Summary
	if !res.FullSolve || res.Level != 1 || res.Accuracy != 100 || res.Solves != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RoundID <= 0 {
		t.Fatalf("expected a persisted round id, got %d", res.RoundID)
	}
	if summary.Feedback == nil || summary.Feedback.Label != "Corners" {
		t.Fatalf("summary must carry the last group feedback, got %+v", summary.Feedback)
	}

	state := summary.State
	if state.Phase != PhaseIdle || state.Level != 2 {
		t.Fatalf("expected idle at level 2, got %s level %d", state.Phase, state.Level)
	}
	if state.CorrectLetters != 8 || state.AttemptedLetters != 8 || state.PuzzlesSolved != 1 {
		t.Fatalf("unexpected counters: %+v", state)
	}
	if state.Profile == nil || state.Profile.RoundsPlayed != 1 || state.Profile.SolveStreak != 1 {
		t.Fatalf("unexpected profile: %+v", state.Profile)
	}
}

func TestMissedLetterSkipsSolve(t *testing.T) {
	svc := newTestService(t)
	meta := testMeta()

	summary := playRound(t, svc, meta, true)
	res := summary.Summary
	if res == nil {
		t.Fatalf("expected round summary, got %+v", summary)
	}
	if res.FullSolve || res.Solves != 0 {
		t.Fatalf("a missed letter must not count as a solve: %+v", res)
	}
	if res.Accuracy != 87 { // 7 of 8, floored
		t.Fatalf("expected accuracy 87, got %d", res.Accuracy)
	}
	if summary.State.Level != 2 {
		t.Fatalf("level advances even without a solve, got %d", summary.State.Level)
	}
	if summary.State.Profile != nil && summary.State.Profile.SolveStreak != 0 {
		t.Fatalf("streak must reset on a miss: %+v", summary.State.Profile)
	}
}

func TestLengthProgressionAcrossRounds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	playRound(t, svc, meta, false)

	state, err := svc.BeginRound(ctx, meta)
	if err != nil {
		t.Fatalf("BeginRound round 2: %v", err)
	}
	if state.Level != 2 {
		t.Fatalf("expected level 2, got %d", state.Level)
	}
	if state.Groups[0].Length != 6 || state.Groups[1].Length != 4 {
		t.Fatalf("lengths below max must step by one: %d/%d", state.Groups[0].Length, state.Groups[1].Length)
	}
}

func TestStartAfterRoundKeepsCounters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	first, err := svc.Start(ctx, meta, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	playRound(t, svc, meta, false)

	state, err := svc.Start(ctx, meta, "")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if state.Level != 1 || state.Groups[0].Length != 5 || state.Groups[1].Length != 3 {
		t.Fatalf("restart must reset progression: level %d lengths %d/%d", state.Level, state.Groups[0].Length, state.Groups[1].Length)
	}
	if state.CorrectLetters != 8 || state.AttemptedLetters != 8 || state.PuzzlesSolved != 1 {
		t.Fatalf("restart must keep lifetime counters: %+v", state)
	}
	if state.SessionUUID == first.SessionUUID {
		t.Fatalf("restart must issue a fresh session uuid")
	}
	if !state.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("restart must keep the original start time")
	}
}

func TestResetClearsCounters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	playRound(t, svc, meta, false)

	state, err := svc.Reset(ctx, meta)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if state.CorrectLetters != 0 || state.AttemptedLetters != 0 || state.PuzzlesSolved != 0 {
		t.Fatalf("reset must zero counters: %+v", state)
	}
	if state.Level != 1 || state.Phase != PhaseIdle {
		t.Fatalf("reset must return to level 1 idle, got level %d phase %s", state.Level, state.Phase)
	}
}

func TestExitKeepsCountersDiscardsRound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	// Exit before any contact is a no-op.
	state, err := svc.Exit(ctx, meta)
	if err != nil {
		t.Fatalf("Exit without session: %v", err)
	}
	if state.Phase != PhaseIdle {
		t.Fatalf("expected idle, got %s", state.Phase)
	}

	// Score one group, then walk away mid-round.
	begin, err := svc.BeginRound(ctx, meta)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	edges := strings.Join(begin.Groups[0].Letters, "")
	challenge, err := svc.Confirm(ctx, meta)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := svc.Input(ctx, meta, strconv.Itoa(challenge.A+challenge.B)); err != nil {
		t.Fatalf("math answer: %v", err)
	}
	if _, err := svc.Input(ctx, meta, edges); err != nil {
		t.Fatalf("edges recall: %v", err)
	}

	state, err = svc.Exit(ctx, meta)
	if err != nil {
		t.Fatalf("Exit mid-round: %v", err)
	}
	if state.Phase != PhaseIdle {
		t.Fatalf("expected idle after exit, got %s", state.Phase)
	}
	if state.AttemptedLetters != 5 || state.CorrectLetters != 5 {
		t.Fatalf("scored letters must survive exit: %+v", state)
	}
	if state.Level != 1 {
		t.Fatalf("an abandoned round must not advance the level, got %d", state.Level)
	}

	// The discarded round leaves no memo behind.
	next, err := svc.BeginRound(ctx, meta)
	if err != nil {
		t.Fatalf("BeginRound after exit: %v", err)
	}
	if next.Level != 1 || next.Groups[0].Length != 5 {
		t.Fatalf("expected a fresh level 1 round, got level %d length %d", next.Level, next.Groups[0].Length)
	}
}

func TestStatsLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	stats, err := svc.Stats(ctx, meta)
	if err != nil {
		t.Fatalf("Stats without session: %v", err)
	}
	if stats.AttemptedLetters != 0 || stats.Accuracy != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}

	// Stats reads fine in the middle of a round.
	if _, err := svc.BeginRound(ctx, meta); err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	if _, err := svc.Stats(ctx, meta); err != nil {
		t.Fatalf("Stats mid-round: %v", err)
	}
	if _, err := svc.Confirm(ctx, meta); err != nil {
		t.Fatalf("Confirm after stats: %v", err)
	}
}

func TestInputGuards(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Input(ctx, meta, "ABCDE"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Input(ctx, meta, "ABCDE"); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("expected ErrNoActiveRound while idle, got %v", err)
	}

	if _, err := svc.BeginRound(ctx, meta); err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	summary, err := svc.Input(ctx, meta, "ABCDE")
	if err != nil {
		t.Fatalf("Input while memo showing: %v", err)
	}
	if summary.Outcome != OutcomeReprompt || summary.Reprompt == nil || summary.Reprompt.Reason != RepromptConfirmPending {
		t.Fatalf("expected confirm_pending reprompt, got %+v", summary)
	}
	if _, err := svc.Confirm(ctx, meta); err != nil {
		t.Fatalf("Confirm after stray input: %v", err)
	}
}

func TestRoomAllowlist(t *testing.T) {
	svc := newTestServiceWith(t, Config{
		SessionTTL:   time.Hour,
		AllowedRooms: []string{"Lounge"},
	})
	ctx := context.Background()

	allowed := SessionMeta{SessionID: "lounge:u1", Room: "lounge", Sender: "Alice"}
	if _, err := svc.Start(ctx, allowed, ""); err != nil {
		t.Fatalf("Start in allowed room: %v", err)
	}

	denied := SessionMeta{SessionID: "other:u1", Room: "other", Sender: "Alice"}
	if _, err := svc.Start(ctx, denied, ""); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("expected ErrRoomNotAllowed, got %v", err)
	}
	if _, err := svc.Input(ctx, denied, "ABCDE"); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("expected ErrRoomNotAllowed on input, got %v", err)
	}
}

func TestPresetSelectionAndPreferred(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	state, err := svc.Start(ctx, meta, "corners")
	if err != nil {
		t.Fatalf("Start corners: %v", err)
	}
	if state.Preset != "corners" || len(state.Groups) != 1 || state.Groups[0].Label != "Corners" {
		t.Fatalf("unexpected corners session: %+v", state)
	}

	if _, err := svc.Start(ctx, meta, "bogus"); !errors.Is(err, ErrPresetUnknown) {
		t.Fatalf("expected ErrPresetUnknown, got %v", err)
	}
	if _, err := svc.SetPreferredPreset(ctx, meta, "bogus"); !errors.Is(err, ErrPresetUnknown) {
		t.Fatalf("expected ErrPresetUnknown from preference, got %v", err)
	}

	profile, err := svc.SetPreferredPreset(ctx, meta, "edges")
	if err != nil {
		t.Fatalf("SetPreferredPreset: %v", err)
	}
	if profile.PreferredPreset != "edges" {
		t.Fatalf("expected preferred preset edges, got %q", profile.PreferredPreset)
	}

	state, err = svc.Start(ctx, meta, "")
	if err != nil {
		t.Fatalf("Start with preference: %v", err)
	}
	if state.Preset != "edges" || len(state.Groups) != 1 {
		t.Fatalf("preference was not applied: %+v", state)
	}
}

func TestProfileAndHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Profile(ctx, meta); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	playRound(t, svc, meta, false)
	playRound(t, svc, meta, true)

	profile, err := svc.Profile(ctx, meta)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.RoundsPlayed != 2 || profile.PuzzlesSolved != 1 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.SolveStreak != 0 || profile.BestStreak != 1 {
		t.Fatalf("unexpected streaks: %+v", profile)
	}
	if profile.BestLevel != 2 {
		t.Fatalf("expected best level 2, got %d", profile.BestLevel)
	}

	rounds, err := svc.History(ctx, meta, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].Level != 2 || rounds[1].Level != 1 {
		t.Fatalf("history must be newest first: %d then %d", rounds[0].Level, rounds[1].Level)
	}
	if !rounds[1].FullSolve || rounds[0].FullSolve {
		t.Fatalf("unexpected solve flags: %+v", rounds)
	}
	if rounds[1].LettersTotal != 8 || rounds[1].LettersCorrect != 8 {
		t.Fatalf("unexpected letter totals: %+v", rounds[1])
	}
}

func TestRecordOutboundRef(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	// Without a session the ref has nowhere to live; not an error.
	if err := svc.RecordOutbound(ctx, meta, "ref-0"); err != nil {
		t.Fatalf("RecordOutbound without session: %v", err)
	}

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.RecordOutbound(ctx, meta, " ref-1 "); err != nil {
		t.Fatalf("RecordOutbound: %v", err)
	}
	state, err := svc.Exit(ctx, meta)
	if err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if state.LastMessageRef != "ref-1" {
		t.Fatalf("expected trimmed ref-1, got %q", state.LastMessageRef)
	}
}

func TestMemoImageAttached(t *testing.T) {
	svc := newTestServiceWith(t, Config{
		SessionTTL: time.Hour,
		MemoImage:  true,
	})
	ctx := context.Background()

	state, err := svc.BeginRound(ctx, testMeta())
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	if len(state.MemoImage) == 0 {
		t.Fatalf("expected a rendered memo card")
	}
	if !bytes.HasPrefix(state.MemoImage, []byte("\x89PNG")) {
		t.Fatalf("memo card is not a png")
	}
}
