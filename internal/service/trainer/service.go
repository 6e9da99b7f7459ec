package trainer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Memo-KakaoTalk-bot/internal/domain"
	"github.com/park285/Memo-KakaoTalk-bot/internal/memory"
	"github.com/park285/Memo-KakaoTalk-bot/internal/service/cache"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("trainer session not found")
	ErrRoundInProgress = errors.New("training round already in progress")
	ErrNoActiveRound   = errors.New("no training round in progress")
	ErrNotShowingMemo  = errors.New("no memo awaiting confirmation")
	ErrPresetUnknown   = errors.New("unknown training preset")
	ErrProfileNotFound = errors.New("trainer profile not found")
	ErrRoomNotAllowed  = errors.New("trainer room not allowed")
)

const (
	profileCacheTTL       = 6 * time.Hour
	maxHistoryLimit       = 50
	playerLabelRuneLimit  = 24
	defaultHUDPlayerLabel = "Player"
)

// Session phases. A session is in exactly one phase at a time; round
// transients (pending sequences, pending sum, hits) exist only between
// showing_memo and the last recall.
const (
	PhaseIdle        = "idle"
	PhaseShowingMemo = "showing_memo"
	PhaseAwaitMath   = "await_math"
	PhaseAwaitRecall = "await_recall"
)

// InputOutcome discriminates what a mid-round text answer produced.
type InputOutcome string

const (
	OutcomeMathVerdict   InputOutcome = "math_verdict"
	OutcomeGroupFeedback InputOutcome = "group_feedback"
	OutcomeRoundSummary  InputOutcome = "round_summary"
	OutcomeReprompt      InputOutcome = "reprompt"
)

// Reprompt reasons for corrective hints that keep the session in its
// current phase.
const (
	RepromptInvalidNumber  = "invalid_number"
	RepromptWrongLength    = "wrong_length"
	RepromptConfirmPending = "confirm_pending"
)

type SessionMeta struct {
	SessionID string
	Room      string
	Sender    string
}

type sessionIdentity struct {
	SessionID  string
	RoomHash   string
	PlayerHash string
}

type Config struct {
	DefaultPreset   string
	SessionTTL      time.Duration
	HistoryLimit    int
	AllowedRooms    []string
	DuplicateChance float64
	MathMin         int
	MathMax         int
	MemoImage       bool
}

type Service struct {
	cache        *cache.CacheService
	renderer     CardRenderer
	repo         Repository
	cfg          Config
	locks        *sessionLocks
	allowedRooms map[string]struct{}
	logger       *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

type sessionPayload struct {
	SessionUUID      string            `json:"session_uuid"`
	PlayerHash       string            `json:"player_hash"`
	RoomHash         string            `json:"room_hash"`
	PlayerName       string            `json:"player_name,omitempty"`
	Preset           string            `json:"preset"`
	Phase            string            `json:"phase"`
	Level            int               `json:"level"`
	Groups           []groupState      `json:"groups"`
	RecallIndex      int               `json:"recall_index,omitempty"`
	Pending          map[string]string `json:"pending,omitempty"`
	PendingSum       *int              `json:"pending_sum,omitempty"`
	GroupHits        map[string]int    `json:"group_hits,omitempty"`
	GroupGuesses     map[string]string `json:"group_guesses,omitempty"`
	MathCorrect      bool              `json:"math_correct,omitempty"`
	CorrectLetters   int               `json:"correct_letters"`
	AttemptedLetters int               `json:"attempted_letters"`
	PuzzlesSolved    int               `json:"puzzles_solved"`
	LastMessageRef   string            `json:"last_message_ref,omitempty"`
	RoundStartedAt   *time.Time        `json:"round_started_at,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type groupState struct {
	Label    string `json:"label"`
	Alphabet string `json:"alphabet"`
	Length   int    `json:"length"`
	MinLen   int    `json:"min_len"`
	MaxLen   int    `json:"max_len"`
}

// GroupView is one memorization group as exposed to presenters. Target
// letters are populated only while the memo is on display.
type GroupView struct {
	Label   string
	Length  int
	Letters []string
}

type SessionState struct {
	SessionUUID      string
	PlayerHash       string
	RoomHash         string
	PlayerName       string
	Preset           string
	Phase            string
	Level            int
	Groups           []GroupView
	RecallIndex      int
	CorrectLetters   int
	AttemptedLetters int
	PuzzlesSolved    int
	Accuracy         int
	LastMessageRef   string
	StartedAt        time.Time
	UpdatedAt        time.Time
	MemoImage        []byte
	Profile          *domain.TrainerProfile
}

// MathChallenge is the distraction prompt drawn by Confirm.
type MathChallenge struct {
	State *SessionState
	A     int
	B     int
}

// GroupResult is the scored recall of one group.
type GroupResult struct {
	Label  string
	Marks  []memory.LetterMark
	Hits   int
	Length int
}

// GroupPrompt names the group the player must send next.
type GroupPrompt struct {
	Label  string
	Length int
}

type Reprompt struct {
	Reason string
	Label  string
	Length int
}

// RoundResult reports a completed round. Level is the level of the round
// that just finished, not the next one.
type RoundResult struct {
	RoundID   int64
	Level     int
	Accuracy  int
	Solves    int
	FullSolve bool
}

type InputSummary struct {
	State        *SessionState
	Outcome      InputOutcome
	MathCorrect  bool
	MathExpected int
	Feedback     *GroupResult
	NextGroup    *GroupPrompt
	Summary      *RoundResult
	Reprompt     *Reprompt
}

type SessionStats struct {
	CorrectLetters   int
	AttemptedLetters int
	PuzzlesSolved    int
	Accuracy         int
}

func NewService(cacheSvc *cache.CacheService, repo Repository, renderer CardRenderer, cfg Config, logger *zap.Logger) (*Service, error) {
	if cacheSvc == nil {
		return nil, fmt.Errorf("cache service is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("trainer repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("memo card renderer is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}
	if cfg.DuplicateChance < 0 || cfg.DuplicateChance > 1 {
		return nil, fmt.Errorf("duplicate chance must be within 0-1: %f", cfg.DuplicateChance)
	}
	defaultPreset := strings.ToLower(strings.TrimSpace(cfg.DefaultPreset))
	if defaultPreset == "" {
		defaultPreset = "classic"
	}
	preset, err := memory.GetPreset(defaultPreset)
	if err != nil {
		return nil, fmt.Errorf("default preset validation failed: %w", err)
	}
	if err := memory.ValidatePreset(preset, cfg.DuplicateChance); err != nil {
		return nil, fmt.Errorf("default preset validation failed: %w", err)
	}
	if cfg.MathMin <= 0 {
		cfg.MathMin = 1000
	}
	if cfg.MathMax < cfg.MathMin {
		cfg.MathMax = cfg.MathMin
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedRooms := make(map[string]struct{})
	for _, room := range cfg.AllowedRooms {
		normalized := strings.ToLower(strings.TrimSpace(room))
		if normalized == "" {
			continue
		}
		allowedRooms[normalized] = struct{}{}
	}

	return &Service{
		cache:    cacheSvc,
		renderer: renderer,
		repo:     repo,
		cfg: Config{
			DefaultPreset:   preset.Name,
			SessionTTL:      cfg.SessionTTL,
			HistoryLimit:    cfg.HistoryLimit,
			AllowedRooms:    append([]string(nil), cfg.AllowedRooms...),
			DuplicateChance: cfg.DuplicateChance,
			MathMin:         cfg.MathMin,
			MathMax:         cfg.MathMax,
			MemoImage:       cfg.MemoImage,
		},
		locks:        newSessionLocks(),
		allowedRooms: allowedRooms,
		logger:       logger,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// random derives an independent source for one generation burst so concurrent
// sessions never contend on a shared Rand.
func (s *Service) random() *rand.Rand {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return rand.New(rand.NewSource(s.rand.Int63()))
}

// SetRandomSeed reseeds sequence and task generation for reproducible rounds.
func (s *Service) SetRandomSeed(seed int64) {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	s.rand = rand.New(rand.NewSource(seed))
}

// Start creates the session on first contact or re-initializes an idle one:
// level and group lengths return to their preset start values while lifetime
// counters carry over. With a round in flight it leaves the session untouched
// and reports ErrRoundInProgress alongside the current state.
func (s *Service) Start(ctx context.Context, meta SessionMeta, preset string) (*SessionState, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	existing, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Phase != PhaseIdle {
		state := s.stateFromPayload(existing)
		s.applyPlayerName(state, existing, meta)
		return state, ErrRoundInProgress
	}

	payload, profile, err := s.freshPayload(ctx, identity, meta, preset)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		carryLifetime(payload, existing)
	}

	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		return nil, err
	}

	state := s.stateFromPayload(payload)
	s.applyPlayerName(state, payload, meta)
	state.Profile = profile
	return state, nil
}

// BeginRound generates every group's sequence and moves the session to
// showing_memo. Sessions are created on the fly so the round action works as
// first contact.
func (s *Service) BeginRound(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload, _, err = s.freshPayload(ctx, identity, meta, "")
		if err != nil {
			return nil, err
		}
	}
	if payload.Phase != PhaseIdle {
		return nil, ErrRoundInProgress
	}

	child := s.random()
	pending := make(map[string]string, len(payload.Groups))
	for _, g := range payload.Groups {
		seq, err := memory.GenerateSequence(child, memory.SplitLetters(g.Alphabet), g.Length, s.cfg.DuplicateChance)
		if err != nil {
			return nil, fmt.Errorf("generate %s sequence: %w", strings.ToLower(g.Label), err)
		}
		pending[g.Label] = strings.Join(seq, "")
	}

	now := time.Now()
	payload.Phase = PhaseShowingMemo
	payload.Pending = pending
	payload.GroupHits = make(map[string]int, len(payload.Groups))
	payload.GroupGuesses = make(map[string]string, len(payload.Groups))
	payload.PendingSum = nil
	payload.MathCorrect = false
	payload.RecallIndex = 0
	payload.RoundStartedAt = &now

	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		return nil, err
	}

	state := s.stateFromPayload(payload)
	s.applyPlayerName(state, payload, meta)
	s.attachMemoImage(ctx, state)
	return state, nil
}

// Confirm acknowledges the memo and draws the distraction task.
func (s *Service) Confirm(ctx context.Context, meta SessionMeta) (*MathChallenge, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	if payload.Phase != PhaseShowingMemo {
		return nil, ErrNotShowingMemo
	}

	task := memory.NewAdditionTask(s.random(), s.cfg.MathMin, s.cfg.MathMax)
	sum := task.Sum()
	payload.PendingSum = &sum
	payload.Phase = PhaseAwaitMath

	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		return nil, err
	}

	state := s.stateFromPayload(payload)
	s.applyPlayerName(state, payload, meta)
	return &MathChallenge{State: state, A: task.A, B: task.B}, nil
}

// Input feeds free text into the state machine. Malformed input never fails
// the call; it comes back as a same-phase Reprompt with the session unchanged.
func (s *Service) Input(ctx context.Context, meta SessionMeta, text string) (*InputSummary, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}
	if len(payload.Groups) == 0 {
		return nil, fmt.Errorf("session %s has no recall groups", payload.SessionUUID)
	}

	switch payload.Phase {
	case PhaseAwaitMath:
		return s.handleMathAnswer(ctx, identity, meta, payload, text)
	case PhaseAwaitRecall:
		return s.handleRecall(ctx, identity, meta, payload, text)
	case PhaseShowingMemo:
		state := s.stateFromPayload(payload)
		s.applyPlayerName(state, payload, meta)
		return &InputSummary{
			State:    state,
			Outcome:  OutcomeReprompt,
			Reprompt: &Reprompt{Reason: RepromptConfirmPending},
		}, nil
	default:
		return nil, ErrNoActiveRound
	}
}

func (s *Service) handleMathAnswer(ctx context.Context, identity sessionIdentity, meta SessionMeta, payload *sessionPayload, text string) (*InputSummary, error) {
	if payload.PendingSum == nil {
		return nil, fmt.Errorf("math phase without a pending sum")
	}
	expected := *payload.PendingSum

	answer, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		state := s.stateFromPayload(payload)
		s.applyPlayerName(state, payload, meta)
		return &InputSummary{
			State:    state,
			Outcome:  OutcomeReprompt,
			Reprompt: &Reprompt{Reason: RepromptInvalidNumber},
		}, nil
	}

	payload.MathCorrect = answer == expected
	payload.PendingSum = nil
	payload.Phase = PhaseAwaitRecall
	payload.RecallIndex = 0

	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		return nil, err
	}

	first := payload.Groups[0]
	state := s.stateFromPayload(payload)
	s.applyPlayerName(state, payload, meta)
	return &InputSummary{
		State:        state,
		Outcome:      OutcomeMathVerdict,
		MathCorrect:  payload.MathCorrect,
		MathExpected: expected,
		NextGroup:    &GroupPrompt{Label: first.Label, Length: first.Length},
	}, nil
}

func (s *Service) handleRecall(ctx context.Context, identity sessionIdentity, meta SessionMeta, payload *sessionPayload, text string) (*InputSummary, error) {
	idx := payload.RecallIndex
	if idx < 0 || idx >= len(payload.Groups) {
		return nil, fmt.Errorf("recall index %d out of range for %d groups", idx, len(payload.Groups))
	}
	group := payload.Groups[idx]

	guess := strings.ToUpper(strings.TrimSpace(text))
	if len([]rune(guess)) != group.Length {
		state := s.stateFromPayload(payload)
		s.applyPlayerName(state, payload, meta)
		return &InputSummary{
			State:   state,
			Outcome: OutcomeReprompt,
			Reprompt: &Reprompt{
				Reason: RepromptWrongLength,
				Label:  group.Label,
				Length: group.Length,
			},
		}, nil
	}

	target := memory.SplitLetters(payload.Pending[group.Label])
	if len(target) != group.Length {
		return nil, fmt.Errorf("pending sequence for %s has length %d, want %d", group.Label, len(target), group.Length)
	}
	marks, hits := memory.ScoreRecall(target, memory.SplitLetters(guess))

	// Empty maps round-trip through JSON as nil.
	if payload.GroupHits == nil {
		payload.GroupHits = make(map[string]int, len(payload.Groups))
	}
	if payload.GroupGuesses == nil {
		payload.GroupGuesses = make(map[string]string, len(payload.Groups))
	}
	payload.CorrectLetters += hits
	payload.AttemptedLetters += group.Length
	payload.GroupHits[group.Label] = hits
	payload.GroupGuesses[group.Label] = guess

	feedback := &GroupResult{Label: group.Label, Marks: marks, Hits: hits, Length: group.Length}

	if idx+1 < len(payload.Groups) {
		payload.RecallIndex = idx + 1
		if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
			return nil, err
		}
		next := payload.Groups[idx+1]
		state := s.stateFromPayload(payload)
		s.applyPlayerName(state, payload, meta)
		return &InputSummary{
			State:     state,
			Outcome:   OutcomeGroupFeedback,
			Feedback:  feedback,
			NextGroup: &GroupPrompt{Label: next.Label, Length: next.Length},
		}, nil
	}

	return s.completeRound(ctx, identity, meta, payload, feedback)
}

func (s *Service) completeRound(ctx context.Context, identity sessionIdentity, meta SessionMeta, payload *sessionPayload, lastFeedback *GroupResult) (*InputSummary, error) {
	fullSolve := true
	for _, g := range payload.Groups {
		if payload.GroupHits[g.Label] != g.Length {
			fullSolve = false
			break
		}
	}
	if fullSolve {
		payload.PuzzlesSolved++
	}
	accuracy := letterAccuracy(payload.CorrectLetters, payload.AttemptedLetters)

	record := s.roundRecord(identity, payload, fullSolve)
	roundID, profile := s.persistCompletedRound(ctx, identity, record)

	completedLevel := payload.Level
	child := s.random()
	payload.Level++
	for i := range payload.Groups {
		g := &payload.Groups[i]
		g.Length = memory.NextLength(child, g.Length, g.MaxLen, g.MinLen)
	}
	clearRoundTransients(payload)
	payload.Phase = PhaseIdle

	// The round result is final here; a failed session save must not drop it.
	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		s.logger.Warn("failed to save trainer session after round completion",
			zap.Error(err),
			zap.String("session_id", identity.SessionID),
		)
	}

	state := s.stateFromPayload(payload)
	s.applyPlayerName(state, payload, meta)
	state.Profile = profile

	s.logger.Info("training round complete",
		zap.String("session_uuid", payload.SessionUUID),
		zap.String("preset", payload.Preset),
		zap.Int("level", completedLevel),
		zap.Bool("full_solve", fullSolve),
		zap.Bool("math_correct", record.MathCorrect),
		zap.Int("accuracy", accuracy),
	)

	return &InputSummary{
		State:    state,
		Outcome:  OutcomeRoundSummary,
		Feedback: lastFeedback,
		Summary: &RoundResult{
			RoundID:   roundID,
			Level:     completedLevel,
			Accuracy:  accuracy,
			Solves:    payload.PuzzlesSolved,
			FullSolve: fullSolve,
		},
	}, nil
}

// Exit discards any round in flight and parks the session in idle. Lifetime
// counters, level and group lengths stay as they are; the action succeeds
// from every phase, including before a session exists.
func (s *Service) Exit(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return &SessionState{Phase: PhaseIdle}, nil
	}

	clearRoundTransients(payload)
	payload.Phase = PhaseIdle

	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		s.logger.Warn("failed to save trainer session on exit",
			zap.Error(err),
			zap.String("session_id", identity.SessionID),
		)
	}

	state := s.stateFromPayload(payload)
	s.applyPlayerName(state, payload, meta)
	return state, nil
}

// Stats reads the lifetime counters without touching session state. It works
// mid-round and before first contact.
func (s *Service) Stats(ctx context.Context, meta SessionMeta) (*SessionStats, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return &SessionStats{}, nil
	}
	return &SessionStats{
		CorrectLetters:   payload.CorrectLetters,
		AttemptedLetters: payload.AttemptedLetters,
		PuzzlesSolved:    payload.PuzzlesSolved,
		Accuracy:         letterAccuracy(payload.CorrectLetters, payload.AttemptedLetters),
	}, nil
}

// Reset rebuilds the session from scratch, lifetime counters included.
func (s *Service) Reset(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	payload, profile, err := s.freshPayload(ctx, identity, meta, "")
	if err != nil {
		return nil, err
	}
	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		return nil, err
	}

	state := s.stateFromPayload(payload)
	s.applyPlayerName(state, payload, meta)
	state.Profile = profile
	return state, nil
}

func (s *Service) History(ctx context.Context, meta SessionMeta, limit int) ([]*domain.TrainingRound, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	identity := deriveIdentity(meta)
	return s.repo.GetRecentRounds(ctx, identity.PlayerHash, limit)
}

func (s *Service) Profile(ctx context.Context, meta SessionMeta) (*domain.TrainerProfile, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)
	profile, err := s.fetchProfile(ctx, identity, true)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// SetPreferredPreset stores the preset the next Start will pick up.
func (s *Service) SetPreferredPreset(ctx context.Context, meta SessionMeta, preset string) (*domain.TrainerProfile, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)
	target := strings.ToLower(strings.TrimSpace(preset))
	if target == "" {
		return nil, fmt.Errorf("preset must be provided")
	}
	chosen, err := memory.GetPreset(target)
	if err != nil {
		return nil, ErrPresetUnknown
	}
	if err := memory.ValidatePreset(chosen, s.cfg.DuplicateChance); err != nil {
		return nil, fmt.Errorf("preset validation failed: %w", err)
	}

	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	now := time.Now()
	if profile == nil {
		profile = &domain.TrainerProfile{
			PlayerHash: identity.PlayerHash,
			RoomHash:   identity.RoomHash,
			CreatedAt:  now,
		}
	}
	profile.PreferredPreset = chosen.Name
	profile.UpdatedAt = now

	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, identity, profile)
	return profile, nil
}

// RecordOutbound stores the ref of the latest superseding outbound message so
// a capable transport can replace it with the next one.
func (s *Service) RecordOutbound(ctx context.Context, meta SessionMeta, ref string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}

	identity := deriveIdentity(meta)
	unlock := s.locks.acquire(identity.SessionID)
	defer unlock()

	payload, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}
	payload.LastMessageRef = strings.TrimSpace(ref)
	return s.saveSession(ctx, identity.SessionID, payload)
}

func (s *Service) freshPayload(ctx context.Context, identity sessionIdentity, meta SessionMeta, preset string) (*sessionPayload, *domain.TrainerProfile, error) {
	chosen := strings.ToLower(strings.TrimSpace(preset))

	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, nil, err
	}
	if chosen == "" {
		if profile != nil && profile.PreferredPreset != "" {
			chosen = profile.PreferredPreset
		} else {
			chosen = s.cfg.DefaultPreset
		}
	}

	tp, err := memory.GetPreset(chosen)
	if err != nil {
		return nil, nil, ErrPresetUnknown
	}
	if err := memory.ValidatePreset(tp, s.cfg.DuplicateChance); err != nil {
		return nil, nil, fmt.Errorf("preset validation failed: %w", err)
	}

	now := time.Now()
	return &sessionPayload{
		SessionUUID: uuid.NewString(),
		PlayerHash:  identity.PlayerHash,
		RoomHash:    identity.RoomHash,
		PlayerName:  normalizeHUDPlayerLabel(meta.Sender),
		Preset:      tp.Name,
		Phase:       PhaseIdle,
		Level:       1,
		Groups:      groupStatesFromPreset(tp),
		StartedAt:   now,
		UpdatedAt:   now,
	}, profile, nil
}

// carryLifetime moves everything a restart keeps onto the rebuilt payload.
func carryLifetime(dst, src *sessionPayload) {
	dst.CorrectLetters = src.CorrectLetters
	dst.AttemptedLetters = src.AttemptedLetters
	dst.PuzzlesSolved = src.PuzzlesSolved
	dst.LastMessageRef = src.LastMessageRef
	dst.StartedAt = src.StartedAt
	if strings.TrimSpace(dst.PlayerName) == "" {
		dst.PlayerName = src.PlayerName
	}
}

func clearRoundTransients(p *sessionPayload) {
	p.Pending = nil
	p.PendingSum = nil
	p.GroupHits = nil
	p.GroupGuesses = nil
	p.RecallIndex = 0
	p.RoundStartedAt = nil
	p.MathCorrect = false
}

func groupStatesFromPreset(p memory.TrainingPreset) []groupState {
	groups := make([]groupState, len(p.Groups))
	for i, g := range p.Groups {
		groups[i] = groupState{
			Label:    g.Label,
			Alphabet: strings.Join(g.Letters, ""),
			Length:   g.StartLen,
			MinLen:   g.MinLen,
			MaxLen:   g.MaxLen,
		}
	}
	return groups
}

func (s *Service) roundRecord(identity sessionIdentity, payload *sessionPayload, fullSolve bool) *domain.TrainingRound {
	now := time.Now()
	started := now
	if payload.RoundStartedAt != nil {
		started = *payload.RoundStartedAt
	}

	groups := make([]domain.RoundGroup, 0, len(payload.Groups))
	total := 0
	correct := 0
	for _, g := range payload.Groups {
		hits := payload.GroupHits[g.Label]
		groups = append(groups, domain.RoundGroup{
			Label:  g.Label,
			Target: payload.Pending[g.Label],
			Guess:  payload.GroupGuesses[g.Label],
			Hits:   hits,
		})
		total += g.Length
		correct += hits
	}

	return &domain.TrainingRound{
		SessionUUID:    payload.SessionUUID,
		PlayerHash:     identity.PlayerHash,
		RoomHash:       identity.RoomHash,
		Preset:         payload.Preset,
		Level:          payload.Level,
		Groups:         groups,
		LettersTotal:   total,
		LettersCorrect: correct,
		MathCorrect:    payload.MathCorrect,
		FullSolve:      fullSolve,
		StartedAt:      started,
		EndedAt:        now,
		Duration:       now.Sub(started),
	}
}

// persistCompletedRound is best-effort: the in-session result stands even
// when the repository is unavailable.
func (s *Service) persistCompletedRound(ctx context.Context, identity sessionIdentity, record *domain.TrainingRound) (int64, *domain.TrainerProfile) {
	roundID, err := s.repo.InsertRound(ctx, record)
	if err != nil {
		if errors.Is(err, ErrDuplicateRound) {
			if existing, fetchErr := s.repo.GetRoundBySession(ctx, record.SessionUUID, record.Level, identity.PlayerHash); fetchErr == nil && existing != nil {
				record.ID = existing.ID
			}
			profile, profErr := s.fetchProfile(ctx, identity, true)
			if profErr != nil {
				profile = nil
			}
			return record.ID, profile
		}
		s.logger.Warn("failed to persist training round",
			zap.Error(err),
			zap.String("session_uuid", record.SessionUUID),
			zap.Int("level", record.Level),
		)
	} else {
		record.ID = roundID
	}

	profile, err := s.fetchProfile(ctx, identity, false)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		s.logger.Warn("failed to load trainer profile for round result", zap.Error(err))
		return record.ID, nil
	}
	profile = applyRoundResult(profile, identity, record)
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		s.logger.Warn("failed to upsert trainer profile", zap.Error(err))
		return record.ID, nil
	}
	s.cacheProfile(ctx, identity, profile)
	return record.ID, profile
}

func applyRoundResult(profile *domain.TrainerProfile, identity sessionIdentity, record *domain.TrainingRound) *domain.TrainerProfile {
	if profile == nil {
		profile = &domain.TrainerProfile{
			PlayerHash: identity.PlayerHash,
			RoomHash:   identity.RoomHash,
			CreatedAt:  record.EndedAt,
		}
	}

	profile.RoundsPlayed++
	profile.CorrectLetters += record.LettersCorrect
	profile.AttemptedLetters += record.LettersTotal
	if record.FullSolve {
		profile.PuzzlesSolved++
		profile.SolveStreak++
		if profile.SolveStreak > profile.BestStreak {
			profile.BestStreak = profile.SolveStreak
		}
	} else {
		profile.SolveStreak = 0
	}
	if record.Level > profile.BestLevel {
		profile.BestLevel = record.Level
	}
	profile.LastPreset = record.Preset
	profile.LastPlayedAt = record.EndedAt
	profile.UpdatedAt = record.EndedAt
	return profile
}

func (s *Service) fetchProfile(ctx context.Context, identity sessionIdentity, allowCache bool) (*domain.TrainerProfile, error) {
	if !allowCache {
		profile, err := s.repo.GetProfile(ctx, identity.PlayerHash, identity.RoomHash)
		if profile == nil && err == nil {
			return nil, ErrProfileNotFound
		}
		if err != nil {
			return nil, err
		}
		s.cacheProfile(ctx, identity, profile)
		return profile, nil
	}

	key := s.profileCacheKey(identity)
	profile := &domain.TrainerProfile{}
	if err := s.cache.Get(ctx, key, profile); err != nil {
		return nil, err
	}
	if profile.PlayerHash != "" {
		return profile, nil
	}

	stored, err := s.repo.GetProfile(ctx, identity.PlayerHash, identity.RoomHash)
	if stored == nil && err == nil {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	s.cacheProfile(ctx, identity, stored)
	return stored, nil
}

func (s *Service) cacheProfile(ctx context.Context, identity sessionIdentity, profile *domain.TrainerProfile) {
	if profile == nil {
		return
	}
	if err := s.cache.Set(ctx, s.profileCacheKey(identity), profile, profileCacheTTL); err != nil {
		s.logger.Warn("failed to cache trainer profile", zap.Error(err))
	}
}

func (s *Service) ensureReady() error {
	switch {
	case s.cache == nil:
		return fmt.Errorf("cache service not configured")
	case s.repo == nil:
		return fmt.Errorf("trainer repository not configured")
	case s.renderer == nil:
		return fmt.Errorf("memo card renderer not configured")
	default:
		return nil
	}
}

func (s *Service) ensureRoomAllowed(meta SessionMeta) error {
	if len(s.allowedRooms) == 0 {
		return nil
	}

	room := strings.ToLower(strings.TrimSpace(meta.Room))
	if room == "" {
		room = "unknown-room"
	}

	if _, ok := s.allowedRooms[room]; ok {
		return nil
	}

	if s.logger != nil {
		s.logger.Info("trainer room access denied",
			zap.String("room", room),
			zap.String("sender", strings.TrimSpace(meta.Sender)),
		)
	}

	return ErrRoomNotAllowed
}

func (s *Service) sessionKey(sessionID string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(sessionID)))
	return "memo:sessions:" + hex.EncodeToString(hash[:])
}

func (s *Service) profileCacheKey(identity sessionIdentity) string {
	return "memo:profile:" + identity.PlayerHash + ":" + identity.RoomHash
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*sessionPayload, error) {
	key := s.sessionKey(sessionID)
	payload := &sessionPayload{}
	if err := s.cache.Get(ctx, key, payload); err != nil {
		return nil, err
	}
	if payload.Preset == "" {
		return nil, nil
	}
	return payload, nil
}

func (s *Service) saveSession(ctx context.Context, sessionID string, payload *sessionPayload) error {
	if payload == nil {
		return fmt.Errorf("cannot save nil trainer session payload")
	}
	payload.UpdatedAt = time.Now()
	return s.cache.Set(ctx, s.sessionKey(sessionID), payload, s.cfg.SessionTTL)
}

func (s *Service) stateFromPayload(payload *sessionPayload) *SessionState {
	groups := make([]GroupView, len(payload.Groups))
	for i, g := range payload.Groups {
		view := GroupView{Label: g.Label, Length: g.Length}
		if payload.Phase == PhaseShowingMemo {
			view.Letters = memory.SplitLetters(payload.Pending[g.Label])
		}
		groups[i] = view
	}

	return &SessionState{
		SessionUUID:      payload.SessionUUID,
		PlayerHash:       payload.PlayerHash,
		RoomHash:         payload.RoomHash,
		PlayerName:       payload.PlayerName,
		Preset:           payload.Preset,
		Phase:            payload.Phase,
		Level:            payload.Level,
		Groups:           groups,
		RecallIndex:      payload.RecallIndex,
		CorrectLetters:   payload.CorrectLetters,
		AttemptedLetters: payload.AttemptedLetters,
		PuzzlesSolved:    payload.PuzzlesSolved,
		Accuracy:         letterAccuracy(payload.CorrectLetters, payload.AttemptedLetters),
		LastMessageRef:   payload.LastMessageRef,
		StartedAt:        payload.StartedAt,
		UpdatedAt:        payload.UpdatedAt,
	}
}

func (s *Service) attachMemoImage(ctx context.Context, state *SessionState) {
	if state == nil || s.renderer == nil || !s.cfg.MemoImage {
		return
	}
	card := MemoCard{Level: state.Level}
	for _, g := range state.Groups {
		card.Groups = append(card.Groups, MemoCardGroup{
			Label:   g.Label,
			Letters: append([]string(nil), g.Letters...),
		})
	}
	data, err := s.renderer.RenderPNG(ctx, card)
	if err != nil {
		s.logger.Warn("failed to render memo card image", zap.Error(err))
		return
	}
	state.MemoImage = data
}

func letterAccuracy(correct, attempted int) int {
	if attempted <= 0 {
		return 0
	}
	return correct * 100 / attempted
}

func normalizeHUDPlayerLabel(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}
	cleaned = strings.NewReplacer("\r", " ", "\n", " ").Replace(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return ""
	}
	runes := []rune(cleaned)
	if len(runes) > playerLabelRuneLimit {
		truncated := strings.TrimSpace(string(runes[:playerLabelRuneLimit]))
		if truncated == "" {
			return ""
		}
		return truncated + "..."
	}
	return cleaned
}

func (s *Service) applyPlayerName(state *SessionState, payload *sessionPayload, meta SessionMeta) {
	if state == nil {
		return
	}
	label := ""
	if payload != nil {
		label = normalizeHUDPlayerLabel(payload.PlayerName)
	}
	if label == "" {
		label = normalizeHUDPlayerLabel(meta.Sender)
	}
	if label == "" {
		label = defaultHUDPlayerLabel
	}
	state.PlayerName = label
	if payload != nil {
		payload.PlayerName = label
	}
}

// Identity exposes the stable hashes profiles and league membership are
// keyed by, so callers outside the service stay consistent with it.
func Identity(meta SessionMeta) (playerHash, roomHash string) {
	id := deriveIdentity(meta)
	return id.PlayerHash, id.RoomHash
}

func deriveIdentity(meta SessionMeta) sessionIdentity {
	sessionID := strings.ToLower(strings.TrimSpace(meta.SessionID))
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	sender := strings.ToLower(strings.TrimSpace(meta.Sender))

	roomHash := hashString(room)
	playerHash := hashString(room + ":" + sender)

	return sessionIdentity{
		SessionID:  sessionID,
		RoomHash:   roomHash,
		PlayerHash: playerHash,
	}
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
