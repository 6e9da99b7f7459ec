package trainer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/park285/Memo-KakaoTalk-bot/internal/domain"
)

var ErrDuplicateRound = errors.New("training round already recorded")

type Repository interface {
	InsertRound(ctx context.Context, round *domain.TrainingRound) (int64, error)
	GetRecentRounds(ctx context.Context, playerHash string, limit int) ([]*domain.TrainingRound, error)
	GetRoundBySession(ctx context.Context, sessionUUID string, level int, playerHash string) (*domain.TrainingRound, error)
	GetProfile(ctx context.Context, playerHash string, roomHash string) (*domain.TrainerProfile, error)
	GetProfilesByHashes(ctx context.Context, playerHashes []string) ([]*domain.TrainerProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.TrainerProfile) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertRound(ctx context.Context, round *domain.TrainingRound) (int64, error) {
	if round == nil {
		return 0, fmt.Errorf("nil training round payload")
	}

	groups, err := json.Marshal(round.Groups)
	if err != nil {
		return 0, fmt.Errorf("marshal round groups: %w", err)
	}

	const query = `
		INSERT INTO training_rounds (
			session_uuid,
			player_hash,
			room_hash,
			preset,
			level,
			groups,
			letters_total,
			letters_correct,
			math_correct,
			full_solve,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_uuid, level) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		round.SessionUUID,
		round.PlayerHash,
		round.RoomHash,
		round.Preset,
		round.Level,
		groups,
		round.LettersTotal,
		round.LettersCorrect,
		round.MathCorrect,
		round.FullSolve,
		round.StartedAt,
		round.EndedAt,
		round.Duration.Milliseconds(),
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateRound
	}
	if err != nil {
		return 0, fmt.Errorf("insert training round: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) GetRecentRounds(ctx context.Context, playerHash string, limit int) ([]*domain.TrainingRound, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			session_uuid,
			player_hash,
			room_hash,
			preset,
			level,
			groups,
			letters_total,
			letters_correct,
			math_correct,
			full_solve,
			started_at,
			ended_at,
			duration_ms
		FROM training_rounds
		WHERE player_hash = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select training rounds: %w", err)
	}
	defer rows.Close()

	rounds := make([]*domain.TrainingRound, 0, limit)
	for rows.Next() {
		var (
			round      domain.TrainingRound
			groupsJSON []byte
			durationMS sql.NullInt64
		)
		if err := rows.Scan(
			&round.ID,
			&round.SessionUUID,
			&round.PlayerHash,
			&round.RoomHash,
			&round.Preset,
			&round.Level,
			&groupsJSON,
			&round.LettersTotal,
			&round.LettersCorrect,
			&round.MathCorrect,
			&round.FullSolve,
			&round.StartedAt,
			&round.EndedAt,
			&durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan training round: %w", err)
		}
		if durationMS.Valid {
			round.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		}
		if err := json.Unmarshal(groupsJSON, &round.Groups); err != nil {
			return nil, fmt.Errorf("unmarshal round groups: %w", err)
		}
		rounds = append(rounds, &round)
	}
	return rounds, nil
}

func (r *repository) GetRoundBySession(ctx context.Context, sessionUUID string, level int, playerHash string) (*domain.TrainingRound, error) {
	const query = `
		SELECT
			id,
			session_uuid,
			player_hash,
			room_hash,
			preset,
			level,
			groups,
			letters_total,
			letters_correct,
			math_correct,
			full_solve,
			started_at,
			ended_at,
			duration_ms
		FROM training_rounds
		WHERE session_uuid = $1 AND level = $2 AND player_hash = $3
		ORDER BY ended_at DESC
		LIMIT 1`

	var (
		round      domain.TrainingRound
		groupsJSON []byte
		durationMS sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, query, sessionUUID, level, playerHash).Scan(
		&round.ID,
		&round.SessionUUID,
		&round.PlayerHash,
		&round.RoomHash,
		&round.Preset,
		&round.Level,
		&groupsJSON,
		&round.LettersTotal,
		&round.LettersCorrect,
		&round.MathCorrect,
		&round.FullSolve,
		&round.StartedAt,
		&round.EndedAt,
		&durationMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select training round by session: %w", err)
	}

	if durationMS.Valid {
		round.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(groupsJSON, &round.Groups); err != nil {
		return nil, fmt.Errorf("unmarshal round groups: %w", err)
	}
	return &round, nil
}

func (r *repository) GetProfile(ctx context.Context, playerHash string, roomHash string) (*domain.TrainerProfile, error) {
	const query = `
		SELECT
			player_hash,
			room_hash,
			preferred_preset,
			correct_letters,
			attempted_letters,
			puzzles_solved,
			rounds_played,
			best_level,
			solve_streak,
			best_streak,
			last_preset,
			last_played_at,
			updated_at,
			created_at
		FROM trainer_profiles
		WHERE player_hash = $1 AND room_hash = $2
		LIMIT 1`

	var profile domain.TrainerProfile
	err := r.db.QueryRowContext(ctx, query, playerHash, roomHash).Scan(
		&profile.PlayerHash,
		&profile.RoomHash,
		&profile.PreferredPreset,
		&profile.CorrectLetters,
		&profile.AttemptedLetters,
		&profile.PuzzlesSolved,
		&profile.RoundsPlayed,
		&profile.BestLevel,
		&profile.SolveStreak,
		&profile.BestStreak,
		&profile.LastPreset,
		&profile.LastPlayedAt,
		&profile.UpdatedAt,
		&profile.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select trainer profile: %w", err)
	}
	return &profile, nil
}

func (r *repository) GetProfilesByHashes(ctx context.Context, playerHashes []string) ([]*domain.TrainerProfile, error) {
	if len(playerHashes) == 0 {
		return nil, nil
	}
	const query = `
		SELECT
			player_hash,
			room_hash,
			preferred_preset,
			correct_letters,
			attempted_letters,
			puzzles_solved,
			rounds_played,
			best_level,
			solve_streak,
			best_streak,
			last_preset,
			last_played_at,
			updated_at,
			created_at
		FROM trainer_profiles
		WHERE player_hash = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(playerHashes))
	if err != nil {
		return nil, fmt.Errorf("select trainer profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*domain.TrainerProfile, 0, len(playerHashes))
	for rows.Next() {
		var profile domain.TrainerProfile
		if err := rows.Scan(
			&profile.PlayerHash,
			&profile.RoomHash,
			&profile.PreferredPreset,
			&profile.CorrectLetters,
			&profile.AttemptedLetters,
			&profile.PuzzlesSolved,
			&profile.RoundsPlayed,
			&profile.BestLevel,
			&profile.SolveStreak,
			&profile.BestStreak,
			&profile.LastPreset,
			&profile.LastPlayedAt,
			&profile.UpdatedAt,
			&profile.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trainer profile: %w", err)
		}
		profiles = append(profiles, &profile)
	}
	return profiles, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.TrainerProfile) error {
	if profile == nil {
		return fmt.Errorf("nil trainer profile payload")
	}
	const query = `
		INSERT INTO trainer_profiles (
			player_hash,
			room_hash,
			preferred_preset,
			correct_letters,
			attempted_letters,
			puzzles_solved,
			rounds_played,
			best_level,
			solve_streak,
			best_streak,
			last_preset,
			last_played_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (player_hash, room_hash)
		DO UPDATE SET
			preferred_preset = EXCLUDED.preferred_preset,
			correct_letters = EXCLUDED.correct_letters,
			attempted_letters = EXCLUDED.attempted_letters,
			puzzles_solved = EXCLUDED.puzzles_solved,
			rounds_played = EXCLUDED.rounds_played,
			best_level = EXCLUDED.best_level,
			solve_streak = EXCLUDED.solve_streak,
			best_streak = EXCLUDED.best_streak,
			last_preset = EXCLUDED.last_preset,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.PlayerHash,
		profile.RoomHash,
		profile.PreferredPreset,
		profile.CorrectLetters,
		profile.AttemptedLetters,
		profile.PuzzlesSolved,
		profile.RoundsPlayed,
		profile.BestLevel,
		profile.SolveStreak,
		profile.BestStreak,
		profile.LastPreset,
		profile.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert trainer profile: %w", err)
	}
	return nil
}
