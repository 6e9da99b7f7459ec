package league

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Memo-KakaoTalk-bot/internal/domain"
	"github.com/park285/Memo-KakaoTalk-bot/internal/obslog"
)

// ProfileSource resolves member hashes to stored trainer profiles for the
// standings table.
type ProfileSource interface {
	GetProfilesByHashes(ctx context.Context, playerHashes []string) ([]*domain.TrainerProfile, error)
}

type Manager struct {
	rdb      *redis.Client
	store    *Store
	profiles ProfileSource
	limit    int
}

func NewManager(rdb *redis.Client, profiles ProfileSource, memberLimit int) *Manager {
	if memberLimit <= 0 {
		memberLimit = 16
	}
	return &Manager{rdb: rdb, store: NewStore(rdb), profiles: profiles, limit: memberLimit}
}

func (m *Manager) Create(ctx context.Context, playerHash, playerName, name string) (*CreateResult, error) {
	playerHash = strings.TrimSpace(playerHash)
	name = strings.TrimSpace(name)
	if playerHash == "" || name == "" {
		return nil, ErrInvalidArgs
	}
	if current, err := m.store.LeagueOfPlayer(ctx, playerHash); err != nil {
		return nil, err
	} else if current != "" {
		return nil, ErrAlreadyInLeague
	}

	for i := 0; i < 5; i++ {
		code, err := codeGen()
		if err != nil {
			return nil, err
		}
		// optimistic: only set if key doesn't exist
		ok, err := m.rdb.SetNX(ctx, m.store.keyMeta(code), []byte("{}"), ttlLeague).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		meta := &LeagueMeta{
			ID:          code,
			Name:        name,
			CreatedAt:   time.Now(),
			CreatorHash: playerHash,
			CreatorName: strings.TrimSpace(playerName),
			MemberLimit: m.limit,
		}
		if err := m.store.SaveMeta(ctx, code, meta); err != nil {
			return nil, err
		}
		if err := m.store.AddMember(ctx, code, playerHash, playerName); err != nil {
			return nil, err
		}
		obslog.L().Info("league_make", zap.String("code", code), zap.String("name", name), zap.String("creator_hash", playerHash))
		return &CreateResult{Code: code, Meta: meta}, nil
	}
	return nil, fmt.Errorf("failed to allocate league code")
}

func (m *Manager) Join(ctx context.Context, code, playerHash, displayName string) (*JoinResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	playerHash = strings.TrimSpace(playerHash)
	if code == "" || playerHash == "" {
		return nil, ErrInvalidArgs
	}

	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrLeagueGone
	}

	if current, err := m.store.LeagueOfPlayer(ctx, playerHash); err != nil {
		return nil, err
	} else if current != "" {
		return nil, ErrAlreadyInLeague
	}

	limit := meta.MemberLimit
	if limit <= 0 {
		limit = m.limit
	}

	// WATCH the member set to stop races past the cap
	membersKey := m.store.keyMembers(code)
	err = m.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cnt, err := tx.SCard(ctx, membersKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		if cnt >= int64(limit) {
			return ErrLeagueFull
		}
		pipe := tx.TxPipeline()
		pipe.SAdd(ctx, membersKey, playerHash)
		pipe.Expire(ctx, membersKey, ttlLeague)
		if strings.TrimSpace(displayName) != "" {
			pipe.HSet(ctx, m.store.keyNames(code), playerHash, displayName)
			pipe.Expire(ctx, m.store.keyNames(code), ttlLeague)
		}
		pipe.Set(ctx, m.store.keyPlayerIdx(playerHash), code, ttlLeague)
		_, pErr := pipe.Exec(ctx)
		return pErr
	}, membersKey)
	if err != nil {
		if err != ErrLeagueFull {
			obslog.L().Warn("league_join_error", zap.String("code", code), zap.String("player_hash", playerHash), zap.Error(err))
		}
		return nil, err
	}

	cnt, _ := m.store.MemberCount(ctx, code)
	obslog.L().Info("league_join", zap.String("code", code), zap.String("player_hash", playerHash), zap.Int64("members", cnt))
	return &JoinResult{Meta: meta, Members: int(cnt)}, nil
}

// Leave removes the player from their league and reports which one it was.
func (m *Manager) Leave(ctx context.Context, playerHash string) (string, error) {
	playerHash = strings.TrimSpace(playerHash)
	if playerHash == "" {
		return "", ErrInvalidArgs
	}
	code, err := m.store.LeagueOfPlayer(ctx, playerHash)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrNotInLeague
	}
	if err := m.store.RemoveMember(ctx, code, playerHash); err != nil {
		return "", err
	}
	obslog.L().Info("league_leave", zap.String("code", code), zap.String("player_hash", playerHash))
	return code, nil
}

// LeagueOfPlayer reports the code of the league the player belongs to, empty
// when they have none.
func (m *Manager) LeagueOfPlayer(ctx context.Context, playerHash string) (string, error) {
	return m.store.LeagueOfPlayer(ctx, strings.TrimSpace(playerHash))
}

// Table builds the standings of a league: full solves first, accuracy as the
// tie breaker. Members without a stored profile rank with zeroes.
func (m *Manager) Table(ctx context.Context, code string) (*LeagueMeta, []TableRow, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil, ErrInvalidArgs
	}
	meta, err := m.store.LoadMeta(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if meta == nil {
		return nil, nil, ErrLeagueGone
	}

	hashes, err := m.store.MemberHashes(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	names, err := m.store.MemberNames(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	byHash := make(map[string]*domain.TrainerProfile, len(hashes))
	if m.profiles != nil && len(hashes) > 0 {
		profiles, err := m.profiles.GetProfilesByHashes(ctx, hashes)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range profiles {
			if p != nil {
				byHash[p.PlayerHash] = p
			}
		}
	}

	rows := make([]TableRow, 0, len(hashes))
	for _, hash := range hashes {
		row := TableRow{PlayerHash: hash, DisplayName: names[hash]}
		if row.DisplayName == "" {
			row.DisplayName = shortHash(hash)
		}
		if p := byHash[hash]; p != nil {
			row.FullSolves = p.PuzzlesSolved
			row.Accuracy = p.Accuracy()
			row.RoundsPlayed = p.RoundsPlayed
			row.BestLevel = p.BestLevel
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FullSolves != rows[j].FullSolves {
			return rows[i].FullSolves > rows[j].FullSolves
		}
		if rows[i].Accuracy != rows[j].Accuracy {
			return rows[i].Accuracy > rows[j].Accuracy
		}
		if rows[i].RoundsPlayed != rows[j].RoundsPlayed {
			return rows[i].RoundsPlayed > rows[j].RoundsPlayed
		}
		return rows[i].DisplayName < rows[j].DisplayName
	})
	return meta, rows, nil
}

func shortHash(hash string) string {
	if len(hash) > 6 {
		return hash[:6]
	}
	return hash
}
