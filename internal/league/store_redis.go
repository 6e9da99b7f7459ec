package league

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ttlLeague = 30 * 24 * time.Hour
)

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) keyMeta(code string) string      { return "league:" + strings.TrimSpace(code) }
func (s *Store) keyMembers(code string) string   { return s.keyMeta(code) + ":members" }
func (s *Store) keyNames(code string) string     { return s.keyMeta(code) + ":names" }
func (s *Store) keyPlayerIdx(hash string) string { return "league:index:player:" + strings.TrimSpace(hash) }

func (s *Store) SaveMeta(ctx context.Context, code string, meta *LeagueMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyMeta(code), raw, ttlLeague).Err(); err != nil {
		return err
	}
	// keep companion keys on the same clock
	_ = s.rdb.Expire(ctx, s.keyMembers(code), ttlLeague).Err()
	_ = s.rdb.Expire(ctx, s.keyNames(code), ttlLeague).Err()
	return nil
}

func (s *Store) LoadMeta(ctx context.Context, code string) (*LeagueMeta, error) {
	raw, err := s.rdb.Get(ctx, s.keyMeta(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m LeagueMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) AddMember(ctx context.Context, code, playerHash, displayName string) error {
	if strings.TrimSpace(playerHash) == "" {
		return nil
	}
	if err := s.rdb.SAdd(ctx, s.keyMembers(code), playerHash).Err(); err != nil {
		return err
	}
	_ = s.rdb.Expire(ctx, s.keyMembers(code), ttlLeague).Err()
	if strings.TrimSpace(displayName) != "" {
		if err := s.rdb.HSet(ctx, s.keyNames(code), playerHash, displayName).Err(); err != nil {
			return err
		}
		_ = s.rdb.Expire(ctx, s.keyNames(code), ttlLeague).Err()
	}
	// one league per player, so the index is a plain key
	if err := s.rdb.Set(ctx, s.keyPlayerIdx(playerHash), code, ttlLeague).Err(); err != nil {
		return err
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, code, playerHash string) error {
	if err := s.rdb.SRem(ctx, s.keyMembers(code), playerHash).Err(); err != nil {
		return err
	}
	_ = s.rdb.HDel(ctx, s.keyNames(code), playerHash).Err()
	return s.rdb.Del(ctx, s.keyPlayerIdx(playerHash)).Err()
}

func (s *Store) MemberHashes(ctx context.Context, code string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyMembers(code)).Result()
}

func (s *Store) MemberNames(ctx context.Context, code string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, s.keyNames(code)).Result()
}

func (s *Store) MemberCount(ctx context.Context, code string) (int64, error) {
	return s.rdb.SCard(ctx, s.keyMembers(code)).Result()
}

func (s *Store) LeagueOfPlayer(ctx context.Context, playerHash string) (string, error) {
	code, err := s.rdb.Get(ctx, s.keyPlayerIdx(playerHash)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// codeGen returns `LG-` + 6 upper alnum.
func codeGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return fmt.Sprintf("LG-%s", string(b)), nil
}
