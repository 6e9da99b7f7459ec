package trainer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/park285/Memo-KakaoTalk-bot/internal/domain"
)

// memrepo is a development-only in-memory repository implementation used when
// no DB is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	roundsByID    map[int64]*domain.TrainingRound
	roundsByUser  map[string][]*domain.TrainingRound // playerHash -> slice (append, latest last)
	roundsByIndex map[string]*domain.TrainingRound   // sessionUUID|level|playerHash -> round

	profiles map[string]*domain.TrainerProfile // playerHash|roomHash -> profile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		roundsByID:    make(map[int64]*domain.TrainingRound),
		roundsByUser:  make(map[string][]*domain.TrainingRound),
		roundsByIndex: make(map[string]*domain.TrainingRound),
		profiles:      make(map[string]*domain.TrainerProfile),
	}
}

func (m *memrepo) InsertRound(ctx context.Context, round *domain.TrainingRound) (int64, error) {
	if round == nil {
		return 0, fmt.Errorf("nil training round payload")
	}

	key := m.roundKey(round.SessionUUID, round.Level, round.PlayerHash)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.roundsByIndex[key]; exists {
		return 0, ErrDuplicateRound
	}

	m.nextID++
	id := m.nextID
	copy := *round
	copy.ID = id
	copy.Groups = append([]domain.RoundGroup(nil), round.Groups...)

	m.roundsByID[id] = &copy
	m.roundsByIndex[key] = &copy
	m.roundsByUser[round.PlayerHash] = append(m.roundsByUser[round.PlayerHash], &copy)

	return id, nil
}

func (m *memrepo) GetRecentRounds(ctx context.Context, playerHash string, limit int) ([]*domain.TrainingRound, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.roundsByUser[playerHash]
	if len(list) == 0 {
		return []*domain.TrainingRound{}, nil
	}
	// Sort by EndedAt desc (fallback to ID desc)
	items := append([]*domain.TrainingRound(nil), list...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetRoundBySession(ctx context.Context, sessionUUID string, level int, playerHash string) (*domain.TrainingRound, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.roundsByIndex[m.roundKey(sessionUUID, level, playerHash)]; ok && r != nil {
		copy := *r
		return &copy, nil
	}
	return nil, nil
}

func (m *memrepo) GetProfile(ctx context.Context, playerHash string, roomHash string) (*domain.TrainerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[m.profileKey(playerHash, roomHash)]; ok && p != nil {
		copy := *p
		return &copy, nil
	}
	return nil, nil
}

func (m *memrepo) GetProfilesByHashes(ctx context.Context, playerHashes []string) ([]*domain.TrainerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profiles := make([]*domain.TrainerProfile, 0, len(playerHashes))
	for _, p := range m.profiles {
		if p == nil {
			continue
		}
		for _, hash := range playerHashes {
			if p.PlayerHash == hash {
				copy := *p
				profiles = append(profiles, &copy)
				break
			}
		}
	}
	return profiles, nil
}

func (m *memrepo) UpsertProfile(ctx context.Context, profile *domain.TrainerProfile) error {
	if profile == nil {
		return nil
	}
	key := m.profileKey(profile.PlayerHash, profile.RoomHash)
	copy := *profile
	m.mu.Lock()
	m.profiles[key] = &copy
	m.mu.Unlock()
	return nil
}

func (m *memrepo) roundKey(sessionUUID string, level int, playerHash string) string {
	return strings.TrimSpace(sessionUUID) + "|" + strconv.Itoa(level) + "|" + strings.TrimSpace(playerHash)
}

func (m *memrepo) profileKey(playerHash, roomHash string) string {
	return strings.TrimSpace(playerHash) + "|" + strings.TrimSpace(roomHash)
}
