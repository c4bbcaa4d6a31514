package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SanderKaatee/yahtzee/models"
)

// MemoryStore 进程内存储，默认驱动，也用于测试
type MemoryStore struct {
	mu      sync.RWMutex
	rooms   map[string]*models.Room
	players map[string]*models.Player
	records []models.GameRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]*models.Room),
		players: make(map[string]*models.Player),
	}
}

func (m *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return ErrDuplicateKey
	}
	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *MemoryStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryStore) UpdateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return ErrRecordNotFound
	}
	m.rooms[room.ID] = room.Clone()
	return nil
}

func (m *MemoryStore) DeleteRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	for id, p := range m.players {
		if p.RoomID == roomID {
			delete(m.players, id)
		}
	}
	return nil
}

func (m *MemoryStore) ListRooms(_ context.Context, finishedSince time.Time) ([]models.RoomSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RoomSummary, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.Status == models.StatusFinished && !r.UpdatedAt.After(finishedSince) {
			continue
		}
		s := models.RoomSummary{
			ID:         r.ID,
			Name:       r.Name,
			HostID:     r.HostID,
			Status:     r.Status,
			MaxPlayers: r.MaxPlayers,
			TurnTimer:  r.TurnTimer,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		}
		for _, p := range m.players {
			if p.RoomID != r.ID || !p.IsConnected {
				continue
			}
			if p.IsSpectator {
				s.SpectatorCount++
			} else {
				s.PlayerCount++
			}
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) CreatePlayer(_ context.Context, player *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[player.ID]; ok {
		return ErrDuplicateKey
	}
	m.players[player.ID] = player.Clone()
	return nil
}

func (m *MemoryStore) GetPlayer(_ context.Context, playerID string) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) GetPlayerBySession(_ context.Context, sessionID string) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessionID == "" {
		return nil, ErrRecordNotFound
	}
	for _, p := range m.players {
		if p.SessionID == sessionID {
			return p.Clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *MemoryStore) UpdatePlayer(_ context.Context, player *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[player.ID]; !ok {
		return ErrRecordNotFound
	}
	m.players[player.ID] = player.Clone()
	return nil
}

func (m *MemoryStore) DeletePlayer(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, playerID)
	return nil
}

func (m *MemoryStore) ListPlayers(_ context.Context, roomID string) ([]*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Player
	for _, p := range m.players {
		if p.RoomID == roomID {
			out = append(out, p.Clone())
		}
	}
	SortPlayers(out)
	return out, nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, room *models.Room, players []*models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[room.ID] = room.Clone()
	keep := make(map[string]bool, len(players))
	for _, p := range players {
		keep[p.ID] = true
		m.players[p.ID] = p.Clone()
	}
	for id, p := range m.players {
		if p.RoomID == room.ID && !keep[id] {
			delete(m.players, id)
		}
	}
	return nil
}

func (m *MemoryStore) SaveGameRecord(_ context.Context, record *models.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := *record
	rec.Players = append([]models.PlayerInfo(nil), record.Players...)
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) RecentGames(_ context.Context, limit int) ([]models.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]models.GameRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		if len(out) == limit {
			break
		}
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// SortPlayers orders players by turn order then join time, spectators last.
func SortPlayers(players []*models.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i], players[j]
		switch {
		case a.TurnOrder == nil && b.TurnOrder != nil:
			return false
		case a.TurnOrder != nil && b.TurnOrder == nil:
			return true
		case a.TurnOrder != nil && *a.TurnOrder != *b.TurnOrder:
			return *a.TurnOrder < *b.TurnOrder
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
}
