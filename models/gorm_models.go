// models/gorm_models.go
package models

import (
	"time"

	"github.com/SanderKaatee/yahtzee/yahtzee"
)

// GormRoom 房间表。布尔和整数列不设 default，否则零值会被 GORM 跳过。
type GormRoom struct {
	ID                 string             `gorm:"primaryKey;size:16"`
	Name               string             `gorm:"not null"`
	HostID             string             `gorm:"size:36"`
	Status             string             `gorm:"index;not null"`
	MaxPlayers         int                `gorm:"not null"`
	TurnTimer          *int
	CurrentPlayerIndex int                `gorm:"not null"`
	NextTurnOrder      int                `gorm:"not null"`
	GameState          *yahtzee.GameState `gorm:"type:jsonb;serializer:json"`
	CreatedAt          time.Time          `gorm:"index"`
	UpdatedAt          time.Time
}

func (GormRoom) TableName() string { return "rooms" }

// GormPlayer 玩家表
type GormPlayer struct {
	ID          string            `gorm:"primaryKey;size:36"`
	RoomID      *string           `gorm:"index;size:16"`
	SessionID   *string           `gorm:"index;size:36"`
	Name        string            `gorm:"not null"`
	IsSpectator bool              `gorm:"not null"`
	IsConnected bool              `gorm:"not null"`
	TurnOrder   *int
	Scorecard   yahtzee.Scorecard `gorm:"type:jsonb;serializer:json"`
	JoinedAt    time.Time
}

func (GormPlayer) TableName() string { return "players" }

// GormGameRecord 游戏记录表
type GormGameRecord struct {
	ID         uint         `gorm:"primaryKey"`
	RoomID     string       `gorm:"index;not null"`
	RoomName   string       `gorm:"not null"`
	WinnerID   string       `gorm:"not null"`
	WinnerName string       `gorm:"not null"`
	Players    []PlayerInfo `gorm:"type:jsonb;serializer:json;not null"`
	Turns      int          `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"index"`
}

func (GormGameRecord) TableName() string { return "game_records" }

// GormRoomSummary is the row shape of the lobby listing query.
type GormRoomSummary struct {
	GormRoom
	PlayerCount    int
	SpectatorCount int
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ToGormRoom converts a room record to its row.
func ToGormRoom(r *Room) *GormRoom {
	return &GormRoom{
		ID:                 r.ID,
		Name:               r.Name,
		HostID:             r.HostID,
		Status:             string(r.Status),
		MaxPlayers:         r.MaxPlayers,
		TurnTimer:          r.TurnTimer,
		CurrentPlayerIndex: r.CurrentPlayerIndex,
		NextTurnOrder:      r.NextTurnOrder,
		GameState:          r.GameState,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// ToRoom converts a row back to a room record.
func (g *GormRoom) ToRoom() *Room {
	return &Room{
		ID:                 g.ID,
		Name:               g.Name,
		HostID:             g.HostID,
		Status:             RoomStatus(g.Status),
		MaxPlayers:         g.MaxPlayers,
		TurnTimer:          g.TurnTimer,
		CurrentPlayerIndex: g.CurrentPlayerIndex,
		NextTurnOrder:      g.NextTurnOrder,
		GameState:          g.GameState,
		CreatedAt:          g.CreatedAt,
		UpdatedAt:          g.UpdatedAt,
	}
}

// ToSummary converts a listing row.
func (g *GormRoomSummary) ToSummary() RoomSummary {
	return RoomSummary{
		ID:             g.ID,
		Name:           g.Name,
		HostID:         g.HostID,
		Status:         RoomStatus(g.Status),
		MaxPlayers:     g.MaxPlayers,
		TurnTimer:      g.TurnTimer,
		PlayerCount:    g.PlayerCount,
		SpectatorCount: g.SpectatorCount,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}

// ToGormPlayer converts a player record to its row.
func ToGormPlayer(p *Player) *GormPlayer {
	return &GormPlayer{
		ID:          p.ID,
		RoomID:      nullable(p.RoomID),
		SessionID:   nullable(p.SessionID),
		Name:        p.Name,
		IsSpectator: p.IsSpectator,
		IsConnected: p.IsConnected,
		TurnOrder:   p.TurnOrder,
		Scorecard:   p.Scorecard,
		JoinedAt:    p.JoinedAt,
	}
}

// ToPlayer converts a row back to a player record.
func (g *GormPlayer) ToPlayer() *Player {
	return &Player{
		ID:          g.ID,
		RoomID:      deref(g.RoomID),
		SessionID:   deref(g.SessionID),
		Name:        g.Name,
		IsSpectator: g.IsSpectator,
		IsConnected: g.IsConnected,
		TurnOrder:   g.TurnOrder,
		Scorecard:   g.Scorecard,
		JoinedAt:    g.JoinedAt,
	}
}

// ToGormGameRecord converts a finished game to its row.
func ToGormGameRecord(r *GameRecord) *GormGameRecord {
	return &GormGameRecord{
		RoomID:     r.RoomID,
		RoomName:   r.RoomName,
		WinnerID:   r.WinnerID,
		WinnerName: r.WinnerName,
		Players:    r.Players,
		Turns:      r.Turns,
		CreatedAt:  r.CreatedAt,
	}
}

// ToGameRecord converts a row back.
func (g *GormGameRecord) ToGameRecord() GameRecord {
	return GameRecord{
		RoomID:     g.RoomID,
		RoomName:   g.RoomName,
		WinnerID:   g.WinnerID,
		WinnerName: g.WinnerName,
		Players:    g.Players,
		Turns:      g.Turns,
		CreatedAt:  g.CreatedAt,
	}
}
