// models/models.go
package models

import (
	"time"

	"github.com/SanderKaatee/yahtzee/yahtzee"
)

// RoomStatus 房间状态
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

const DefaultMaxPlayers = 8

// Room 房间记录
type Room struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	HostID             string             `json:"hostId"`
	Status             RoomStatus         `json:"status"`
	MaxPlayers         int                `json:"maxPlayers"`
	TurnTimer          *int               `json:"turnTimer"` // 秒，仅存储
	CurrentPlayerIndex int                `json:"currentPlayerIndex"`
	NextTurnOrder      int                `json:"-"`
	GameState          *yahtzee.GameState `json:"gameState"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Clone returns a deep copy.
func (r *Room) Clone() *Room {
	c := *r
	if r.TurnTimer != nil {
		v := *r.TurnTimer
		c.TurnTimer = &v
	}
	c.GameState = r.GameState.Clone()
	return &c
}

// Player 玩家记录
type Player struct {
	ID          string            `json:"id"`
	RoomID      string            `json:"roomId"`
	SessionID   string            `json:"-"`
	Name        string            `json:"name"`
	IsSpectator bool              `json:"isSpectator"`
	IsConnected bool              `json:"isConnected"`
	TurnOrder   *int              `json:"turnOrder"`
	Scorecard   yahtzee.Scorecard `json:"scorecard"`
	JoinedAt    time.Time         `json:"joinedAt"`
}

func (p *Player) GetID() string { return p.ID }
func (p *Player) GetName() string { return p.Name }
func (p *Player) Card() *yahtzee.Scorecard { return &p.Scorecard }

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	c := *p
	if p.TurnOrder != nil {
		v := *p.TurnOrder
		c.TurnOrder = &v
	}
	return &c
}

// RoomSummary 大厅房间列表条目，只统计在线玩家
type RoomSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	HostID         string     `json:"hostId"`
	Status         RoomStatus `json:"status"`
	MaxPlayers     int        `json:"maxPlayers"`
	TurnTimer      *int       `json:"turnTimer"`
	PlayerCount    int        `json:"playerCount"`
	SpectatorCount int        `json:"spectatorCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// GameRecord 游戏记录模型
type GameRecord struct {
	RoomID     string       `json:"room_id"`
	RoomName   string       `json:"room_name"`
	WinnerID   string       `json:"winner_id"`
	WinnerName string       `json:"winner_name"`
	Players    []PlayerInfo `json:"players"`
	Turns      int          `json:"turns"`
	CreatedAt  time.Time    `json:"created_at"`
}

// PlayerInfo 玩家信息（用于游戏记录）
type PlayerInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
}
