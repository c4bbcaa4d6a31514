package room

import (
	"time"

	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/state"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

// PlayerView 玩家的公开信息
type PlayerView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	IsConnected bool              `json:"isConnected"`
	IsHost      bool              `json:"isHost"`
	TurnOrder   *int              `json:"turnOrder,omitempty"`
	Scorecard   yahtzee.Scorecard `json:"scorecard"`
	UpperBonus  int               `json:"upperBonus"`
	TotalScore  int               `json:"totalScore"`
}

// View 房间完整快照，广播给房间内所有成员
type View struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	HostID          string             `json:"hostId"`
	Status          models.RoomStatus  `json:"status"`
	MaxPlayers      int                `json:"maxPlayers"`
	TurnTimer       *int               `json:"turnTimer"`
	Players         []PlayerView       `json:"players"`
	Spectators      []PlayerView       `json:"spectators"`
	GameState       *yahtzee.GameState `json:"gameState"`
	CurrentPlayerID string             `json:"currentPlayerId,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func (r *Room) playerView(p *models.Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		IsConnected: p.IsConnected,
		IsHost:      p.ID == r.HostID,
		TurnOrder:   p.TurnOrder,
		Scorecard:   p.Scorecard,
		UpperBonus:  p.Scorecard.UpperBonus(),
		TotalScore:  p.Scorecard.Total(),
	}
}

// View builds the full room snapshot. Callers hold the room lock.
func (r *Room) View() View {
	v := View{
		ID:         r.ID,
		Name:       r.Name,
		HostID:     r.HostID,
		Status:     r.Status(),
		MaxPlayers: r.MaxPlayers,
		TurnTimer:  r.TurnTimer,
		Players:    []PlayerView{},
		Spectators: []PlayerView{},
		GameState:  r.game.Clone(),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	for _, p := range r.activeRecords() {
		v.Players = append(v.Players, r.playerView(p))
	}
	for _, p := range r.players {
		if p.IsSpectator {
			v.Spectators = append(v.Spectators, r.playerView(p))
		}
	}
	if v.Status == models.StatusPlaying {
		if cur, ok := state.CurrentPlayer(r); ok {
			v.CurrentPlayerID = cur.GetID()
		}
	}
	return v
}
