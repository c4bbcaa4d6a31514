// state/interfaces.go
package state

import (
	"time"

	"github.com/SanderKaatee/yahtzee/yahtzee"
)

// Player defines the minimal interface for a player entity that a state needs to interact with.
type Player interface {
	GetID() string
	GetName() string
	Card() *yahtzee.Scorecard
}

// RoomContext defines the interface that a Room must implement to be managed by the state machine.
// This breaks the import cycle between room and state.
type RoomContext interface {
	GetID() string
	GetHostID() string
	// ActivePlayers is the live non-spectator roster sorted by turn order.
	ActivePlayers() []Player
	Game() *yahtzee.GameState
	SetGame(g *yahtzee.GameState)
	Roller() *yahtzee.Roller
	Now() time.Time
	ChangeState(newState State) error
}

// ActionType 玩家动作类型
type ActionType string

const (
	ActionStart ActionType = "start-game"
	ActionRoll  ActionType = "roll-dice"
	ActionHold  ActionType = "toggle-hold"
	ActionScore ActionType = "score-category"
)

// Action is one turn-level request from a player.
type Action struct {
	Type     ActionType
	DieIndex int
	Category yahtzee.Category
	// Target is the category a guaranteed roll aims for. Ignored unless the player qualifies.
	Target yahtzee.Category
}
