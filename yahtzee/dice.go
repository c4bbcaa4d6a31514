package yahtzee

import (
	"math/rand/v2"
	"time"
)

// Source yields integers in [0, n). Tests inject a fixed sequence.
type Source interface {
	Intn(n int) int
}

type globalSource struct{}

func (globalSource) Intn(n int) int { return rand.IntN(n) }

// Roller 生成骰子结果
type Roller struct {
	src Source
}

// NewRoller returns a roller drawing from src, or from the global generator when src is nil.
func NewRoller(src Source) *Roller {
	if src == nil {
		src = globalSource{}
	}
	return &Roller{src: src}
}

// Face draws one uniform face in 1..6.
func (r *Roller) Face() int {
	return r.src.Intn(6) + 1
}

// Roll re-draws every unheld die; held dice keep their value.
func (r *Roller) Roll(d Dice, held [5]bool) Dice {
	for i := range d {
		if !held[i] {
			d[i] = r.Face()
		}
	}
	return d
}

// Winner 获胜者信息
type Winner struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// GameState is the per-room game snapshot carried while a room is playing or finished.
type GameState struct {
	Dice               Dice      `json:"dice"`
	Held               [5]bool   `json:"heldDice"`
	RollsLeft          int       `json:"rollsLeft"`
	TurnNumber         int       `json:"turnNumber"`
	CurrentPlayerIndex int       `json:"currentPlayerIndex"`
	IsRolling          bool      `json:"isRolling"`
	TurnStartTime      time.Time `json:"turnStartTime"`
	Winner             *Winner   `json:"winner"`
}

const RollsPerTurn = 3

// NewGameState returns the state at the start of the first turn.
func NewGameState(now time.Time) *GameState {
	return &GameState{
		Dice:          Dice{1, 1, 1, 1, 1},
		RollsLeft:     RollsPerTurn,
		TurnNumber:    1,
		TurnStartTime: now,
	}
}

// ResetTurn clears dice, holds and the roll counter for the next player.
func (g *GameState) ResetTurn(now time.Time) {
	g.Dice = Dice{1, 1, 1, 1, 1}
	g.Held = [5]bool{}
	g.RollsLeft = RollsPerTurn
	g.IsRolling = false
	g.TurnStartTime = now
}

// Clone returns a deep copy.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	c := *g
	if g.Winner != nil {
		w := *g.Winner
		c.Winner = &w
	}
	return &c
}
