package state

import (
	"time"

	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

// PlayingState 游戏进行状态：掷骰、保留、计分、轮转
type PlayingState struct {
	RoomStateBase
}

// NewPlayingState creates the in-game state. The room's game must already be set.
func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{
		RoomStateBase: RoomStateBase{
			ID:   StatePlaying,
			Room: room,
		},
	}
}

func (s *PlayingState) OnEnter() {
	logger.Log.Infof("Room %s started with %d players", s.Room.GetID(), len(s.Room.ActivePlayers()))
}

// HandleAction handles actions from players.
func (s *PlayingState) HandleAction(player Player, action Action) error {
	switch action.Type {
	case ActionStart:
		return ErrGameInProgress
	case ActionRoll:
		return s.roll(player, action.Target)
	case ActionHold:
		return s.toggleHold(player, action.DieIndex)
	case ActionScore:
		return s.score(player, action.Category)
	}
	return ErrGameInProgress
}

// CurrentPlayer resolves the game's index against the live roster.
func CurrentPlayer(room RoomContext) (Player, bool) {
	g := room.Game()
	if g == nil {
		return nil, false
	}
	players := room.ActivePlayers()
	if g.CurrentPlayerIndex < 0 || g.CurrentPlayerIndex >= len(players) {
		return nil, false
	}
	return players[g.CurrentPlayerIndex], true
}

// authorize checks turn ownership and that the last roll has settled.
func (s *PlayingState) authorize(player Player) (*yahtzee.GameState, error) {
	current, ok := CurrentPlayer(s.Room)
	if !ok || current.GetID() != player.GetID() {
		return nil, ErrNotYourTurn
	}
	g := s.Room.Game()
	if g.IsRolling {
		return nil, ErrDiceRolling
	}
	return g, nil
}

func (s *PlayingState) roll(player Player, target yahtzee.Category) error {
	g, err := s.authorize(player)
	if err != nil {
		return err
	}
	if g.RollsLeft <= 0 {
		return ErrNoRollsLeft
	}

	if Guaranteed(player, target) {
		g.Dice = s.Room.Roller().Guaranteed(g.Dice, g.Held, target)
	} else {
		g.Dice = s.Room.Roller().Roll(g.Dice, g.Held)
	}
	g.RollsLeft--
	g.IsRolling = true
	return nil
}

// Guaranteed reports whether a roll by player aiming at target uses guaranteed generation.
func Guaranteed(player Player, target yahtzee.Category) bool {
	return target.Valid() && yahtzee.CheatEnabled(player.GetName())
}

func (s *PlayingState) toggleHold(player Player, die int) error {
	g, err := s.authorize(player)
	if err != nil {
		return err
	}
	if die < 0 || die >= len(g.Held) {
		return ErrInvalidDie
	}
	switch g.RollsLeft {
	case yahtzee.RollsPerTurn:
		return ErrMustRollFirst
	case 0:
		return ErrMustScore
	}
	g.Held[die] = !g.Held[die]
	return nil
}

func (s *PlayingState) score(player Player, category yahtzee.Category) error {
	g, err := s.authorize(player)
	if err != nil {
		return err
	}
	if !category.Valid() {
		return ErrUnknownCategory
	}
	if g.RollsLeft == yahtzee.RollsPerTurn {
		return ErrMustRollFirst
	}
	card := player.Card()
	if card.IsScored(category) {
		return ErrCategoryScored
	}

	if yahtzee.CanScoreYahtzeeBonus(g.Dice, *card) {
		card.YahtzeeBonus += yahtzee.YahtzeeBonusPoints
	}
	card.Set(category, yahtzee.Score(g.Dice, category))

	players := s.Room.ActivePlayers()
	if AllComplete(players) {
		return Finish(s.Room)
	}
	Advance(g, len(players), s.Room.Now())
	return nil
}

// AllComplete reports whether every scorecard is full. An empty roster is never complete.
func AllComplete(players []Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !p.Card().Complete() {
			return false
		}
	}
	return true
}

// Finish records the winner and moves the room to finished.
func Finish(room RoomContext) error {
	players := room.ActivePlayers()
	standings := make([]yahtzee.Standing, 0, len(players))
	for _, p := range players {
		standings = append(standings, yahtzee.Standing{
			PlayerID: p.GetID(),
			Name:     p.GetName(),
			Score:    p.Card().Total(),
		})
	}
	best, ok := yahtzee.Leader(standings)
	if !ok {
		return ErrNoPlayers
	}

	g := room.Game()
	g.Winner = &yahtzee.Winner{PlayerID: best.PlayerID, Name: best.Name, Score: best.Score}
	g.IsRolling = false
	if err := room.ChangeState(NewFinishedState(room)); err != nil {
		g.Winner = nil
		return err
	}
	return nil
}

// Abandon returns a room whose last player left mid-game to waiting and drops the game.
func Abandon(room RoomContext) error {
	if err := room.ChangeState(NewWaitingState(room)); err != nil {
		return err
	}
	room.SetGame(nil)
	return nil
}

// Advance moves to the next player; the turn number grows when the index wraps to 0.
func Advance(g *yahtzee.GameState, count int, now time.Time) {
	if count <= 0 {
		g.CurrentPlayerIndex = 0
		g.ResetTurn(now)
		return
	}
	g.CurrentPlayerIndex = (g.CurrentPlayerIndex + 1) % count
	if g.CurrentPlayerIndex == 0 {
		g.TurnNumber++
	}
	g.ResetTurn(now)
}

// Reseat keeps the order of play after the roster entry at pos has been removed.
// Earlier seats shift the index down; removing the current player hands the turn to
// whoever followed them, wrapping to a new round when they were last.
func Reseat(g *yahtzee.GameState, pos, remaining int, now time.Time) {
	switch {
	case pos < 0:
		return
	case remaining == 0:
		g.CurrentPlayerIndex = 0
		g.ResetTurn(now)
	case pos < g.CurrentPlayerIndex:
		g.CurrentPlayerIndex--
	case pos == g.CurrentPlayerIndex:
		if g.CurrentPlayerIndex >= remaining {
			g.CurrentPlayerIndex = 0
			g.TurnNumber++
		}
		g.ResetTurn(now)
	}
}
