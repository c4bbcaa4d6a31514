package state

import (
	"errors"
	"sync"

	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

// 状态ID
const (
	StateWaiting  = "waiting"
	StatePlaying  = "playing"
	StateFinished = "finished"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(fromID, toID string, condition func() bool)
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
	HandleAction(player Player, action Action) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

// ChangeState runs the registered guard for current -> new, then OnExit/OnEnter.
// Pairs without a registered guard are allowed.
func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	if conditions, exists := sm.transitions[currentID]; exists {
		if condition, exists := conditions[newID]; exists {
			if condition == nil || !condition() {
				sm.mutex.Unlock()
				return ErrTransitionNotAllowed
			}
		}
	}

	old := sm.currentState
	sm.currentState = newState
	sm.mutex.Unlock()

	old.OnExit()
	newState.OnEnter()
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// AddTransition registers a guard. A nil condition forbids the transition.
func (sm *BaseStateMachine) AddTransition(fromID, toID string, condition func() bool) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}
	sm.transitions[fromID][toID] = condition
}

// 房间状态基础结构
type RoomStateBase struct {
	ID   string
	Room RoomContext
}

func (s *RoomStateBase) GetID() string {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {}

func (s *RoomStateBase) OnExit() {}

// NewWaitingState creates a new waiting state.
func NewWaitingState(room RoomContext) *WaitingState {
	return &WaitingState{
		RoomStateBase: RoomStateBase{
			ID:   StateWaiting,
			Room: room,
		},
	}
}

// 等待状态：房间开放，尚无游戏数据
type WaitingState struct {
	RoomStateBase
}

// HandleAction only accepts start-game from the host.
func (s *WaitingState) HandleAction(player Player, action Action) error {
	if action.Type != ActionStart {
		return ErrGameNotStarted
	}
	if player.GetID() != s.Room.GetHostID() {
		return ErrNotHost
	}
	players := s.Room.ActivePlayers()
	if len(players) == 0 {
		return ErrNoPlayers
	}

	for _, p := range players {
		*p.Card() = yahtzee.Scorecard{}
	}
	s.Room.SetGame(yahtzee.NewGameState(s.Room.Now()))

	if err := s.Room.ChangeState(NewPlayingState(s.Room)); err != nil {
		s.Room.SetGame(nil)
		return err
	}
	return nil
}

// NewFinishedState creates the terminal state.
func NewFinishedState(room RoomContext) *FinishedState {
	return &FinishedState{
		RoomStateBase: RoomStateBase{
			ID:   StateFinished,
			Room: room,
		},
	}
}

// 结束状态：游戏数据保留，胜者已确定
type FinishedState struct {
	RoomStateBase
}

func (s *FinishedState) OnEnter() {
	if g := s.Room.Game(); g != nil && g.Winner != nil {
		logger.Log.Infow("game finished", "room_id", s.Room.GetID(),
			"winner", g.Winner.Name, "score", g.Winner.Score)
	}
}

func (s *FinishedState) HandleAction(player Player, action Action) error {
	return ErrGameFinished
}

// RegisterTransitions installs the room lifecycle guards on sm:
// waiting -> playing needs a player, playing -> finished needs every card complete,
// and nothing leaves finished.
func RegisterTransitions(sm StateMachine, room RoomContext) {
	sm.AddTransition(StateWaiting, StateFinished, nil)
	sm.AddTransition(StateWaiting, StatePlaying, func() bool {
		return len(room.ActivePlayers()) > 0 && room.Game() != nil
	})
	// 所有玩家都离开后回到等待
	sm.AddTransition(StatePlaying, StateWaiting, func() bool {
		return len(room.ActivePlayers()) == 0
	})
	sm.AddTransition(StatePlaying, StateFinished, func() bool {
		return AllComplete(room.ActivePlayers())
	})
	sm.AddTransition(StateFinished, StateWaiting, nil)
	sm.AddTransition(StateFinished, StatePlaying, nil)
}
