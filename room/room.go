// room/room.go
package room

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/state"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

var (
	ErrRoomFull       = errors.New("room is full")
	ErrPlayerNotFound = errors.New("player not found")
	ErrCannotKickSelf = errors.New("you cannot kick yourself")
)

// Room 是游戏房间的核心结构。调用方持有 Lock 期间独占房间的全部状态。
type Room struct {
	ID            string
	Name          string
	HostID        string
	MaxPlayers    int
	TurnTimer     *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StateMachine  state.StateMachine
	nextTurnOrder int
	players       []*models.Player // join order
	game          *yahtzee.GameState
	roller        *yahtzee.Roller
	clock         func() time.Time
	mu            sync.Mutex
	closed        bool
}

// Options configures a new room.
type Options struct {
	ID         string
	Name       string
	MaxPlayers int
	TurnTimer  *int
	Roller     *yahtzee.Roller
	Clock      func() time.Time
}

// NewRoom 创建一个新房间，初始为等待状态
func NewRoom(opts Options) *Room {
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = models.DefaultMaxPlayers
	}
	if opts.Roller == nil {
		opts.Roller = yahtzee.NewRoller(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	now := opts.Clock()
	r := &Room{
		ID:         opts.ID,
		Name:       opts.Name,
		MaxPlayers: opts.MaxPlayers,
		TurnTimer:  opts.TurnTimer,
		CreatedAt:  now,
		UpdatedAt:  now,
		roller:     opts.Roller,
		clock:      opts.Clock,
	}
	r.StateMachine = state.NewBaseStateMachine(state.NewWaitingState(r))
	state.RegisterTransitions(r.StateMachine, r)
	return r
}

// Restore rebuilds a room from its stored record and players without replaying entry hooks.
func Restore(rec *models.Room, players []*models.Player, roller *yahtzee.Roller) *Room {
	r := NewRoom(Options{
		ID:         rec.ID,
		Name:       rec.Name,
		MaxPlayers: rec.MaxPlayers,
		TurnTimer:  rec.TurnTimer,
		Roller:     roller,
	})
	r.HostID = rec.HostID
	r.CreatedAt = rec.CreatedAt
	r.UpdatedAt = rec.UpdatedAt
	r.nextTurnOrder = rec.NextTurnOrder
	r.game = rec.GameState.Clone()
	for _, p := range players {
		r.players = append(r.players, p.Clone())
		if p.TurnOrder != nil && *p.TurnOrder >= r.nextTurnOrder {
			r.nextTurnOrder = *p.TurnOrder + 1
		}
	}

	var current state.State
	switch rec.Status {
	case models.StatusPlaying:
		current = state.NewPlayingState(r)
	case models.StatusFinished:
		current = state.NewFinishedState(r)
	}
	if current != nil && r.game != nil {
		r.StateMachine = state.NewBaseStateMachine(current)
		state.RegisterTransitions(r.StateMachine, r)
	}
	return r
}

func (r *Room) Lock() { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// --- 实现 state.RoomContext 接口 ---

// GetID 返回房间ID
func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) GetHostID() string {
	return r.HostID
}

// ActivePlayers returns the non-spectators ordered by turn order, then join time.
func (r *Room) ActivePlayers() []state.Player {
	active := r.activeRecords()
	out := make([]state.Player, len(active))
	for i, p := range active {
		out[i] = p
	}
	return out
}

func (r *Room) activeRecords() []*models.Player {
	var active []*models.Player
	for _, p := range r.players {
		if !p.IsSpectator {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if order(a) != order(b) {
			return order(a) < order(b)
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
	return active
}

func order(p *models.Player) int {
	if p.TurnOrder == nil {
		return int(^uint(0) >> 1)
	}
	return *p.TurnOrder
}

func (r *Room) Game() *yahtzee.GameState {
	return r.game
}

func (r *Room) SetGame(g *yahtzee.GameState) {
	r.game = g
}

func (r *Room) Roller() *yahtzee.Roller {
	return r.roller
}

func (r *Room) Now() time.Time {
	return r.clock()
}

// ChangeState 改变房间的状态机状态
func (r *Room) ChangeState(newState state.State) error {
	return r.StateMachine.ChangeState(newState)
}

// --- 房间核心逻辑 ---

// Status derives the room status from the current state.
func (r *Room) Status() models.RoomStatus {
	return models.RoomStatus(r.StateMachine.GetCurrentState().GetID())
}

// HandleAction routes a turn action from playerID to the current state.
func (r *Room) HandleAction(playerID string, action state.Action) error {
	p, ok := r.Player(playerID)
	if !ok {
		return ErrPlayerNotFound
	}
	if err := r.StateMachine.GetCurrentState().HandleAction(p, action); err != nil {
		return err
	}
	r.touch()
	return nil
}

// SettleRoll clears the animating flag. It reports whether anything changed.
func (r *Room) SettleRoll() bool {
	if r.closed || r.game == nil || !r.game.IsRolling {
		return false
	}
	r.game.IsRolling = false
	r.touch()
	return true
}

func (r *Room) touch() {
	r.UpdatedAt = r.clock()
}

// AddPlayer 添加一个玩家到房间. The first player becomes host.
// Joining after the game has started always yields a spectator.
func (r *Room) AddPlayer(id, sessionID, name string, asSpectator bool) (*models.Player, error) {
	if r.Status() != models.StatusWaiting {
		asSpectator = true
	}
	if !asSpectator && len(r.activeRecords()) >= r.MaxPlayers {
		return nil, ErrRoomFull
	}

	p := &models.Player{
		ID:          id,
		RoomID:      r.ID,
		SessionID:   sessionID,
		Name:        name,
		IsSpectator: asSpectator,
		IsConnected: true,
		JoinedAt:    r.clock(),
	}
	if !asSpectator {
		order := r.nextTurnOrder
		r.nextTurnOrder++
		p.TurnOrder = &order
	}
	r.players = append(r.players, p)
	if r.HostID == "" {
		r.HostID = id
	}
	r.touch()
	return p, nil
}

// RemovePlayer 从房间移除一个玩家. Host passes to the first remaining
// non-spectator, else to the first remaining player. During play the current
// index is reseated so the order of play is kept.
func (r *Room) RemovePlayer(playerID string) (*models.Player, error) {
	idx := -1
	for i, p := range r.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}
	removed := r.players[idx]

	seat := -1
	for i, p := range r.activeRecords() {
		if p.ID == playerID {
			seat = i
			break
		}
	}

	r.players = append(r.players[:idx:idx], r.players[idx+1:]...)
	removed.RoomID = ""

	if r.HostID == playerID {
		r.HostID = ""
		if active := r.activeRecords(); len(active) > 0 {
			r.HostID = active[0].ID
		} else if len(r.players) > 0 {
			r.HostID = r.players[0].ID
		}
	}

	if r.Status() == models.StatusPlaying && r.game != nil {
		remaining := len(r.activeRecords())
		state.Reseat(r.game, seat, remaining, r.clock())
		if seat >= 0 && remaining == 0 {
			// 只剩观战者
			if err := state.Abandon(r); err != nil {
				return removed, err
			}
		} else if seat >= 0 && state.AllComplete(r.ActivePlayers()) {
			if err := state.Finish(r); err != nil {
				return removed, err
			}
		}
	}
	r.touch()
	return removed, nil
}

// Kick removes targetID on behalf of actorID, who must be the host.
func (r *Room) Kick(actorID, targetID string) (*models.Player, error) {
	if actorID != r.HostID {
		return nil, state.ErrNotHost
	}
	if actorID == targetID {
		return nil, ErrCannotKickSelf
	}
	return r.RemovePlayer(targetID)
}

// SetConnected flips a player's connection flag and session binding.
func (r *Room) SetConnected(playerID, sessionID string, connected bool) (*models.Player, error) {
	p, ok := r.Player(playerID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	p.IsConnected = connected
	p.SessionID = sessionID
	r.touch()
	return p, nil
}

// Player 获取单个玩家
func (r *Room) Player(playerID string) (*models.Player, bool) {
	for _, p := range r.players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// PlayerBySession finds the player bound to a transport session.
func (r *Room) PlayerBySession(sessionID string) (*models.Player, bool) {
	for _, p := range r.players {
		if p.SessionID == sessionID && sessionID != "" {
			return p, true
		}
	}
	return nil, false
}

// Players returns copies of every player in join order.
func (r *Room) Players() []*models.Player {
	out := make([]*models.Player, len(r.players))
	for i, p := range r.players {
		out[i] = p.Clone()
	}
	return out
}

// Len is the number of players of any kind.
func (r *Room) Len() int {
	return len(r.players)
}

// Record is the storage snapshot of the room.
func (r *Room) Record() *models.Room {
	rec := &models.Room{
		ID:            r.ID,
		Name:          r.Name,
		HostID:        r.HostID,
		Status:        r.Status(),
		MaxPlayers:    r.MaxPlayers,
		TurnTimer:     r.TurnTimer,
		NextTurnOrder: r.nextTurnOrder,
		GameState:     r.game.Clone(),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.game != nil {
		rec.CurrentPlayerIndex = r.game.CurrentPlayerIndex
	}
	return rec.Clone()
}

// Close marks the room as gone so late scheduled work becomes a no-op.
func (r *Room) Close() {
	r.closed = true
}

// Closed reports whether the room has been deleted.
func (r *Room) Closed() bool {
	return r.closed
}
