// services/room_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/SanderKaatee/yahtzee/broadcast"
	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/monitor"
	"github.com/SanderKaatee/yahtzee/network"
	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/room"
	"github.com/SanderKaatee/yahtzee/session"
	"github.com/SanderKaatee/yahtzee/state"
	"github.com/SanderKaatee/yahtzee/timer"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

const (
	defaultPlayerName = "Player"
	janitorOwner      = "janitor"
	codeAttempts      = 10
	// MaxNameLength 玩家名和房间名的最大字符数
	MaxNameLength = 32
)

// Options tunes a RoomService. Zero values fall back to defaults.
type Options struct {
	MaxPlayers      int
	RollAnimation   time.Duration
	FinishedRoomTTL time.Duration
	// NewRoller builds the dice roller of each room.
	NewRoller func() *yahtzee.Roller
	Clock     func() time.Time
	NewID     func() string
}

// RoomService 房间与会话编排：校验、委托状态机、持久化、广播
type RoomService struct {
	rooms    *room.Manager
	sessions *session.Manager
	db       persistence.Database
	bc       broadcast.Broadcaster
	timers   *timer.TimerManager
	monitor  *monitor.Monitor
	history  *HistoryService
	opts     Options
	loadMu   sync.Mutex

	settleMu sync.Mutex
	settles  map[string]int64 // roomID -> 等待中的结算任务
}

func NewRoomService(
	rooms *room.Manager,
	sessions *session.Manager,
	db persistence.Database,
	bc broadcast.Broadcaster,
	timers *timer.TimerManager,
	mon *monitor.Monitor,
	opts Options,
) *RoomService {
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = models.DefaultMaxPlayers
	}
	if opts.FinishedRoomTTL <= 0 {
		opts.FinishedRoomTTL = time.Hour
	}
	if opts.NewRoller == nil {
		opts.NewRoller = func() *yahtzee.Roller { return yahtzee.NewRoller(nil) }
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &RoomService{
		rooms:    rooms,
		sessions: sessions,
		db:       db,
		bc:       bc,
		timers:   timers,
		monitor:  mon,
		history:  NewHistoryService(db),
		opts:     opts,
		settles:  make(map[string]int64),
	}
}

// History exposes the game history service.
func (s *RoomService) History() *HistoryService {
	return s.history
}

// StartJanitor periodically drops finished rooms older than the TTL from memory.
func (s *RoomService) StartJanitor(interval time.Duration) {
	s.timers.AddTimer(janitorOwner, interval, interval, s.EvictFinished)
}

// EvictFinished unloads finished rooms whose TTL expired. Their records stay in the store.
func (s *RoomService) EvictFinished() {
	cutoff := s.opts.Clock().Add(-s.opts.FinishedRoomTTL)
	for _, id := range s.rooms.IDs() {
		r, ok := s.rooms.GetRoom(id)
		if !ok {
			continue
		}
		r.Lock()
		if r.Status() == models.StatusFinished && r.UpdatedAt.Before(cutoff) {
			s.unload(id)
			logger.Log.Infow("evicted finished room", "room_id", id)
		}
		r.Unlock()
	}
}

func (s *RoomService) unload(roomID string) {
	s.takeSettle(roomID)
	s.timers.RemoveOwner(roomID)
	s.rooms.RemoveRoom(roomID)
	s.monitor.SetActiveRooms(s.rooms.Count())
}

// --- 大厅 ---

// RoomList returns the lobby listing.
func (s *RoomService) RoomList(ctx context.Context) ([]models.RoomSummary, error) {
	return s.db.ListRooms(ctx, s.opts.Clock().Add(-s.opts.FinishedRoomTTL))
}

// SendRoomList answers get-rooms for one session.
func (s *RoomService) SendRoomList(ctx context.Context, sess *session.Session) error {
	rooms, err := s.RoomList(ctx)
	if err != nil {
		return err
	}
	return s.send(sess.ID, network.MsgTypeRoomList, rooms)
}

// RoomView returns the snapshot of one room, loading it from the store if needed.
func (s *RoomService) RoomView(ctx context.Context, roomID string) (room.View, error) {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return room.View{}, err
	}
	r.Lock()
	defer r.Unlock()
	return r.View(), nil
}

// displayName trims name and applies fallback when it is empty.
func displayName(name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// CreateRoom creates a room with the caller as host and first player.
func (s *RoomService) CreateRoom(ctx context.Context, sess *session.Session, req network.CreateRoomRequest) error {
	playerName, err := displayName(req.PlayerName, defaultPlayerName)
	if err != nil {
		return err
	}
	roomName := strings.TrimSpace(req.RoomName)
	if roomName == "" {
		roomName = playerName + "'s Game"
	} else if utf8.RuneCountInString(roomName) > MaxNameLength {
		return ErrNameTooLong
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = s.opts.MaxPlayers
	}
	if req.TurnTimer != nil && *req.TurnTimer <= 0 {
		req.TurnTimer = nil
	}

	var (
		r      *room.Room
		player *models.Player
	)
	for attempt := 0; ; attempt++ {
		if attempt == codeAttempts {
			return fmt.Errorf("no free room code after %d attempts", codeAttempts)
		}
		code, err := room.GenerateCode()
		if err != nil {
			return err
		}
		if s.rooms.Exists(code) {
			continue
		}

		r = room.NewRoom(room.Options{
			ID:         code,
			Name:       roomName,
			MaxPlayers: maxPlayers,
			TurnTimer:  req.TurnTimer,
			Roller:     s.opts.NewRoller(),
			Clock:      s.opts.Clock,
		})
		player, err = r.AddPlayer(s.opts.NewID(), sess.ID, playerName, false)
		if err != nil {
			return err
		}

		err = s.db.CreateRoom(ctx, r.Record())
		if errors.Is(err, persistence.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		if err := s.db.CreatePlayer(ctx, player.Clone()); err != nil {
			_ = s.db.DeleteRoom(ctx, code)
			return fmt.Errorf("create player: %w", err)
		}
		break
	}

	s.rooms.Add(r)
	s.monitor.SetActiveRooms(s.rooms.Count())
	sess.Bind(r.ID, player.ID)
	logger.Log.Infow("room created", "room_id", r.ID, "player", playerName)

	r.Lock()
	view := r.View()
	r.Unlock()

	s.send(sess.ID, network.MsgTypeRoomCreated, network.RoomCreated{RoomID: r.ID, PlayerID: player.ID})
	s.broadcastView(view)
	s.broadcastRoomList(ctx)
	return nil
}

// JoinRoom adds the caller to a room. Rooms that already started only take spectators.
func (s *RoomService) JoinRoom(ctx context.Context, sess *session.Session, req network.JoinRoomRequest) error {
	playerName, err := displayName(req.PlayerName, defaultPlayerName)
	if err != nil {
		return err
	}
	r, err := s.loadRoom(ctx, req.RoomID)
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return ErrRoomNotFound
	}

	player, err := r.AddPlayer(s.opts.NewID(), sess.ID, playerName, req.AsSpectator)
	if err != nil {
		return err
	}
	s.persist(ctx, r)
	sess.Bind(r.ID, player.ID)
	logger.Log.Infow("player joined", "room_id", r.ID, "player", playerName, "spectator", player.IsSpectator)

	s.send(sess.ID, network.MsgTypeRoomJoined, network.RoomJoined{
		RoomID:      r.ID,
		PlayerID:    player.ID,
		IsSpectator: player.IsSpectator,
	})
	s.broadcastView(r.View())
	s.broadcastRoomList(ctx)
	return nil
}

// LeaveRoom removes a player. An empty room is deleted. Unknown rooms or players are ignored.
func (s *RoomService) LeaveRoom(ctx context.Context, sess *session.Session, req network.RoomPlayerRequest) error {
	r, err := s.loadRoom(ctx, req.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return nil
	}

	before := r.Status()
	removed, err := r.RemovePlayer(req.PlayerID)
	if errors.Is(err, room.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	sess.Unbind(r.ID)
	s.unbindPlayer(r.ID, removed.ID)
	logger.Log.Infow("player left", "room_id", r.ID, "player", removed.Name)

	if r.Len() == 0 {
		s.unload(r.ID)
		if err := s.db.DeleteRoom(ctx, r.ID); err != nil {
			logger.Log.Errorw("delete room failed", "room_id", r.ID, "error", err)
		}
		logger.Log.Infow("room deleted", "room_id", r.ID)
		s.broadcastRoomList(ctx)
		return nil
	}

	s.afterMutation(ctx, r, before)
	s.broadcastRoomList(ctx)
	return nil
}

// StartGame starts the game on behalf of the host.
func (s *RoomService) StartGame(ctx context.Context, sess *session.Session, req network.RoomPlayerRequest) error {
	return s.act(ctx, req.RoomID, req.PlayerID, state.Action{Type: state.ActionStart})
}

// RollDice rolls the unheld dice and schedules the end of the rolling animation.
func (s *RoomService) RollDice(ctx context.Context, sess *session.Session, req network.RollDiceRequest) error {
	return s.act(ctx, req.RoomID, req.PlayerID, state.Action{Type: state.ActionRoll, Target: req.Target})
}

func (s *RoomService) ToggleHold(ctx context.Context, sess *session.Session, req network.ToggleHoldRequest) error {
	return s.act(ctx, req.RoomID, req.PlayerID, state.Action{Type: state.ActionHold, DieIndex: req.DieIndex})
}

func (s *RoomService) ScoreCategory(ctx context.Context, sess *session.Session, req network.ScoreCategoryRequest) error {
	return s.act(ctx, req.RoomID, req.PlayerID, state.Action{Type: state.ActionScore, Category: req.Category})
}

// act runs one turn action under the room lock, then persists and broadcasts.
func (s *RoomService) act(ctx context.Context, roomID, playerID string, action state.Action) error {
	r, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return ErrRoomNotFound
	}

	before := r.Status()
	if err := r.HandleAction(playerID, action); err != nil {
		return err
	}

	if action.Type == state.ActionRoll {
		mode := "random"
		if p, ok := r.Player(playerID); ok && state.Guaranteed(p, action.Target) {
			mode = "guaranteed"
		}
		s.monitor.IncDiceRolls(mode)
		s.scheduleSettle(r)
	}

	s.afterMutation(ctx, r, before)
	if r.Status() != before {
		s.broadcastRoomList(ctx)
	}
	return nil
}

// afterMutation persists and broadcasts r. Callers hold the room lock.
func (s *RoomService) afterMutation(ctx context.Context, r *room.Room, before models.RoomStatus) {
	after := r.Status()
	s.cancelSettle(r)
	s.persist(ctx, r)
	if before == models.StatusWaiting && after == models.StatusPlaying {
		s.monitor.IncGamesStarted()
	}
	if before != models.StatusFinished && after == models.StatusFinished {
		s.monitor.IncGamesFinished()
		if _, err := s.history.Record(ctx, r.Record(), r.Players()); err != nil {
			logger.Log.Errorw("save game record failed", "room_id", r.ID, "error", err)
		}
	}
	s.broadcastView(r.View())
}

func (s *RoomService) scheduleSettle(r *room.Room) {
	if s.opts.RollAnimation <= 0 {
		r.SettleRoll()
		return
	}
	id := s.timers.AddTimer(r.ID, s.opts.RollAnimation, 0, func() {
		s.settleRoll(r)
	})
	s.settleMu.Lock()
	s.settles[r.ID] = id
	s.settleMu.Unlock()
}

func (s *RoomService) takeSettle(roomID string) (int64, bool) {
	s.settleMu.Lock()
	defer s.settleMu.Unlock()
	id, ok := s.settles[roomID]
	delete(s.settles, roomID)
	return id, ok
}

// cancelSettle drops a pending settle task once the room stopped rolling some other way.
func (s *RoomService) cancelSettle(r *room.Room) {
	if g := r.Game(); g != nil && g.IsRolling {
		return
	}
	if id, ok := s.takeSettle(r.ID); ok {
		s.timers.RemoveTimer(id)
	}
}

// settleRoll clears the rolling flag and broadcasts the settled dice.
func (s *RoomService) settleRoll(r *room.Room) {
	r.Lock()
	defer r.Unlock()
	s.takeSettle(r.ID)
	if !r.SettleRoll() {
		return
	}
	s.persist(context.Background(), r)
	s.broadcastView(r.View())
}

// KickPlayer lets the host remove another player. Unknown rooms or targets are ignored.
func (s *RoomService) KickPlayer(ctx context.Context, sess *session.Session, req network.KickPlayerRequest) error {
	r, err := s.loadRoom(ctx, req.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return nil
	}

	before := r.Status()
	kicked, err := r.Kick(req.PlayerID, req.TargetPlayerID)
	if errors.Is(err, room.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Log.Infow("player kicked", "room_id", r.ID, "player", kicked.Name)

	// 先通知房间内所有人，再解除被踢玩家的绑定
	s.broadcast(r.ID, network.MsgTypePlayerKicked, network.PlayerKicked{PlayerID: kicked.ID})
	s.unbindPlayer(r.ID, kicked.ID)

	s.afterMutation(ctx, r, before)
	s.broadcastRoomList(ctx)
	return nil
}

// Reconnect binds a known player to the caller's session. Unknown players are ignored.
func (s *RoomService) Reconnect(ctx context.Context, sess *session.Session, req network.ReconnectRequest) error {
	stored, err := s.db.GetPlayer(ctx, req.PlayerID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stored.RoomID == "" {
		return nil
	}

	r, err := s.loadRoom(ctx, stored.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return nil
	}

	player, err := r.SetConnected(req.PlayerID, sess.ID, true)
	if errors.Is(err, room.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, other := range s.sessions.GetByPlayerID(player.ID) {
		if other != sess {
			other.Unbind(r.ID)
		}
	}
	sess.Bind(r.ID, player.ID)
	s.persist(ctx, r)
	logger.Log.Infow("player reconnected", "room_id", r.ID, "player", player.Name)

	s.send(sess.ID, network.MsgTypeReconnected, network.Reconnected{RoomID: r.ID, PlayerID: player.ID})
	s.broadcastView(r.View())
	s.broadcastRoomList(ctx)
	return nil
}

// Disconnect marks the session's player offline. Turns do not advance.
func (s *RoomService) Disconnect(ctx context.Context, sess *session.Session) error {
	roomID, playerID := sess.Binding()
	sess.Unbind("")
	if roomID == "" {
		stored, err := s.db.GetPlayerBySession(ctx, sess.ID)
		if err != nil {
			return nil
		}
		roomID, playerID = stored.RoomID, stored.ID
	}

	r, ok := s.rooms.GetRoom(roomID)
	if !ok {
		return nil
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return nil
	}

	player, ok := r.Player(playerID)
	if !ok || player.SessionID != sess.ID {
		// 已被其他连接接管
		return nil
	}
	if _, err := r.SetConnected(playerID, sess.ID, false); err != nil {
		return nil
	}
	s.persist(ctx, r)
	logger.Log.Infow("player disconnected", "room_id", r.ID, "player", player.Name)

	s.broadcastView(r.View())
	s.broadcastRoomList(ctx)
	return nil
}

// Hints answers get-hints for players whose name enables guaranteed rolls.
func (s *RoomService) Hints(ctx context.Context, sess *session.Session, req network.RoomPlayerRequest) error {
	r, err := s.loadRoom(ctx, req.RoomID)
	if err != nil {
		return err
	}

	r.Lock()
	player, ok := r.Player(req.PlayerID)
	g := r.Game()
	if !ok || player.IsSpectator || !yahtzee.CheatEnabled(player.Name) ||
		r.Status() != models.StatusPlaying || g == nil || g.RollsLeft == 0 {
		r.Unlock()
		return ErrHintsUnavailable
	}
	hints := yahtzee.Hints(g.Dice, g.Held, player.Scorecard)
	r.Unlock()

	if hints == nil {
		hints = []yahtzee.Hint{}
	}
	return s.send(sess.ID, network.MsgTypeHints, network.HintsResponse{RoomID: r.ID, Hints: hints})
}

// loadRoom returns the in-memory room, rebuilding it from the store when it is missing.
func (s *RoomService) loadRoom(ctx context.Context, roomID string) (*room.Room, error) {
	if r, ok := s.rooms.GetRoom(roomID); ok {
		return r, nil
	}
	if roomID == "" {
		return nil, ErrRoomNotFound
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if r, ok := s.rooms.GetRoom(roomID); ok {
		return r, nil
	}

	rec, err := s.db.GetRoom(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	players, err := s.db.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load players of %s: %w", roomID, err)
	}
	// 重启前的连接都已失效
	for _, p := range players {
		p.IsConnected = false
	}

	r := room.Restore(rec, players, s.opts.NewRoller())
	r.SettleRoll()
	s.rooms.Add(r)
	s.monitor.SetActiveRooms(s.rooms.Count())
	logger.Log.Infow("room restored", "room_id", roomID, "status", r.Status(), "players", r.Len())
	return r, nil
}

// unbindPlayer detaches every session acting as playerID in roomID.
func (s *RoomService) unbindPlayer(roomID, playerID string) {
	for _, other := range s.sessions.GetByPlayerID(playerID) {
		other.Unbind(roomID)
	}
}

func (s *RoomService) persist(ctx context.Context, r *room.Room) {
	if err := s.db.SaveSnapshot(ctx, r.Record(), r.Players()); err != nil {
		// 内存状态为准，存储失败只记录
		logger.Log.Errorw("persist room failed", "room_id", r.ID, "error", err)
	}
}

func (s *RoomService) broadcastView(view room.View) {
	s.broadcast(view.ID, network.MsgTypeRoomState, view)
}

func (s *RoomService) broadcastRoomList(ctx context.Context) {
	rooms, err := s.RoomList(ctx)
	if err != nil {
		logger.Log.Errorw("list rooms failed", "error", err)
		return
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		logger.Log.Errorw("encode room list failed", "error", err)
		return
	}
	if err := s.bc.BroadcastToAll(network.MsgTypeRoomList, data); err != nil {
		logger.Log.Warnw("room list broadcast incomplete", "bytes", len(data), "error", err)
	}
}

func (s *RoomService) broadcast(roomID string, msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorw("encode broadcast failed", "room_id", roomID, "msg", network.MsgName(msgID), "error", err)
		return
	}
	if err := s.bc.BroadcastToRoom(roomID, msgID, data); err != nil {
		logger.Log.Warnw("room broadcast incomplete", "room_id", roomID, "msg", network.MsgName(msgID), "bytes", len(data), "error", err)
	}
}

func (s *RoomService) send(sessionID string, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.bc.SendToSession(sessionID, msgID, data)
}

// SendError reports a rejected action to one session.
func (s *RoomService) SendError(sessionID string, err error) {
	code := ErrorCode(err)
	s.monitor.IncRejected(code)
	if code == CodeInternal {
		logger.Log.Errorw("action failed", "session_id", sessionID, "error", err)
	} else {
		logger.Log.Debugw("action rejected", "session_id", sessionID, "code", code, "error", err)
	}
	_ = s.send(sessionID, network.MsgTypeError, network.ErrorMessage{
		Message: PublicMessage(err),
		Code:    code,
	})
}
