package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/SanderKaatee/yahtzee/broadcast"
	"github.com/SanderKaatee/yahtzee/config"
	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/monitor"
	"github.com/SanderKaatee/yahtzee/network"
	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/room"
	"github.com/SanderKaatee/yahtzee/services"
	"github.com/SanderKaatee/yahtzee/session"
	gameserver_rpc "github.com/SanderKaatee/yahtzee/rpc"
	"github.com/SanderKaatee/yahtzee/timer"
)

const (
	heartbeatInterval = 30 * time.Second
	janitorInterval   = time.Minute
	metricsNamespace  = "yahtzee"
)

type GameServer struct {
	cfg            *config.Config
	upgrader       *websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	roomService    *services.RoomService
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	rpcServer      *gameserver_rpc.Server
	healthServer   *gameserver_rpc.HealthServer
	httpServer     *http.Server
	mutex          sync.Mutex
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		upgrader:       network.Upgrader(cfg.Server.AllowedOrigins),
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		monitor:        monitor.NewMonitor(metricsNamespace),
		timers:         timer.NewTimerManager(cfg.Game.TimerResolution),
		shutdownChan:   make(chan struct{}),
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewSessionBroadcaster(s.sessionManager)

	s.roomService = services.NewRoomService(
		s.roomManager,
		s.sessionManager,
		db,
		s.broadcaster,
		s.timers,
		s.monitor,
		services.Options{
			MaxPlayers:      cfg.Game.MaxPlayers,
			RollAnimation:   cfg.Game.RollAnimation,
			FinishedRoomTTL: cfg.Game.FinishedRoomTTL,
		},
	)
	return s
}

// RoomService exposes the orchestrator, mainly for tests.
func (s *GameServer) RoomService() *services.RoomService {
	return s.roomService
}

// Router builds the HTTP routes: websocket endpoint, lobby REST, health and metrics.
func (s *GameServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/rooms", s.handleListRooms)
	r.Get("/rooms/{roomID}", s.handleGetRoom)
	r.Handle("/metrics", s.monitor.Handler())
	return r
}

// Start runs the optional RPC listeners and then blocks serving HTTP.
// An empty rpc or grpc address disables that listener.
func (s *GameServer) Start() error {
	var (
		rpcServer    *gameserver_rpc.Server
		healthServer *gameserver_rpc.HealthServer
		err          error
	)
	if s.cfg.Server.RPCAddress != "" {
		admin := gameserver_rpc.NewAdminService(s.roomService)
		if rpcServer, err = gameserver_rpc.NewServer(s.cfg.Server.RPCAddress, admin); err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		go rpcServer.Start()
	}
	if s.cfg.Server.GRPCAddress != "" {
		if healthServer, err = gameserver_rpc.NewHealthServer(s.cfg.Server.GRPCAddress); err != nil {
			if rpcServer != nil {
				rpcServer.Stop()
			}
			return fmt.Errorf("health server: %w", err)
		}
		go healthServer.Start()
	}

	s.mutex.Lock()
	select {
	case <-s.shutdownChan:
		s.mutex.Unlock()
		if rpcServer != nil {
			rpcServer.Stop()
		}
		if healthServer != nil {
			healthServer.Stop()
		}
		return nil
	default:
	}
	s.rpcServer = rpcServer
	s.healthServer = healthServer
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.HTTPAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.mutex.Unlock()

	s.roomService.StartJanitor(janitorInterval)

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	select {
	case <-s.shutdownChan:
		return nil
	default:
		close(s.shutdownChan)
	}

	var err error
	if s.healthServer != nil {
		s.healthServer.SetServing(false)
	}
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	for _, sess := range s.sessionManager.All() {
		sess.Close()
	}
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	if s.healthServer != nil {
		s.healthServer.Stop()
	}
	s.timers.Stop()
	return err
}

func (s *GameServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"rooms":    s.roomManager.Count(),
		"sessions": s.sessionManager.Count(),
		"timers":   s.timers.Pending(),
	})
}

func (s *GameServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.roomService.RoomList(r.Context())
	if err != nil {
		logger.Log.Errorw("list rooms failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, network.ErrorMessage{Message: services.PublicMessage(err), Code: services.CodeInternal})
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := s.roomService.RoomView(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, network.ErrorMessage{Message: services.PublicMessage(err), Code: services.ErrorCode(err)})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Debugf("write response failed: %v", err)
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	limiter := rate.NewLimiter(rate.Limit(s.cfg.Game.ActionRate), s.cfg.Game.ActionBurst)
	sess := session.NewSession(uuid.New().String(), wsConn, limiter)
	s.sessionManager.Add(sess)
	s.monitor.SetOnlineSessions(s.sessionManager.Count())

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		if err := s.roomService.Disconnect(context.Background(), sess); err != nil {
			logger.Log.Errorw("disconnect failed", "session_id", sess.GetID(), "error", err)
		}
		s.sessionManager.Remove(sess.GetID())
		s.monitor.SetOnlineSessions(s.sessionManager.Count())
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

// handlePacket runs one inbound message and reports failures back to the sender.
func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	name := network.MsgName(packet.MsgID)
	s.monitor.IncMessagesReceived(name)
	defer func() {
		s.monitor.ObserveMessageLatency(time.Since(start))
	}()

	if packet.MsgID != network.MsgTypeHeartbeat && !sess.Allow() {
		s.roomService.SendError(sess.GetID(), services.ErrRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.dispatch(ctx, sess, packet); err != nil {
		s.roomService.SendError(sess.GetID(), err)
	}
}

func (s *GameServer) dispatch(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	svc := s.roomService
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		return sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeGetRooms:
		return svc.SendRoomList(ctx, sess)
	case network.MsgTypeCreateRoom:
		var req network.CreateRoomRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.CreateRoom(ctx, sess, req)
	case network.MsgTypeJoinRoom:
		var req network.JoinRoomRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.JoinRoom(ctx, sess, req)
	case network.MsgTypeLeaveRoom:
		var req network.RoomPlayerRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.LeaveRoom(ctx, sess, req)
	case network.MsgTypeReconnect:
		var req network.ReconnectRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.Reconnect(ctx, sess, req)
	case network.MsgTypeStartGame:
		var req network.RoomPlayerRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.StartGame(ctx, sess, req)
	case network.MsgTypeRollDice:
		var req network.RollDiceRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.RollDice(ctx, sess, req)
	case network.MsgTypeToggleHold:
		var req network.ToggleHoldRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.ToggleHold(ctx, sess, req)
	case network.MsgTypeScoreCategory:
		var req network.ScoreCategoryRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.ScoreCategory(ctx, sess, req)
	case network.MsgTypeKickPlayer:
		var req network.KickPlayerRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.KickPlayer(ctx, sess, req)
	case network.MsgTypeGetHints:
		var req network.RoomPlayerRequest
		if err := decode(packet.Data, &req); err != nil {
			return err
		}
		return svc.Hints(ctx, sess, req)
	}
	logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	return services.ErrUnknownMessage
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", services.ErrBadRequest, err)
	}
	return nil
}
