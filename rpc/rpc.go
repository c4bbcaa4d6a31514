package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/room"
	"github.com/SanderKaatee/yahtzee/services"
)

// ServiceName is the name AdminService registers under.
const ServiceName = "AdminService"

const callTimeout = 5 * time.Second

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers admin against its own rpc.Server.
func NewServer(addr string, admin *AdminService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, admin); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start serves connections until the listener is closed.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService 运维只读接口：房间、对局历史、排行榜
type AdminService struct {
	rooms   *services.RoomService
	history *services.HistoryService
}

func NewAdminService(rooms *services.RoomService) *AdminService {
	return &AdminService{rooms: rooms, history: rooms.History()}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []models.RoomSummary
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	rooms, err := a.rooms.RoomList(ctx)
	if err != nil {
		return err
	}
	reply.Rooms = rooms
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room room.View
}

func (a *AdminService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	view, err := a.rooms.RoomView(ctx, args.RoomID)
	if err != nil {
		return err
	}
	reply.Room = view
	return nil
}

// RecentGamesArgs.Limit <= 0 uses the store default.
type RecentGamesArgs struct {
	Limit int
}

type RecentGamesReply struct {
	Games []models.GameRecord
}

func (a *AdminService) RecentGames(args *RecentGamesArgs, reply *RecentGamesReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	games, err := a.history.RecentGames(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Games = games
	return nil
}

type LeaderboardArgs struct {
	Window int
}

type LeaderboardReply struct {
	Rows []services.WinCount
}

func (a *AdminService) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	rows, err := a.history.Leaderboard(ctx, args.Window)
	if err != nil {
		return err
	}
	reply.Rows = rows
	return nil
}

// --- gRPC 健康检查 ---

// HealthServer exposes the standard grpc.health.v1 service for load balancers.
type HealthServer struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &HealthServer{
		listener: listener,
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return s, nil
}

func (s *HealthServer) Addr() string {
	return s.listener.Addr().String()
}

// SetServing flips the overall status, e.g. NOT_SERVING while the store is down.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *HealthServer) Start() {
	logger.Log.Infof("gRPC health server listening on %s", s.Addr())
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("gRPC health server stopped: %v", err)
	}
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
