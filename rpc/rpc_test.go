package rpc

import (
	"context"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/SanderKaatee/yahtzee/broadcast"
	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/monitor"
	"github.com/SanderKaatee/yahtzee/network"
	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/room"
	"github.com/SanderKaatee/yahtzee/services"
	"github.com/SanderKaatee/yahtzee/session"
	"github.com/SanderKaatee/yahtzee/timer"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

type nopConn struct{}

func (nopConn) Send(uint16, []byte) error { return nil }
func (nopConn) Close() error { return nil }
func (nopConn) RemoteAddr() net.Addr { return &net.TCPAddr{} }
func (nopConn) SetHeartbeat(time.Duration) {}
func (nopConn) ReadPacket() (*network.Packet, error) { return nil, nil }

func newAdmin(t *testing.T) (*AdminService, *services.RoomService) {
	t.Helper()
	db := persistence.NewMemoryStore()
	sessions := session.NewManager()
	timers := timer.NewTimerManager(10 * time.Millisecond)
	t.Cleanup(timers.Stop)
	svc := services.NewRoomService(room.NewRoomManager(), sessions, db,
		broadcast.NewSessionBroadcaster(sessions), timers, monitor.NewMonitor("yahtzee_test"), services.Options{})
	return NewAdminService(svc), svc
}

func dial(t *testing.T, admin *AdminService) *rpc.Client {
	t.Helper()
	srv, err := NewServer("127.0.0.1:0", admin)
	require.NoError(t, err)
	go srv.Start()
	t.Cleanup(srv.Stop)

	client, err := rpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAdminService_Rooms(t *testing.T) {
	admin, svc := newAdmin(t)
	client := dial(t, admin)

	sess := session.NewSession("s1", nopConn{}, nil)
	require.NoError(t, svc.CreateRoom(context.Background(), sess, network.CreateRoomRequest{PlayerName: "Ann", RoomName: "Night"}))
	roomID, _ := sess.Binding()

	var list ListRoomsReply
	require.NoError(t, client.Call(ServiceName+".ListRooms", &ListRoomsArgs{}, &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, roomID, list.Rooms[0].ID)
	assert.Equal(t, "Night", list.Rooms[0].Name)

	var got GetRoomReply
	require.NoError(t, client.Call(ServiceName+".GetRoom", &GetRoomArgs{RoomID: roomID}, &got))
	assert.Equal(t, models.StatusWaiting, got.Room.Status)
	require.Len(t, got.Room.Players, 1)
	assert.Equal(t, "Ann", got.Room.Players[0].Name)

	err := client.Call(ServiceName+".GetRoom", &GetRoomArgs{RoomID: "NOPE22"}, &got)
	require.Error(t, err)
	assert.Equal(t, services.ErrRoomNotFound.Error(), err.Error())
}

func TestAdminService_History(t *testing.T) {
	admin, svc := newAdmin(t)
	client := dial(t, admin)

	var card yahtzee.Scorecard
	card.Set(yahtzee.Chance, 22)
	rec := &models.Room{
		ID:        "ROOM01",
		Name:      "Night",
		Status:    models.StatusFinished,
		GameState: &yahtzee.GameState{TurnNumber: 13, Winner: &yahtzee.Winner{PlayerID: "p1", Name: "Ann", Score: 22}},
	}
	order := 0
	_, err := svc.History().Record(context.Background(), rec, []*models.Player{
		{ID: "p1", Name: "Ann", TurnOrder: &order, Scorecard: card},
	})
	require.NoError(t, err)

	var games RecentGamesReply
	require.NoError(t, client.Call(ServiceName+".RecentGames", &RecentGamesArgs{Limit: 5}, &games))
	require.Len(t, games.Games, 1)
	assert.Equal(t, "Ann", games.Games[0].WinnerName)
	assert.Equal(t, 22, games.Games[0].Players[0].Points)

	var board LeaderboardReply
	require.NoError(t, client.Call(ServiceName+".Leaderboard", &LeaderboardArgs{Window: 10}, &board))
	assert.Equal(t, []services.WinCount{{Name: "Ann", Wins: 1, BestScore: 22}}, board.Rows)
}

func TestHealthServer(t *testing.T) {
	hs, err := NewHealthServer("127.0.0.1:0")
	require.NoError(t, err)
	go hs.Start()
	t.Cleanup(hs.Stop)

	conn, err := grpc.NewClient(hs.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	hs.SetServing(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
