package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanderKaatee/yahtzee/config"
	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/network"
	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/room"
	"github.com/SanderKaatee/yahtzee/services"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
		Game: config.GameConfig{
			MaxPlayers:      4,
			FinishedRoomTTL: time.Hour,
			ActionRate:      100,
			ActionBurst:     100,
			TimerResolution: 10 * time.Millisecond,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*GameServer, *httptest.Server) {
	t.Helper()
	gs := NewGameServer(cfg, persistence.NewMemoryStore())
	ts := httptest.NewServer(gs.Router())
	t.Cleanup(func() {
		ts.Close()
		gs.Shutdown(context.Background())
	})
	return gs, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *network.WSConnection {
	t.Helper()
	conn, err := network.Dial("ws" + strings.TrimPrefix(ts.URL, "http") + "/ws")
	require.NoError(t, err)
	conn.SetHeartbeat(5 * time.Second)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *network.WSConnection, msgID uint16, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.Send(msgID, data))
}

// expect reads until a packet of msgID arrives and decodes it into v.
func expect(t *testing.T, conn *network.WSConnection, msgID uint16, v interface{}) {
	t.Helper()
	for {
		packet, err := conn.ReadPacket()
		require.NoError(t, err, "waiting for %s", network.MsgName(msgID))
		if packet.MsgID != msgID {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(packet.Data, v))
		}
		return
	}
}

// waitView reads room snapshots until done accepts one.
func waitView(t *testing.T, conn *network.WSConnection, done func(room.View) bool) room.View {
	t.Helper()
	for {
		var view room.View
		expect(t, conn, network.MsgTypeRoomState, &view)
		if done(view) {
			return view
		}
	}
}

func TestWebSocket_GameFlow(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	host := dialWS(t, ts)
	guest := dialWS(t, ts)

	send(t, host, network.MsgTypeCreateRoom, network.CreateRoomRequest{PlayerName: "Ann"})
	var created network.RoomCreated
	expect(t, host, network.MsgTypeRoomCreated, &created)
	require.NotEmpty(t, created.RoomID)

	send(t, guest, network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: created.RoomID, PlayerName: "Bob"})
	var joined network.RoomJoined
	expect(t, guest, network.MsgTypeRoomJoined, &joined)
	assert.False(t, joined.IsSpectator)

	// 非房主开始游戏被拒绝
	send(t, guest, network.MsgTypeStartGame, network.RoomPlayerRequest{RoomID: created.RoomID, PlayerID: joined.PlayerID})
	var rejected network.ErrorMessage
	expect(t, guest, network.MsgTypeError, &rejected)
	assert.Equal(t, services.CodeUnauthorized, rejected.Code)

	send(t, host, network.MsgTypeStartGame, network.RoomPlayerRequest{RoomID: created.RoomID, PlayerID: created.PlayerID})
	view := waitView(t, guest, func(v room.View) bool { return v.Status == models.StatusPlaying })
	assert.Equal(t, created.PlayerID, view.CurrentPlayerID)

	send(t, host, network.MsgTypeRollDice, network.RollDiceRequest{RoomID: created.RoomID, PlayerID: created.PlayerID})
	waitView(t, guest, func(v room.View) bool {
		return v.GameState.RollsLeft == 2 && !v.GameState.IsRolling
	})

	send(t, host, network.MsgTypeScoreCategory, network.ScoreCategoryRequest{
		RoomID: created.RoomID, PlayerID: created.PlayerID, Category: yahtzee.Chance,
	})
	view = waitView(t, guest, func(v room.View) bool { return v.CurrentPlayerID == joined.PlayerID })
	score, ok := view.Players[0].Scorecard.Get(yahtzee.Chance)
	assert.True(t, ok)
	assert.Equal(t, score, view.Players[0].TotalScore)
}

func TestWebSocket_Errors(t *testing.T) {
	_, ts := newTestServer(t, testConfig())
	conn := dialWS(t, ts)

	require.NoError(t, conn.Send(network.MsgTypeJoinRoom, []byte("{not json")))
	var msg network.ErrorMessage
	expect(t, conn, network.MsgTypeError, &msg)
	assert.Equal(t, services.CodeBadRequest, msg.Code)

	require.NoError(t, conn.Send(999, nil))
	expect(t, conn, network.MsgTypeError, &msg)
	assert.Equal(t, services.CodeBadRequest, msg.Code)
	assert.Equal(t, services.ErrUnknownMessage.Error(), msg.Message)

	send(t, conn, network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: "NOPE22", PlayerName: "Bob"})
	expect(t, conn, network.MsgTypeError, &msg)
	assert.Equal(t, services.CodeNotFound, msg.Code)

	require.NoError(t, conn.Send(network.MsgTypeHeartbeat, nil))
	expect(t, conn, network.MsgTypeHeartbeat, nil)
}

func TestWebSocket_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Game.ActionRate = 0.001
	cfg.Game.ActionBurst = 1
	_, ts := newTestServer(t, cfg)
	conn := dialWS(t, ts)

	send(t, conn, network.MsgTypeGetRooms, struct{}{})
	expect(t, conn, network.MsgTypeRoomList, nil)

	send(t, conn, network.MsgTypeGetRooms, struct{}{})
	var msg network.ErrorMessage
	expect(t, conn, network.MsgTypeError, &msg)
	assert.Equal(t, services.CodeRateLimited, msg.Code)
}

func TestWebSocket_DisconnectMarksOffline(t *testing.T) {
	gs, ts := newTestServer(t, testConfig())
	conn := dialWS(t, ts)

	send(t, conn, network.MsgTypeCreateRoom, network.CreateRoomRequest{PlayerName: "Ann"})
	var created network.RoomCreated
	expect(t, conn, network.MsgTypeRoomCreated, &created)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		view, err := gs.RoomService().RoomView(context.Background(), created.RoomID)
		return err == nil && len(view.Players) == 1 && !view.Players[0].IsConnected
	}, 2*time.Second, 20*time.Millisecond)

	// 重新连接并接管原玩家
	again := dialWS(t, ts)
	send(t, again, network.MsgTypeReconnect, network.ReconnectRequest{PlayerID: created.PlayerID})
	var back network.Reconnected
	expect(t, again, network.MsgTypeReconnected, &back)
	assert.Equal(t, created.RoomID, back.RoomID)
}

func TestHTTPRoutes(t *testing.T) {
	gs, ts := newTestServer(t, testConfig())
	conn := dialWS(t, ts)
	send(t, conn, network.MsgTypeCreateRoom, network.CreateRoomRequest{PlayerName: "Ann", RoomName: "Night"})
	var created network.RoomCreated
	expect(t, conn, network.MsgTypeRoomCreated, &created)

	get := func(path string) (int, []byte) {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, body
	}

	status, body := get("/rooms")
	assert.Equal(t, http.StatusOK, status)
	var rooms []models.RoomSummary
	require.NoError(t, json.Unmarshal(body, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "Night", rooms[0].Name)

	status, body = get("/rooms/" + created.RoomID)
	assert.Equal(t, http.StatusOK, status)
	var view room.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, created.RoomID, view.ID)

	status, _ = get("/rooms/NOPE22")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","rooms":1,"sessions":1,"timers":0}`, string(body))

	status, body = get("/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `yahtzee_messages_received_total{action="create-room"} 1`)
	assert.Equal(t, 1, gs.roomManager.Count())
}
