package network

import "github.com/SanderKaatee/yahtzee/yahtzee"

// 客户端 -> 服务器
const (
	MsgTypeHeartbeat = 1

	MsgTypeGetRooms   = 100
	MsgTypeCreateRoom = 101
	MsgTypeJoinRoom   = 102
	MsgTypeLeaveRoom  = 103
	MsgTypeReconnect  = 104

	MsgTypeStartGame     = 201
	MsgTypeRollDice      = 202
	MsgTypeToggleHold    = 203
	MsgTypeScoreCategory = 204
	MsgTypeKickPlayer    = 205
	MsgTypeGetHints      = 206
)

// 服务器 -> 客户端
const (
	MsgTypeRoomList     = 301
	MsgTypeRoomState    = 302
	MsgTypeRoomCreated  = 303
	MsgTypeRoomJoined   = 304
	MsgTypeReconnected  = 305
	MsgTypePlayerKicked = 306
	MsgTypeHints        = 307

	MsgTypeError = 400
)

var msgNames = map[uint16]string{
	MsgTypeHeartbeat:     "heartbeat",
	MsgTypeGetRooms:      "get-rooms",
	MsgTypeCreateRoom:    "create-room",
	MsgTypeJoinRoom:      "join-room",
	MsgTypeLeaveRoom:     "leave-room",
	MsgTypeReconnect:     "reconnect-player",
	MsgTypeStartGame:     "start-game",
	MsgTypeRollDice:      "roll-dice",
	MsgTypeToggleHold:    "toggle-hold",
	MsgTypeScoreCategory: "score-category",
	MsgTypeKickPlayer:    "kick-player",
	MsgTypeGetHints:      "get-hints",
	MsgTypeRoomList:      "room-list",
	MsgTypeRoomState:     "room-state",
	MsgTypeRoomCreated:   "room-created",
	MsgTypeRoomJoined:    "room-joined",
	MsgTypeReconnected:   "reconnected",
	MsgTypePlayerKicked:  "player-kicked",
	MsgTypeHints:         "hints",
	MsgTypeError:         "error",
}

// MsgName is the action name of a message id, or "unknown".
func MsgName(id uint16) string {
	if n, ok := msgNames[id]; ok {
		return n
	}
	return "unknown"
}

type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
	RoomName   string `json:"roomName,omitempty"`
	TurnTimer  *int   `json:"turnTimer,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

type JoinRoomRequest struct {
	RoomID      string `json:"roomId"`
	PlayerName  string `json:"playerName"`
	AsSpectator bool   `json:"asSpectator"`
}

// RoomPlayerRequest carries the fields shared by leave-room, start-game and get-hints.
type RoomPlayerRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type ReconnectRequest struct {
	PlayerID string `json:"playerId"`
}

type RollDiceRequest struct {
	RoomID   string           `json:"roomId"`
	PlayerID string           `json:"playerId"`
	Target   yahtzee.Category `json:"target,omitempty"`
}

type ToggleHoldRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	DieIndex int    `json:"dieIndex"`
}

type ScoreCategoryRequest struct {
	RoomID   string           `json:"roomId"`
	PlayerID string           `json:"playerId"`
	Category yahtzee.Category `json:"category"`
}

type KickPlayerRequest struct {
	RoomID         string `json:"roomId"`
	PlayerID       string `json:"playerId"`
	TargetPlayerID string `json:"targetPlayerId"`
}

type RoomCreated struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type RoomJoined struct {
	RoomID      string `json:"roomId"`
	PlayerID    string `json:"playerId"`
	IsSpectator bool   `json:"isSpectator"`
}

type Reconnected struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type PlayerKicked struct {
	PlayerID string `json:"playerId"`
}

type HintsResponse struct {
	RoomID string         `json:"roomId"`
	Hints  []yahtzee.Hint `json:"hints"`
}

type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
