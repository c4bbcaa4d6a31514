package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/network"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

const usage = `commands:
  rooms                  list rooms
  create <name> [room]   create a room
  join <room> <name>     join a room (add "watch" to spectate)
  reconnect <playerId>   take over a player after reconnecting
  start | leave | hints
  roll [category]        roll the unheld dice
  hold <0-4>             toggle a die
  score <category>       score the current dice
  kick <playerId>
  quit`

// client 记录当前所在房间和玩家身份
type client struct {
	conn     *network.WSConnection
	mu       sync.Mutex
	roomID   string
	playerID string
}

func (c *client) ids() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.playerID
}

func (c *client) setIDs(roomID, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.playerID = roomID, playerID
}

func (c *client) send(msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("encode %s: %v", network.MsgName(msgID), err)
		return
	}
	if err := c.conn.Send(msgID, data); err != nil {
		logger.Log.Errorf("Write error: %v", err)
		return
	}
	logger.Log.Infof("-> SENT %s", network.MsgName(msgID))
}

func (c *client) readLoop(done chan struct{}) {
	defer close(done)
	for {
		packet, err := c.conn.ReadPacket()
		if err != nil {
			logger.Log.Infof("Read error: %v", err)
			return
		}
		switch packet.MsgID {
		case network.MsgTypeRoomCreated:
			var ack network.RoomCreated
			if json.Unmarshal(packet.Data, &ack) == nil {
				c.setIDs(ack.RoomID, ack.PlayerID)
			}
		case network.MsgTypeRoomJoined:
			var ack network.RoomJoined
			if json.Unmarshal(packet.Data, &ack) == nil {
				c.setIDs(ack.RoomID, ack.PlayerID)
			}
		case network.MsgTypeReconnected:
			var ack network.Reconnected
			if json.Unmarshal(packet.Data, &ack) == nil {
				c.setIDs(ack.RoomID, ack.PlayerID)
			}
		case network.MsgTypePlayerKicked:
			var kicked network.PlayerKicked
			if json.Unmarshal(packet.Data, &kicked) == nil {
				if _, me := c.ids(); me == kicked.PlayerID {
					c.setIDs("", "")
				}
			}
		}
		logger.Log.Infof("<- RECV %s: %s", network.MsgName(packet.MsgID), string(packet.Data))
	}
}

func (c *client) handle(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	roomID, playerID := c.ids()
	base := network.RoomPlayerRequest{RoomID: roomID, PlayerID: playerID}

	switch fields[0] {
	case "quit", "exit":
		return false
	case "rooms":
		c.send(network.MsgTypeGetRooms, struct{}{})
	case "create":
		c.send(network.MsgTypeCreateRoom, network.CreateRoomRequest{PlayerName: arg(1), RoomName: strings.Join(fields[min(2, len(fields)):], " ")})
	case "join":
		c.send(network.MsgTypeJoinRoom, network.JoinRoomRequest{RoomID: strings.ToUpper(arg(1)), PlayerName: arg(2), AsSpectator: arg(3) == "watch"})
	case "reconnect":
		c.send(network.MsgTypeReconnect, network.ReconnectRequest{PlayerID: arg(1)})
	case "start":
		c.send(network.MsgTypeStartGame, base)
	case "leave":
		c.send(network.MsgTypeLeaveRoom, base)
		c.setIDs("", "")
	case "hints":
		c.send(network.MsgTypeGetHints, base)
	case "roll":
		c.send(network.MsgTypeRollDice, network.RollDiceRequest{RoomID: roomID, PlayerID: playerID, Target: yahtzee.Category(arg(1))})
	case "hold":
		die, err := strconv.Atoi(arg(1))
		if err != nil {
			logger.Log.Warnf("hold needs a die index: %v", err)
			return true
		}
		c.send(network.MsgTypeToggleHold, network.ToggleHoldRequest{RoomID: roomID, PlayerID: playerID, DieIndex: die})
	case "score":
		c.send(network.MsgTypeScoreCategory, network.ScoreCategoryRequest{RoomID: roomID, PlayerID: playerID, Category: yahtzee.Category(arg(1))})
	case "kick":
		c.send(network.MsgTypeKickPlayer, network.KickPlayerRequest{RoomID: roomID, PlayerID: playerID, TargetPlayerID: arg(1)})
	default:
		logger.Log.Info(usage)
	}
	return true
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "server websocket URL")
	flag.Parse()

	if err := logger.Init("info", true); err != nil {
		panic(err)
	}
	defer logger.Sync()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	logger.Log.Infof("Connecting to %s", *addr)

	conn, err := network.Dial(*addr)
	if err != nil {
		logger.Log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	c := &client{conn: conn}
	done := make(chan struct{})
	go c.readLoop(done)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	logger.Log.Info("Client started. Type 'help' for commands.")
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			logger.Log.Info("Interrupt received, closing connection.")
			return
		case line, ok := <-lines:
			if !ok || !c.handle(line) {
				return
			}
		}
	}
}
