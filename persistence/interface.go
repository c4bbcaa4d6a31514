// persistence/interface.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/SanderKaatee/yahtzee/models"
)

// Database 数据库接口。所有返回的记录都是副本，调用方可以随意修改。
type Database interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	// DeleteRoom removes the room and every player still in it.
	DeleteRoom(ctx context.Context, roomID string) error
	// ListRooms returns rooms that are not finished, plus finished rooms updated
	// after finishedSince, newest first. Counts only include connected players.
	ListRooms(ctx context.Context, finishedSince time.Time) ([]models.RoomSummary, error)

	CreatePlayer(ctx context.Context, player *models.Player) error
	GetPlayer(ctx context.Context, playerID string) (*models.Player, error)
	GetPlayerBySession(ctx context.Context, sessionID string) (*models.Player, error)
	UpdatePlayer(ctx context.Context, player *models.Player) error
	DeletePlayer(ctx context.Context, playerID string) error
	// ListPlayers orders by turn order, then join time. Spectators sort last.
	ListPlayers(ctx context.Context, roomID string) ([]*models.Player, error)

	// SaveSnapshot writes the room and its full roster in one transaction.
	// Players of the room that are not in players are deleted.
	SaveSnapshot(ctx context.Context, room *models.Room, players []*models.Player) error

	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error)

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrDuplicateKey   = fmt.Errorf("record already exists")
)

const defaultQueryTimeout = 5 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
