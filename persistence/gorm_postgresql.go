// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// GORM 日志写入 zap
	gormLogger := gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold:             time.Second,     // 慢SQL阈值
			LogLevel:                  gormlogger.Warn, // 日志级别
			IgnoreRecordNotFoundError: true,
			Colorful:                  false, // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormRoom{},
		&models.GormPlayer{},
		&models.GormGameRecord{},
	)
}

func gormError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	}
	return err
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return gormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := withTimeout(ctx)
	return p.db.WithContext(ctx), cancel
}

func (p *GormPostgreSQL) CreateRoom(ctx context.Context, room *models.Room) error {
	db, cancel := p.conn(ctx)
	defer cancel()
	return gormError(db.Create(models.ToGormRoom(room)).Error)
}

func (p *GormPostgreSQL) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	db, cancel := p.conn(ctx)
	defer cancel()

	var row models.GormRoom
	if err := db.Where("id = ?", roomID).First(&row).Error; err != nil {
		return nil, gormError(err)
	}
	return row.ToRoom(), nil
}

func (p *GormPostgreSQL) UpdateRoom(ctx context.Context, room *models.Room) error {
	db, cancel := p.conn(ctx)
	defer cancel()

	row := models.ToGormRoom(room)
	return affected(db.Model(&models.GormRoom{}).Where("id = ?", room.ID).Select("*").Updates(row))
}

// DeleteRoom 删除房间及其玩家
func (p *GormPostgreSQL) DeleteRoom(ctx context.Context, roomID string) error {
	db, cancel := p.conn(ctx)
	defer cancel()

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.GormPlayer{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&models.GormRoom{}).Error
	})
}

func (p *GormPostgreSQL) ListRooms(ctx context.Context, finishedSince time.Time) ([]models.RoomSummary, error) {
	db, cancel := p.conn(ctx)
	defer cancel()

	var rows []models.GormRoomSummary
	err := db.Raw(`
        SELECT r.*,
               COUNT(p.id) FILTER (WHERE NOT p.is_spectator) AS player_count,
               COUNT(p.id) FILTER (WHERE p.is_spectator) AS spectator_count
        FROM rooms r
        LEFT JOIN players p ON p.room_id = r.id AND p.is_connected
        WHERE r.status <> 'finished' OR r.updated_at > ?
        GROUP BY r.id
        ORDER BY r.created_at DESC, r.id`,
		finishedSince,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.RoomSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToSummary())
	}
	return out, nil
}

func (p *GormPostgreSQL) CreatePlayer(ctx context.Context, player *models.Player) error {
	db, cancel := p.conn(ctx)
	defer cancel()
	return gormError(db.Create(models.ToGormPlayer(player)).Error)
}

func (p *GormPostgreSQL) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	db, cancel := p.conn(ctx)
	defer cancel()

	var row models.GormPlayer
	if err := db.Where("id = ?", playerID).First(&row).Error; err != nil {
		return nil, gormError(err)
	}
	return row.ToPlayer(), nil
}

func (p *GormPostgreSQL) GetPlayerBySession(ctx context.Context, sessionID string) (*models.Player, error) {
	if sessionID == "" {
		return nil, ErrRecordNotFound
	}
	db, cancel := p.conn(ctx)
	defer cancel()

	var row models.GormPlayer
	if err := db.Where("session_id = ?", sessionID).First(&row).Error; err != nil {
		return nil, gormError(err)
	}
	return row.ToPlayer(), nil
}

func (p *GormPostgreSQL) UpdatePlayer(ctx context.Context, player *models.Player) error {
	db, cancel := p.conn(ctx)
	defer cancel()

	row := models.ToGormPlayer(player)
	return affected(db.Model(&models.GormPlayer{}).Where("id = ?", player.ID).Select("*").Updates(row))
}

func (p *GormPostgreSQL) DeletePlayer(ctx context.Context, playerID string) error {
	db, cancel := p.conn(ctx)
	defer cancel()
	return db.Where("id = ?", playerID).Delete(&models.GormPlayer{}).Error
}

func (p *GormPostgreSQL) ListPlayers(ctx context.Context, roomID string) ([]*models.Player, error) {
	db, cancel := p.conn(ctx)
	defer cancel()

	var rows []models.GormPlayer
	err := db.Where("room_id = ?", roomID).
		Order("turn_order ASC NULLS LAST").
		Order("joined_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*models.Player, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToPlayer())
	}
	return out, nil
}

// SaveSnapshot 事务内 upsert 房间和玩家，并删除已离开的玩家
func (p *GormPostgreSQL) SaveSnapshot(ctx context.Context, room *models.Room, players []*models.Player) error {
	db, cancel := p.conn(ctx)
	defer cancel()

	return db.Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{UpdateAll: true}
		if err := tx.Clauses(upsert).Create(models.ToGormRoom(room)).Error; err != nil {
			return err
		}

		ids := make([]string, 0, len(players))
		for _, pl := range players {
			ids = append(ids, pl.ID)
			if err := tx.Clauses(upsert).Create(models.ToGormPlayer(pl)).Error; err != nil {
				return err
			}
		}

		stale := tx.Where("room_id = ?", room.ID)
		if len(ids) > 0 {
			stale = stale.Where("id NOT IN ?", ids)
		}
		return stale.Delete(&models.GormPlayer{}).Error
	})
}

// SaveGameRecord 保存游戏记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	db, cancel := p.conn(ctx)
	defer cancel()
	return db.Create(models.ToGormGameRecord(record)).Error
}

func (p *GormPostgreSQL) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	db, cancel := p.conn(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	var rows []models.GormGameRecord
	if err := db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.GameRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToGameRecord())
	}
	return out, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
