// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL 驱动
	"github.com/pressly/goose/v3"

	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgreSQL 数据库实现，表结构由 goose 迁移管理
type PostgreSQL struct {
	db *sql.DB
}

// DSN builds a key/value connection string.
func DSN(host string, port int, user, password, dbname, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接并执行迁移
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateKey
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// jsonb 参数必须以字符串传入，lib/pq 会把 []byte 当作 bytea
func gameStateParam(g *yahtzee.GameState) (interface{}, error) {
	if g == nil {
		return nil, nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const roomColumns = `id, name, host_id, status, max_players, turn_timer,
	current_player_index, next_turn_order, game_state, created_at, updated_at`

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		r         models.Room
		status    string
		turnTimer sql.NullInt64
		game      []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &r.HostID, &status, &r.MaxPlayers, &turnTimer,
		&r.CurrentPlayerIndex, &r.NextTurnOrder, &game, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RoomStatus(status)
	r.TurnTimer = intPtr(turnTimer)
	if len(game) > 0 {
		r.GameState = &yahtzee.GameState{}
		if err := json.Unmarshal(game, r.GameState); err != nil {
			return nil, fmt.Errorf("decode game state of %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

const playerColumns = `id, room_id, session_id, name, is_spectator, is_connected,
	turn_order, scorecard, joined_at`

func scanPlayer(row rowScanner) (*models.Player, error) {
	var (
		p         models.Player
		roomID    sql.NullString
		sessionID sql.NullString
		turnOrder sql.NullInt64
		card      []byte
	)
	if err := row.Scan(&p.ID, &roomID, &sessionID, &p.Name, &p.IsSpectator, &p.IsConnected,
		&turnOrder, &card, &p.JoinedAt); err != nil {
		return nil, err
	}
	p.RoomID = roomID.String
	p.SessionID = sessionID.String
	p.TurnOrder = intPtr(turnOrder)
	if len(card) > 0 {
		if err := json.Unmarshal(card, &p.Scorecard); err != nil {
			return nil, fmt.Errorf("decode scorecard of %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func roomArgs(r *models.Room) ([]interface{}, error) {
	game, err := gameStateParam(r.GameState)
	if err != nil {
		return nil, err
	}
	return []interface{}{r.ID, r.Name, r.HostID, string(r.Status), r.MaxPlayers, nullInt(r.TurnTimer),
		r.CurrentPlayerIndex, r.NextTurnOrder, game, r.CreatedAt, r.UpdatedAt}, nil
}

func playerArgs(p *models.Player) ([]interface{}, error) {
	card, err := json.Marshal(p.Scorecard)
	if err != nil {
		return nil, err
	}
	return []interface{}{p.ID, nullString(p.RoomID), nullString(p.SessionID), p.Name, p.IsSpectator,
		p.IsConnected, nullInt(p.TurnOrder), string(card), p.JoinedAt}, nil
}

const upsertRoom = `
	INSERT INTO rooms (` + roomColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, host_id = EXCLUDED.host_id, status = EXCLUDED.status,
		max_players = EXCLUDED.max_players, turn_timer = EXCLUDED.turn_timer,
		current_player_index = EXCLUDED.current_player_index,
		next_turn_order = EXCLUDED.next_turn_order, game_state = EXCLUDED.game_state,
		updated_at = EXCLUDED.updated_at`

const upsertPlayer = `
	INSERT INTO players (` + playerColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		room_id = EXCLUDED.room_id, session_id = EXCLUDED.session_id, name = EXCLUDED.name,
		is_spectator = EXCLUDED.is_spectator, is_connected = EXCLUDED.is_connected,
		turn_order = EXCLUDED.turn_order, scorecard = EXCLUDED.scorecard`

func execRoom(ctx context.Context, ex execer, query string, r *models.Room) (sql.Result, error) {
	args, err := roomArgs(r)
	if err != nil {
		return nil, err
	}
	return ex.ExecContext(ctx, query, args...)
}

func execPlayer(ctx context.Context, ex execer, query string, p *models.Player) (sql.Result, error) {
	args, err := playerArgs(p)
	if err != nil {
		return nil, err
	}
	return ex.ExecContext(ctx, query, args...)
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CreateRoom 创建房间
func (p *PostgreSQL) CreateRoom(ctx context.Context, room *models.Room) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO rooms (` + roomColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := execRoom(ctx, p.db, query, room)
	return translate(err)
}

func (p *PostgreSQL) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := p.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, roomID)
	r, err := scanRoom(row)
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

// UpdateRoom 单条语句整体更新，避免并发写丢失
func (p *PostgreSQL) UpdateRoom(ctx context.Context, room *models.Room) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `UPDATE rooms SET name = $2, host_id = $3, status = $4, max_players = $5,
		turn_timer = $6, current_player_index = $7, next_turn_order = $8, game_state = $9,
		created_at = $10, updated_at = $11 WHERE id = $1`
	return mustAffect(execRoom(ctx, p.db, query, room))
}

func (p *PostgreSQL) DeleteRoom(ctx context.Context, roomID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	// players 通过外键级联删除
	_, err := p.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	return err
}

func (p *PostgreSQL) ListRooms(ctx context.Context, finishedSince time.Time) ([]models.RoomSummary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT r.id, r.name, r.host_id, r.status, r.max_players, r.turn_timer,
		       COUNT(p.id) FILTER (WHERE NOT p.is_spectator) AS player_count,
		       COUNT(p.id) FILTER (WHERE p.is_spectator) AS spectator_count,
		       r.created_at, r.updated_at
		FROM rooms r
		LEFT JOIN players p ON p.room_id = r.id AND p.is_connected
		WHERE r.status <> 'finished' OR r.updated_at > $1
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id`
	rows, err := p.db.QueryContext(ctx, query, finishedSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RoomSummary{}
	for rows.Next() {
		var (
			s         models.RoomSummary
			status    string
			turnTimer sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.HostID, &status, &s.MaxPlayers, &turnTimer,
			&s.PlayerCount, &s.SpectatorCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Status = models.RoomStatus(status)
		s.TurnTimer = intPtr(turnTimer)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgreSQL) CreatePlayer(ctx context.Context, player *models.Player) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO players (` + playerColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := execPlayer(ctx, p.db, query, player)
	return translate(err)
}

func (p *PostgreSQL) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := p.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, playerID)
	pl, err := scanPlayer(row)
	if err != nil {
		return nil, translate(err)
	}
	return pl, nil
}

func (p *PostgreSQL) GetPlayerBySession(ctx context.Context, sessionID string) (*models.Player, error) {
	if sessionID == "" {
		return nil, ErrRecordNotFound
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := p.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE session_id = $1 LIMIT 1`, sessionID)
	pl, err := scanPlayer(row)
	if err != nil {
		return nil, translate(err)
	}
	return pl, nil
}

func (p *PostgreSQL) UpdatePlayer(ctx context.Context, player *models.Player) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `UPDATE players SET room_id = $2, session_id = $3, name = $4, is_spectator = $5,
		is_connected = $6, turn_order = $7, scorecard = $8, joined_at = $9 WHERE id = $1`
	return mustAffect(execPlayer(ctx, p.db, query, player))
}

func (p *PostgreSQL) DeletePlayer(ctx context.Context, playerID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, playerID)
	return err
}

func (p *PostgreSQL) ListPlayers(ctx context.Context, roomID string) ([]*models.Player, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players
		WHERE room_id = $1 ORDER BY turn_order ASC NULLS LAST, joined_at ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Player
	for rows.Next() {
		pl, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// SaveSnapshot 在一个事务里写入房间和完整名单
func (p *PostgreSQL) SaveSnapshot(ctx context.Context, room *models.Room, players []*models.Player) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := execRoom(ctx, tx, upsertRoom, room); err != nil {
		return err
	}
	ids := make([]string, 0, len(players))
	for _, pl := range players {
		ids = append(ids, pl.ID)
		if _, err := execPlayer(ctx, tx, upsertPlayer, pl); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM players WHERE room_id = $1 AND NOT (id = ANY($2))`, room.ID, pq.Array(ids)); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveGameRecord 保存游戏记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	playersJSON, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
        INSERT INTO game_records (room_id, room_name, winner_id, winner_name, players, turns, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = p.db.ExecContext(ctx, query, record.RoomID, record.RoomName, record.WinnerID,
		record.WinnerName, string(playersJSON), record.Turns, record.CreatedAt)
	return err
}

func (p *PostgreSQL) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT room_id, room_name, winner_id, winner_name, players, turns, created_at
		FROM game_records ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.GameRecord{}
	for rows.Next() {
		var (
			rec     models.GameRecord
			players []byte
		)
		if err := rows.Scan(&rec.RoomID, &rec.RoomName, &rec.WinnerID, &rec.WinnerName,
			&players, &rec.Turns, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &rec.Players); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
