package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Game.MaxPlayers)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.RollAnimation)
	assert.Equal(t, time.Hour, cfg.Game.FinishedRoomTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":9000"
database:
  driver: gorm
  postgres:
    host: db
    port: 6543
game:
  roll_animation: 250ms
  max_players: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("YAHTZEE_GAME_MAX_PLAYERS", "6")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddress)
	assert.Equal(t, DriverGorm, cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Postgres.Host)
	assert.Equal(t, 6543, cfg.Database.Postgres.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Game.RollAnimation)
	assert.Equal(t, 6, cfg.Game.MaxPlayers, "environment wins over the file")
}

func TestLoadConfig_BadDriver(t *testing.T) {
	t.Setenv("YAHTZEE_DATABASE_DRIVER", "mysql")
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
