package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string   `mapstructure:"http_address"`
	RPCAddress     string   `mapstructure:"rpc_address"`
	GRPCAddress    string   `mapstructure:"grpc_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// memory | postgres | gorm
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type GameConfig struct {
	MaxPlayers      int           `mapstructure:"max_players"`
	RollAnimation   time.Duration `mapstructure:"roll_animation"`
	FinishedRoomTTL time.Duration `mapstructure:"finished_room_ttl"`
	ActionRate      float64       `mapstructure:"action_rate"`
	ActionBurst     int           `mapstructure:"action_burst"`
	TimerResolution time.Duration `mapstructure:"timer_resolution"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverGorm     = "gorm"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.grpc_address", ":8082")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "yahtzee")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("game.max_players", 8)
	v.SetDefault("game.roll_animation", 500*time.Millisecond)
	v.SetDefault("game.finished_room_ttl", time.Hour)
	v.SetDefault("game.action_rate", 10)
	v.SetDefault("game.action_burst", 20)
	v.SetDefault("game.timer_resolution", 20*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path. A missing file is fine, defaults and
// YAHTZEE_* environment variables fill the rest.
func LoadConfig(path string) (config *Config, err error) {
	// .env 可选
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("YAHTZEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config = &Config{}
	if err = v.Unmarshal(config); err != nil {
		return nil, err
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverPostgres, DriverGorm:
	default:
		return errors.New("database.driver must be memory, postgres or gorm")
	}
	if c.Game.MaxPlayers <= 0 {
		return errors.New("game.max_players must be positive")
	}
	if c.Game.ActionRate <= 0 || c.Game.ActionBurst <= 0 {
		return errors.New("game.action_rate and game.action_burst must be positive")
	}
	if c.Game.TimerResolution <= 0 {
		return errors.New("game.timer_resolution must be positive")
	}
	return nil
}
