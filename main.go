package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SanderKaatee/yahtzee/config"
	"github.com/SanderKaatee/yahtzee/logger"
	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/server"
)

// openStore picks the storage backend named by database.driver.
func openStore(cfg *config.Config) (persistence.Database, error) {
	pg := cfg.Database.Postgres
	dsn := persistence.DSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return persistence.NewMemoryStore(), nil
	case config.DriverPostgres:
		return persistence.NewPostgreSQL(dsn)
	case config.DriverGorm:
		return persistence.NewGormPostgreSQL(dsn)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize Database
	db, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Infow("Database ready.", "driver", cfg.Database.Driver)

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, db)

	// Start Server
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
		errCh <- gameServer.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Failed to start server: %v", err)
		}
	case <-stop:
		logger.Log.Info("Shutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Shutdown error: %v", err)
	}
}
