package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"journal-service/config"
	"journal-service/database/pgmigrations"
	"journal-service/database/sqlite"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/umakantv/go-utils/db/migrations"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeDatabase opens the configured database and applies pending migrations
func InitializeDatabase(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.DBDriver {
	case "pgx":
		return initializePostgres(cfg.DBDSN)
	default:
		return initializeSQLite(cfg.DBDSN, cfg.MigrationsDir)
	}
}

func initializeSQLite(dsn, migrationsDir string) (*sqlx.DB, error) {
	path := strings.SplitN(dsn, "?", 2)[0]
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dbConn, err := sqlite.Open(dsn)
	if err != nil {
		logger.Error("Error in opening a DB connection", zap.Error(err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrations.Migrate(dbConn, migrationsDir); err != nil {
		dbConn.Close()
		logger.Error("Error while running migration", zap.Error(err))
		return nil, err
	}

	logger.Info("Database initialized successfully", zap.String("driver", "sqlite3"))
	return dbConn, nil
}

func initializePostgres(dsn string) (*sqlx.DB, error) {
	dbConn, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	dbConn.SetConnMaxLifetime(3 * time.Minute)
	dbConn.SetMaxOpenConns(10)
	dbConn.SetMaxIdleConns(10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	goose.SetBaseFS(pgmigrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("configure goose: %w", err)
	}
	if err := goose.UpContext(ctx, dbConn.DB, "."); err != nil {
		dbConn.Close()
		logger.Error("Error while running migration", zap.Error(err))
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("Database initialized successfully", zap.String("driver", "pgx"))
	return dbConn, nil
}
