// Package dbtest provides a migrated in-memory SQLite database for tests.
package dbtest

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/db/migrations"
	"github.com/umakantv/go-utils/logger"

	"journal-service/database/sqlite"
)

// InitLogger makes the go-utils logger usable from tests
func InitLogger() {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
}

// MigrationsDir returns the absolute path of the SQLite migration files
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "migrations")
}

// New opens a fresh in-memory database with the production schema applied
func New(t *testing.T) *sqlx.DB {
	t.Helper()
	InitLogger()

	conn, err := sqlx.Open(sqlite.DriverName, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every connection to :memory: is a separate database
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := migrations.Migrate(conn, MigrationsDir()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
