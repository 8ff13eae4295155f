// Package sqlite registers the SQLite driver used by the service. It is
// go-sqlite3 with LOWER replaced by a Unicode-aware version, so text search
// folds case the same way in SQL as in Go.
package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql name of the wrapped driver
const DriverName = "sqlite3_journal"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Open connects to dsn with the pool settings of go-utils db.GetDBConnection
func Open(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sqlx.Connect(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return db, nil
}
