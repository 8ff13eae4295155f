package pgmigrations

import "embed"

// FS holds the goose migrations applied when DB_DRIVER=pgx
//
//go:embed *.sql
var FS embed.FS
