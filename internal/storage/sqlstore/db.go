// Package sqlstore persists posts and job state through sqlx. It runs on
// PostgreSQL in production and on SQLite for local use and tests.
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
