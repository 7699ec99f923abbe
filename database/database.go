// Package database provides the database connection and the migration runner.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database represents a connection pool to the migrated database.
type Database struct {
	conn *sqlx.DB
}

// New creates a new Database instance with the given connection string.
// The connection is established lazily on first use, so commands that never
// touch the database do not require it to be reachable.
func New(connection string) (*Database, error) {
	db, err := sqlx.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{conn: db}, nil
}

// Connection returns the underlying sqlx database connection.
func (db *Database) Connection() *sqlx.DB {
	return db.conn
}

// ConfigurePool limits the pool to maxConns connections and closes
// connections that stay idle longer than idleTimeout.
func (db *Database) ConfigurePool(maxConns int, idleTimeout time.Duration) {
	db.conn.SetMaxOpenConns(maxConns)
	db.conn.SetMaxIdleConns(maxConns)
	db.conn.SetConnMaxIdleTime(idleTimeout)
}

// Ping verifies that the database is reachable.
func (db *Database) Ping(ctx context.Context) error {
	err := db.conn.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

// Runner returns a migration Runner executing files from dir on this database.
func (db *Database) Runner(dir Dir, out Reporter) *Runner {
	return NewRunner(db.conn, dir, out)
}

// Close closes the connection pool.
func (db *Database) Close() error {
	return db.conn.Close()
}
