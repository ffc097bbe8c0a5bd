// Package database opens SQL connections for the database adapter and the
// scheduler's lock provider.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// Factory creates database connections with a common pool setup.
type Factory struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewFactory creates a Factory with the default pool settings.
func NewFactory() *Factory {
	return &Factory{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DriverName maps Laravel style connection names to registered
// database/sql driver names.
func DriverName(connection string) string {
	switch strings.ToLower(connection) {
	case "pgsql", "postgres", "postgresql":
		return "postgres"
	default:
		return strings.ToLower(connection)
	}
}

// Open creates a connection pool without connecting.
func (f *Factory) Open(connection, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName(connection), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", connection, err)
	}

	db.SetMaxOpenConns(f.MaxOpenConns)
	db.SetMaxIdleConns(f.MaxIdleConns)
	db.SetConnMaxLifetime(f.ConnMaxLifetime)
	return db, nil
}

// Connect opens a pool and verifies that the server is reachable.
func (f *Factory) Connect(ctx context.Context, connection, dsn string) (*sql.DB, error) {
	db, err := f.Open(connection, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
