package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"hash/crc32"
	"sync"
	"time"
)

// DatabaseLockProvider implements LockProvider using SQL database locks.
//
// MySQL named locks and PostgreSQL advisory locks belong to a session, so
// every held lock pins its own connection until it is released.
type DatabaseLockProvider struct {
	db       *sql.DB
	postgres bool

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewDatabaseLockProvider creates a new database lock provider. driver is
// "mysql", or one of "postgres", "pgsql" and "pq".
func NewDatabaseLockProvider(db *sql.DB, driver string) *DatabaseLockProvider {
	return &DatabaseLockProvider{
		db:       db,
		postgres: driver == "postgres" || driver == "pgsql" || driver == "pq",
		conns:    make(map[string]*sql.Conn),
	}
}

// GetLock attempts to acquire a lock. The duration is not used: the lock is
// held until it is released or its connection dies.
func (d *DatabaseLockProvider) GetLock(ctx context.Context, name string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, held := d.conns[name]; held {
		return false, nil
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if d.postgres {
		acquired, err = d.getPostgresLock(ctx, conn, name)
	} else {
		acquired, err = d.getMySQLLock(ctx, conn, name)
	}
	if err != nil || !acquired {
		_ = conn.Close()
		return false, err
	}
	d.conns[name] = conn
	return true, nil
}

// ReleaseLock releases the lock
func (d *DatabaseLockProvider) ReleaseLock(ctx context.Context, name string) error {
	d.mu.Lock()
	conn, ok := d.conns[name]
	delete(d.conns, name)
	d.mu.Unlock()
	if !ok {
		return nil
	}
	defer conn.Close()

	if d.postgres {
		var released bool
		return conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", hashName(name)).Scan(&released)
	}
	var result sql.NullInt64
	return conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", name).Scan(&result)
}

// GET_LOCK(str, timeout) returns 1 if success, 0 if timeout, NULL if error
func (d *DatabaseLockProvider) getMySQLLock(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&result); err != nil {
		return false, err
	}
	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK(%q) returned NULL", name)
	}
	return result.Int64 == 1, nil
}

func (d *DatabaseLockProvider) getPostgresLock(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var success bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", hashName(name)).Scan(&success); err != nil {
		return false, err
	}
	return success, nil
}

// hashName maps a lock name onto the bigint key advisory locks take.
func hashName(name string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(name)))
}
