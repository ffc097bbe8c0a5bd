// Package database implements queue.Adapter on a SQL table laid out like
// Laravel's jobs table, so Laravel and wq workers can share it:
//
//	jobs(id, queue, payload, attempts, reserved_at, available_at, created_at)
//	failed_jobs(connection, queue, payload, exception, failed_at)
//
// Timestamps are unix seconds. MySQL and PostgreSQL are supported.
package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/pixelvide/wq-go/pkg/queue"
)

const (
	DefaultTable          = "jobs"
	DefaultFailedTable    = "failed_jobs"
	DefaultConnectionName = "database"
	DefaultLease          = 60 * time.Second
	DefaultPollInterval   = time.Second
)

const (
	dialectMySQL    = "mysql"
	dialectPostgres = "postgres"
)

// Adapter stores work queues in a SQL table.
type Adapter struct {
	db             *sql.DB
	table          string
	failedTable    string
	connectionName string
	codec          queue.Codec
	lease          time.Duration
	pollInterval   time.Duration
	now            func() time.Time

	mu     sync.RWMutex
	driver string

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// reservation is the handle of entries fetched by this adapter.
type reservation struct {
	ID       int64
	Attempts int
}

type Option func(*Adapter)

func WithTable(table string) Option {
	return func(a *Adapter) { a.table = table }
}

func WithFailedTable(table string) Option {
	return func(a *Adapter) { a.failedTable = table }
}

// WithConnectionName sets the connection column of buried jobs.
func WithConnectionName(name string) Option {
	return func(a *Adapter) { a.connectionName = name }
}

// WithDriver sets the SQL dialect: "mysql" (the default), "postgres" or "pgsql".
func WithDriver(name string) Option {
	return func(a *Adapter) { a.driver = normalizeDriver(name) }
}

func WithCodec(codec queue.Codec) Option {
	return func(a *Adapter) { a.codec = codec }
}

// WithLease sets how long a fetched row stays reserved.
func WithLease(d time.Duration) Option {
	return func(a *Adapter) { a.lease = d }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pollInterval = d }
}

// New creates an Adapter on db. The adapter closes db on Disconnect.
func New(db *sql.DB, opts ...Option) *Adapter {
	a := &Adapter{
		db:             db,
		table:          DefaultTable,
		failedTable:    DefaultFailedTable,
		connectionName: DefaultConnectionName,
		codec:          queue.DefaultCodec(),
		lease:          DefaultLease,
		pollInterval:   DefaultPollInterval,
		now:            time.Now,
		driver:         dialectMySQL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func normalizeDriver(name string) string {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgsql", "pq":
		return dialectPostgres
	default:
		return dialectMySQL
	}
}

// rebind rewrites ? placeholders for PostgreSQL.
func (a *Adapter) rebind(query string) string {
	a.mu.RLock()
	d := a.driver
	a.mu.RUnlock()
	if d != dialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// detectPostgres switches to PostgreSQL placeholders when the server
// rejected a MySQL style query.
func (a *Adapter) detectPostgres(err error) {
	var pqErr *pq.Error
	syntax := (errors.As(err, &pqErr) && pqErr.Code == "42601") || strings.HasPrefix(err.Error(), "pq: syntax error")
	if !syntax {
		return
	}
	a.mu.Lock()
	a.driver = dialectPostgres
	a.mu.Unlock()
}

func (a *Adapter) NextEntry(ctx context.Context, queues []string, timeout time.Duration) (*queue.Entry, error) {
	if a.closed.Load() {
		return nil, queue.ErrDisconnected
	}
	return queue.Poll(ctx, timeout, a.pollInterval, func(ctx context.Context) (*queue.Entry, error) {
		for _, name := range queues {
			entry, err := a.reserve(ctx, name)
			if err != nil || entry != nil {
				return entry, err
			}
		}
		return nil, nil
	})
}

func (a *Adapter) reserve(ctx context.Context, queueName string) (*queue.Entry, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, a.wrap("begin", err)
	}
	defer tx.Rollback()

	now := a.now().Unix()
	expired := now - int64(a.lease/time.Second)
	query := a.rebind(fmt.Sprintf(`SELECT id, payload, attempts FROM %s WHERE queue = ? AND ((reserved_at IS NULL AND available_at <= ?) OR reserved_at <= ?) ORDER BY id ASC LIMIT 1 FOR UPDATE`, a.table))

	var res reservation
	var payload []byte
	err = tx.QueryRowContext(ctx, query, queueName, now, expired).Scan(&res.ID, &payload, &res.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		a.detectPostgres(err)
		return nil, a.wrap("reserve", err)
	}

	res.Attempts++
	update := a.rebind(fmt.Sprintf("UPDATE %s SET reserved_at = ?, attempts = ? WHERE id = ?", a.table))
	if _, err := tx.ExecContext(ctx, update, now, res.Attempts, res.ID); err != nil {
		return nil, a.wrap("reserve", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, a.wrap("commit", err)
	}

	return queue.DecodeEntry(a.codec, payload, queueName, res)
}

func (a *Adapter) Store(ctx context.Context, queueName string, j queue.Job, delay time.Duration) error {
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	payload, err := a.codec.Encode(j)
	if err != nil {
		return err
	}
	_, err = a.insert(ctx, a.db, queueName, payload, 0, delay)
	return a.wrap("store", err)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (a *Adapter) insert(ctx context.Context, db execer, queueName string, payload []byte, attempts int, delay time.Duration) (sql.Result, error) {
	now := a.now()
	query := a.rebind(fmt.Sprintf(`INSERT INTO %s (queue, payload, attempts, available_at, created_at) VALUES (?, ?, ?, ?, ?)`, a.table))
	return db.ExecContext(ctx, query, queueName, string(payload), attempts, now.Add(delay).Unix(), now.Unix())
}

// Requeue deletes the row and inserts the re-encoded job as a new one,
// keeping the attempts count.
func (a *Adapter) Requeue(ctx context.Context, entry *queue.Entry, delay time.Duration, queueName string) error {
	res, err := reservationOf(entry)
	if err != nil {
		return err
	}
	if queueName == "" {
		queueName = entry.Queue
	}
	payload, err := a.codec.Encode(entry.Job)
	if err != nil {
		return err
	}

	return a.inTx(ctx, "requeue", func(tx *sql.Tx) error {
		if err := a.deleteRow(ctx, tx, res.ID); err != nil {
			return err
		}
		_, err := a.insert(ctx, tx, queueName, payload, res.Attempts, delay)
		return err
	})
}

// Bury copies the row into the failed jobs table and deletes it.
func (a *Adapter) Bury(ctx context.Context, entry *queue.Entry) error {
	res, err := reservationOf(entry)
	if err != nil {
		return err
	}

	return a.inTx(ctx, "bury", func(tx *sql.Tx) error {
		query := a.rebind(fmt.Sprintf(`INSERT INTO %s (connection, queue, payload, exception, failed_at) SELECT ?, queue, payload, ?, ? FROM %s WHERE id = ?`, a.failedTable, a.table))
		if _, err := tx.ExecContext(ctx, query, a.connectionName, "", a.now(), res.ID); err != nil {
			return err
		}
		return a.deleteRow(ctx, tx, res.ID)
	})
}

func (a *Adapter) Delete(ctx context.Context, entry *queue.Entry) error {
	res, err := reservationOf(entry)
	if err != nil {
		return err
	}
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	return a.wrap("delete", a.deleteRow(ctx, a.db, res.ID))
}

func (a *Adapter) deleteRow(ctx context.Context, db execer, id int64) error {
	_, err := db.ExecContext(ctx, a.rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", a.table)), id)
	return err
}

func (a *Adapter) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if a.closed.Load() {
		return queue.ErrDisconnected
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return a.wrap(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return a.wrap(op, err)
	}
	return a.wrap(op, tx.Commit())
}

// Disconnect closes the database handle.
func (a *Adapter) Disconnect() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.closeErr = a.db.Close()
	})
	return a.closeErr
}

func reservationOf(entry *queue.Entry) (reservation, error) {
	res, ok := entry.Handle.(reservation)
	if !ok {
		return reservation{}, fmt.Errorf("database: entry handle %v was not created by this adapter", entry.Handle)
	}
	return res, nil
}

func (a *Adapter) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) && a.closed.Load() {
		return queue.ErrDisconnected
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) || errors.As(err, &netErr) {
		return queue.NewConnectionError("database "+op, err)
	}
	return fmt.Errorf("database %s: %w", op, err)
}
