package schedule

import (
	"context"
	"hash/crc32"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLockProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	p := NewRedisLockProvider(client)
	acquired, err := p.GetLock(ctx, "reports", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, 30*time.Second, mr.TTL(redisLockPrefix+"reports"))

	acquired, err = NewRedisLockProvider(client).GetLock(ctx, "reports", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, p.ReleaseLock(ctx, "reports"))
	assert.False(t, mr.Exists(redisLockPrefix+"reports"))
}

func TestRedisLockProvider_ExpiredLockIsNotStolen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	slow := NewRedisLockProvider(client)
	acquired, err := slow.GetLock(ctx, "reports", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Minute)

	next := NewRedisLockProvider(client)
	acquired, err = next.GetLock(ctx, "reports", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, slow.ReleaseLock(ctx, "reports"))
	assert.True(t, mr.Exists(redisLockPrefix+"reports"), "the new holder keeps its lock")
}

func TestRedisLockProvider_ReleaseUnknown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, NewRedisLockProvider(client).ReleaseLock(context.Background(), "never-taken"))
}

func newLockMock(t *testing.T, driver string) (*DatabaseLockProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDatabaseLockProvider(db, driver), mock
}

func TestDatabaseLockProvider_MySQL(t *testing.T) {
	p, mock := newLockMock(t, "mysql")
	ctx := context.Background()

	mock.ExpectQuery("SELECT GET_LOCK(?, 0)").WithArgs("reports").
		WillReturnRows(sqlmock.NewRows([]string{"lock"}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK(?)").WithArgs("reports").
		WillReturnRows(sqlmock.NewRows([]string{"release"}).AddRow(1))

	acquired, err := p.GetLock(ctx, "reports", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Held locally, so no round trip.
	acquired, err = p.GetLock(ctx, "reports", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, p.ReleaseLock(ctx, "reports"))
	require.NoError(t, p.ReleaseLock(ctx, "reports"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseLockProvider_MySQLBusy(t *testing.T) {
	p, mock := newLockMock(t, "mysql")

	mock.ExpectQuery("SELECT GET_LOCK(?, 0)").WithArgs("reports").
		WillReturnRows(sqlmock.NewRows([]string{"lock"}).AddRow(0))

	acquired, err := p.GetLock(context.Background(), "reports", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// Nothing to release.
	require.NoError(t, p.ReleaseLock(context.Background(), "reports"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseLockProvider_MySQLNull(t *testing.T) {
	p, mock := newLockMock(t, "mysql")

	mock.ExpectQuery("SELECT GET_LOCK(?, 0)").WithArgs("reports").
		WillReturnRows(sqlmock.NewRows([]string{"lock"}).AddRow(nil))

	acquired, err := p.GetLock(context.Background(), "reports", time.Minute)
	assert.Error(t, err)
	assert.False(t, acquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseLockProvider_Postgres(t *testing.T) {
	for _, driver := range []string{"postgres", "pgsql", "pq"} {
		t.Run(driver, func(t *testing.T) {
			p, mock := newLockMock(t, driver)
			ctx := context.Background()
			key := int64(crc32.ChecksumIEEE([]byte("reports")))

			mock.ExpectQuery("SELECT pg_try_advisory_lock($1)").WithArgs(key).
				WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))
			mock.ExpectQuery("SELECT pg_advisory_unlock($1)").WithArgs(key).
				WillReturnRows(sqlmock.NewRows([]string{"ok"}).AddRow(true))

			acquired, err := p.GetLock(ctx, "reports", time.Minute)
			require.NoError(t, err)
			assert.True(t, acquired)
			require.NoError(t, p.ReleaseLock(ctx, "reports"))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
