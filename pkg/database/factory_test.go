package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	assert.Equal(t, "postgres", DriverName("pgsql"))
	assert.Equal(t, "postgres", DriverName("PostgreSQL"))
	assert.Equal(t, "mysql", DriverName("mysql"))
}

func TestFactory_Open(t *testing.T) {
	f := NewFactory()

	db, err := f.Open("mysql", "user:secret@tcp(127.0.0.1:3306)/app")
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 25, db.Stats().MaxOpenConnections)

	_, err = f.Open("sqlite", "file::memory:")
	assert.Error(t, err)
}

func TestFactory_Connect(t *testing.T) {
	mockDB, _, err := sqlmock.NewWithDSN("factory_ok")
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := NewFactory().Connect(context.Background(), "sqlmock", "factory_ok")
	require.NoError(t, err)
	assert.NotNil(t, db)
}

func TestFactory_ConnectPingFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewFactory().Connect(ctx, "pgsql", "host=127.0.0.1 port=1 user=wq dbname=wq sslmode=disable connect_timeout=1")
	assert.ErrorContains(t, err, "failed to ping database")
}
