package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPoolEnsureIsIdempotent(t *testing.T) {
	dials := 0
	pool := NewPoolWithDialector(func() (*gorm.DB, error) {
		dials++
		return gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	}, PoolOptions{MaxOpenConns: 1})

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Ensure(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 1, dials)
	require.NoError(t, pool.Ping(context.Background()))

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err := pool.Ensure(context.Background())
	require.Error(t, err)
}

func TestPoolEnsureRetriesAfterFailure(t *testing.T) {
	attempts := 0
	pool := NewPoolWithDialector(func() (*gorm.DB, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	}, PoolOptions{})
	defer pool.Close()

	_, err := pool.Ensure(context.Background())
	require.Error(t, err)

	db, err := pool.Ensure(context.Background())
	require.NoError(t, err)
	require.NotNil(t, db)
	require.Equal(t, 2, attempts)
}

func TestConnectPostgresRejectsEmptyDSN(t *testing.T) {
	_, err := ConnectPostgres("")
	require.Error(t, err)
}

func TestConnectRedisRejectsEmptyURL(t *testing.T) {
	_, err := ConnectRedis("")
	require.Error(t, err)
}
