package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolOptions tunes the underlying sql.DB pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Pool owns the database connection. It connects lazily on first Ensure and
// is released once with Close during shutdown.
type Pool struct {
	mu     sync.Mutex
	dial   func() (*gorm.DB, error)
	opts   PoolOptions
	db     *gorm.DB
	closed bool
}

// NewPool prepares a PostgreSQL pool for dsn without connecting.
func NewPool(dsn string, opts PoolOptions) *Pool {
	return NewPoolWithDialector(func() (*gorm.DB, error) {
		return ConnectPostgres(dsn)
	}, opts)
}

// NewPoolWithDialector prepares a pool around a custom connect function.
func NewPoolWithDialector(dial func() (*gorm.DB, error), opts PoolOptions) *Pool {
	return &Pool{dial: dial, opts: opts}
}

// Ensure returns the connected handle, connecting on first use. It is safe to
// call repeatedly and concurrently; a failed attempt is retried on the next call.
func (p *Pool) Ensure(ctx context.Context) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("database pool is closed")
	}
	if p.db != nil {
		return p.db, nil
	}

	db, err := p.dial()
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql pool: %w", err)
	}
	if p.opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.opts.MaxOpenConns)
	}
	if p.opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(p.opts.MaxIdleConns)
	}
	if p.opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.opts.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	p.db = db
	return p.db, nil
}

// Ping verifies the live connection without establishing one.
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.Lock()
	db := p.db
	p.mu.Unlock()

	if db == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool. Later calls are no-ops.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	p.db = nil
	return sqlDB.Close()
}

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}
