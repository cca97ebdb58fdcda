// Package db owns the GORM connection: postgres for the services, a sqlite
// file for the storefront device store and in-memory sqlite for tests.
package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

type Client struct {
	conn *gorm.DB
}

// Pinger is what the health endpoint needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if cfg.IsSQLite() {
		return sqlite.Open(cfg.DSN), nil
	}
	// simple protocol keeps pgbouncer in transaction mode happy
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
}

// New opens and tunes the pool described by cfg. SQL is logged through logg:
// failures at error level, statements slower than cfg.SlowQuery at warn.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}

	switch {
	case cfg.IsSQLite():
		// one writer at a time, otherwise SQLITE_BUSY
		pool.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	logg.Info(logg.WithField(ctx, "driver", cfg.Driver), "db.connected")
	return &Client{conn: conn}, nil
}

// FromConn wraps a connection opened elsewhere, such as a test database.
func FromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

// OpenSQLite opens the device store at path and auto-migrates models into it.
func OpenSQLite(ctx context.Context, path string, logg *logger.Logger, models ...any) (*Client, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	c, err := New(ctx, config.DBConfig{DSN: path, Driver: config.DBDriverSQLite}, logg)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return c, nil
	}
	if err := c.conn.WithContext(ctx).AutoMigrate(models...); err != nil {
		return nil, errors.Join(fmt.Errorf("migrate device store: %w", err), c.Close())
	}
	return c, nil
}

func (c *Client) DB() *gorm.DB { return c.conn }

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in a transaction that commits when fn returns nil and rolls
// back on an error or a panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
