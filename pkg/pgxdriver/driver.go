// Package pgxdriver adapts a pgx connection pool to txscope.Driver.
package pgxdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guoxiaopeng875/txscope/pkg/txscope"
)

var _ txscope.Driver = (*Driver)(nil)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewPool creates a pool and verifies it can reach the database.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Driver acquires connections from a pgx pool.
type Driver struct {
	pool *pgxpool.Pool
}

// New returns a driver over pool. The pool stays owned by the caller.
func New(pool *pgxpool.Pool) *Driver {
	return &Driver{pool: pool}
}

// Open implements txscope.Driver.
func (d *Driver) Open(ctx context.Context) (txscope.Conn, error) {
	c, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: c}, nil
}

// poolConn is the part of *pgxpool.Conn a Conn uses.
type poolConn interface {
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Release()
}

var _ poolConn = (*pgxpool.Conn)(nil)

// Conn is a connection acquired from the pool.
type Conn struct {
	conn poolConn
}

// Raw returns the underlying pool connection.
func (c *Conn) Raw() *pgxpool.Conn {
	raw, _ := c.conn.(*pgxpool.Conn)
	return raw
}

// Ping verifies the connection is alive.
func (c *Conn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// BeginTx implements txscope.Conn.
func (c *Conn) BeginTx(ctx context.Context, level txscope.IsolationLevel) (txscope.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: isoLevel(level)})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Close releases the connection back to the pool. The pool discards a
// connection that still has a transaction open.
func (c *Conn) Close() error {
	c.conn.Release()
	return nil
}

// Tx wraps pgx.Tx.
type Tx struct {
	tx pgx.Tx
}

// Raw returns the underlying transaction, for running statements.
func (t *Tx) Raw() pgx.Tx {
	return t.tx
}

// Commit implements txscope.Tx.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback implements txscope.Tx. The rollback is sent even when ctx is
// already cancelled.
func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(context.WithoutCancel(ctx))
}

func isoLevel(level txscope.IsolationLevel) pgx.TxIsoLevel {
	switch level {
	case txscope.LevelReadUncommitted:
		return pgx.ReadUncommitted
	case txscope.LevelReadCommitted:
		return pgx.ReadCommitted
	case txscope.LevelRepeatableRead:
		return pgx.RepeatableRead
	case txscope.LevelSerializable:
		return pgx.Serializable
	default:
		return ""
	}
}
