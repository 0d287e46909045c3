// Package sqldriver adapts a database/sql pool to txscope.Driver and binds
// handles to gorm sessions.
package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/guoxiaopeng875/txscope/pkg/txscope"
)

var _ txscope.Driver = (*Driver)(nil)

// Driver opens dedicated connections from a *sql.DB pool.
type Driver struct {
	db *sql.DB
}

// New returns a driver over db. The pool stays owned by the caller.
func New(db *sql.DB) *Driver {
	return &Driver{db: db}
}

// Open implements txscope.Driver.
func (d *Driver) Open(ctx context.Context) (txscope.Conn, error) {
	c, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: c}, nil
}

// Conn is a dedicated pool connection.
type Conn struct {
	conn *sql.Conn
}

// Raw returns the underlying connection.
func (c *Conn) Raw() *sql.Conn {
	return c.conn
}

// Ping verifies the connection is alive.
func (c *Conn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// BeginTx implements txscope.Conn. database/sql rolls a transaction back when
// its context ends, so the transaction is detached from ctx and lives until
// Commit or Rollback.
func (c *Conn) BeginTx(ctx context.Context, level txscope.IsolationLevel) (txscope.Tx, error) {
	tx, err := c.conn.BeginTx(context.WithoutCancel(ctx), &sql.TxOptions{Isolation: isolation(level)})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Close returns the connection to the pool.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Tx wraps *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// Raw returns the underlying transaction.
func (t *Tx) Raw() *sql.Tx {
	return t.tx
}

// Commit implements txscope.Tx.
func (t *Tx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

// Rollback implements txscope.Tx.
func (t *Tx) Rollback(_ context.Context) error {
	return t.tx.Rollback()
}

func isolation(level txscope.IsolationLevel) sql.IsolationLevel {
	switch level {
	case txscope.LevelReadUncommitted:
		return sql.LevelReadUncommitted
	case txscope.LevelReadCommitted:
		return sql.LevelReadCommitted
	case txscope.LevelRepeatableRead:
		return sql.LevelRepeatableRead
	case txscope.LevelSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// Gorm returns a session of db that runs its statements on h: inside the
// shared transaction for a participating handle, on the private connection
// otherwise. The session must not outlive h.
func Gorm(ctx context.Context, db *gorm.DB, h *txscope.Handle) (*gorm.DB, error) {
	var pool gorm.ConnPool
	if tx := h.Tx(); tx != nil {
		sqlTx, ok := tx.(*Tx)
		if !ok {
			return nil, fmt.Errorf("sqldriver: handle transaction is %T, not *sqldriver.Tx", tx)
		}
		pool = sqlTx.tx
	} else {
		conn, ok := h.Conn().(*Conn)
		if !ok {
			return nil, fmt.Errorf("sqldriver: handle connection is %T, not *sqldriver.Conn", h.Conn())
		}
		pool = conn.conn
	}

	session := db.Session(&gorm.Session{Context: ctx, SkipDefaultTransaction: true})
	session.Statement.ConnPool = pool
	return session, nil
}
