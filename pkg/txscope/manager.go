// Package txscope coordinates nested transaction scopes over one lazily
// opened database transaction.
//
// A Manager is created per logical unit of work. Participants create scopes
// against it and resolve each scope exactly once, innermost first. The real
// transaction is begun the first time a participating connection is asked
// for and is committed, or rolled back if any scope aborted, when the last
// scope resolves.
//
// A Manager holds plain mutable state and must be driven by one goroutine at
// a time.
package txscope

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// Manager is the scope coordinator for one unit of work.
type Manager struct {
	driver Driver
	log    *log.Helper
	hooks  Hooks

	// manager transaction
	active    bool
	stack     []*Scope
	isolation IsolationLevel
	rollback  bool

	// real transaction, both set or both nil
	conn Conn
	tx   Tx
}

// NewManager returns an idle manager that opens connections through driver.
func NewManager(driver Driver, opts ...Option) *Manager {
	m := &Manager{
		driver: driver,
		log:    log.NewHelper(log.With(log.DefaultLogger, "module", "pkg/txscope")),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Active reports whether at least one scope is registered.
func (m *Manager) Active() bool {
	return m.active
}

// InTransaction reports whether the real database transaction is open.
func (m *Manager) InTransaction() bool {
	return m.tx != nil
}

// Depth returns the number of registered scopes.
func (m *Manager) Depth() int {
	return len(m.stack)
}

// CreateScope registers a new innermost scope. When repeatableRead is set the
// manager transaction must run at repeatable read; a scope without the
// requirement joins whatever level is in force.
func (m *Manager) CreateScope(repeatableRead bool) (*Scope, error) {
	s := newScope(m, repeatableRead)
	if err := m.register(s); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateConnection returns a handle for one unit of database work.
//
// A participating handle shares the manager's transaction, beginning it on
// first use; the caller must not end it. A non-participating handle, or any
// handle requested while no scope is registered, wraps a private connection
// that the handle releases on Close.
func (m *Manager) CreateConnection(ctx context.Context, participating bool) (*Handle, error) {
	if participating && m.active {
		if m.tx == nil {
			if err := m.beginDBTx(ctx); err != nil {
				return nil, err
			}
		}
		return &Handle{conn: m.conn, tx: m.tx}, nil
	}

	conn, err := m.driver.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{conn: conn, owned: true}, nil
}

func (m *Manager) register(s *Scope) error {
	if !m.active {
		if err := m.beginManagerTx(s.isolation); err != nil {
			return err
		}
	} else if s.isolation != LevelDefault && s.isolation != m.isolation {
		return ErrIsolationConflict.WithMetadata(map[string]string{
			"current":   m.isolation.String(),
			"requested": s.isolation.String(),
		})
	}
	m.stack = append(m.stack, s)
	return nil
}

// complete resolves s, which must be the innermost registered scope. The
// last scope out ends the real transaction; its connection is released on
// every path, including a failed commit.
func (m *Manager) complete(ctx context.Context, s *Scope, rollback bool) error {
	n := len(m.stack)
	if n == 0 || m.stack[n-1] != s {
		return ErrOutOfOrder.WithMetadata(map[string]string{"scope": s.id.String()})
	}
	m.stack[n-1] = nil
	m.stack = m.stack[:n-1]
	if rollback {
		m.rollback = true
	}

	if !m.active || len(m.stack) > 0 {
		return nil
	}

	var err error
	if m.tx != nil {
		err = m.endDBTx(ctx)
	}
	if endErr := m.endManagerTx(); err == nil {
		err = endErr
	}
	return err
}

func (m *Manager) beginManagerTx(level IsolationLevel) error {
	if m.active {
		return ErrTransactionState.WithMetadata(map[string]string{"op": "begin manager transaction"})
	}
	m.active = true
	m.isolation = level
	m.rollback = false
	m.log.Debugf("manager transaction started, isolation=%s", level)
	return nil
}

func (m *Manager) endManagerTx() error {
	if !m.active {
		return ErrTransactionState.WithMetadata(map[string]string{"op": "end manager transaction"})
	}
	if m.tx != nil {
		return ErrTransactionState.WithMetadata(map[string]string{"op": "end manager transaction with open db transaction"})
	}
	m.active = false
	m.isolation = LevelDefault
	m.log.Debugf("manager transaction ended, rollback=%t", m.rollback)
	return nil
}

func (m *Manager) beginDBTx(ctx context.Context) error {
	if m.tx != nil {
		return ErrTransactionState.WithMetadata(map[string]string{"op": "begin db transaction"})
	}

	conn, err := m.driver.Open(ctx)
	if err != nil {
		m.log.Errorf("open connection for db transaction: %v", err)
		m.observeBegin(err)
		return err
	}
	tx, err := conn.BeginTx(ctx, m.isolation)
	if err != nil {
		m.log.Errorf("begin db transaction: %v", err)
		if closeErr := conn.Close(); closeErr != nil {
			m.log.Errorf("close connection after failed begin: %v", closeErr)
		}
		m.observeBegin(err)
		return err
	}

	m.conn, m.tx = conn, tx
	m.log.Debugf("db transaction begun, isolation=%s", m.isolation)
	m.observeBegin(nil)
	return nil
}

func (m *Manager) endDBTx(ctx context.Context) error {
	if m.tx == nil {
		return ErrTransactionState.WithMetadata(map[string]string{"op": "end db transaction"})
	}

	outcome := OutcomeCommit
	var err error
	if m.rollback {
		outcome = OutcomeRollback
		err = m.tx.Rollback(ctx)
	} else {
		err = m.tx.Commit(ctx)
	}

	closeErr := m.conn.Close()
	m.conn, m.tx = nil, nil

	if err != nil {
		m.log.Errorf("db transaction %s failed: %v", outcome, err)
	} else {
		m.log.Infof("db transaction %s", outcome)
	}
	if closeErr != nil {
		m.log.Errorf("close db transaction connection: %v", closeErr)
	}
	if m.hooks.OnEnd != nil {
		m.hooks.OnEnd(outcome, err)
	}

	if err != nil {
		return err
	}
	return closeErr
}

func (m *Manager) observeBegin(err error) {
	if m.hooks.OnBegin != nil {
		m.hooks.OnBegin(m.isolation, err)
	}
}
