package txscope

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_NestedScopesCommitOnce(t *testing.T) {
	ctx := context.Background()
	d := &recordingDriver{}
	m := NewManager(d)

	a, err := m.CreateScope(false)
	require.NoError(t, err)
	h, err := m.CreateConnection(ctx, true)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	b, err := m.CreateScope(false)
	require.NoError(t, err)
	h2, err := m.CreateConnection(ctx, true)
	require.NoError(t, err)
	assert.Same(t, h.Tx(), h2.Tx(), "participating handles share the transaction")
	require.NoError(t, h2.Close())

	require.NoError(t, b.Complete(ctx))
	assert.True(t, m.InTransaction())
	require.NoError(t, a.Complete(ctx))

	assert.Equal(t, []string{"open:1", "begin:DEFAULT", "commit", "close:1"}, d.events)
	assert.False(t, m.Active())
	assert.False(t, m.InTransaction())
	assert.Equal(t, 0, m.Depth())
}

func TestManager_AbortIsSticky(t *testing.T) {
	tests := []struct {
		name    string
		resolve func(ctx context.Context, outer, inner *Scope) error
	}{
		{
			name: "inner aborts outer completes",
			resolve: func(ctx context.Context, outer, inner *Scope) error {
				if err := inner.Abort(ctx); err != nil {
					return err
				}
				return outer.Complete(ctx)
			},
		},
		{
			name: "inner closed without outcome",
			resolve: func(ctx context.Context, outer, inner *Scope) error {
				if err := inner.Close(); err != nil {
					return err
				}
				return outer.Complete(ctx)
			},
		},
		{
			name: "outer aborts after inner completes",
			resolve: func(ctx context.Context, outer, inner *Scope) error {
				if err := inner.Complete(ctx); err != nil {
					return err
				}
				return outer.Abort(ctx)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			d := &recordingDriver{}
			m := NewManager(d)

			outer, err := m.CreateScope(false)
			require.NoError(t, err)
			inner, err := m.CreateScope(false)
			require.NoError(t, err)
			_, err = m.CreateConnection(ctx, true)
			require.NoError(t, err)

			require.NoError(t, tt.resolve(ctx, outer, inner))
			assert.Equal(t, 0, d.count("commit"))
			assert.Equal(t, 1, d.count("rollback"))
			assert.Equal(t, 1, d.count("close:1"))
		})
	}
}

func TestManager_RollbackFlagResetsBetweenManagerTransactions(t *testing.T) {
	ctx := context.Background()
	d := &recordingDriver{}
	m := NewManager(d)

	s, err := m.CreateScope(false)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)
	require.NoError(t, s.Abort(ctx))

	s, err = m.CreateScope(false)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx))

	assert.Equal(t, []string{
		"open:1", "begin:DEFAULT", "rollback", "close:1",
		"open:2", "begin:DEFAULT", "commit", "close:2",
	}, d.events)
}

func TestManager_OutOfOrderCompletion(t *testing.T) {
	ctx := context.Background()
	d := &recordingDriver{}
	m := NewManager(d)

	outer, err := m.CreateScope(false)
	require.NoError(t, err)
	inner, err := m.CreateScope(false)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)
	before := append([]string(nil), d.events...)

	err = outer.Complete(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfOrder))
	assert.True(t, IsInvariantViolation(err))

	assert.Equal(t, 2, m.Depth())
	assert.True(t, m.Active())
	assert.True(t, m.InTransaction())
	assert.False(t, outer.Completed())
	assert.Equal(t, before, d.events)

	require.NoError(t, inner.Complete(ctx))
	require.NoError(t, outer.Complete(ctx))
	assert.Equal(t, 1, d.count("commit"))
}

func TestManager_IsolationConflict(t *testing.T) {
	tests := []struct {
		name          string
		first, second bool
		wantErr       bool
	}{
		{name: "both none", first: false, second: false},
		{name: "both repeatable read", first: true, second: true},
		{name: "nested without preference joins", first: true, second: false},
		{name: "nested asks for stricter level", first: false, second: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(&recordingDriver{})
			_, err := m.CreateScope(tt.first)
			require.NoError(t, err)

			s, err := m.CreateScope(tt.second)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, 2, m.Depth())
				return
			}
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrIsolationConflict))
			assert.True(t, IsInvariantViolation(err))
			assert.Equal(t, 1, m.Depth())
		})
	}
}

func TestManager_RepeatableReadReachesDriver(t *testing.T) {
	ctx := context.Background()
	d := &recordingDriver{}
	m := NewManager(d)

	s, err := m.CreateScope(true)
	require.NoError(t, err)
	assert.Equal(t, LevelRepeatableRead, s.IsolationLevel())
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx))

	assert.Equal(t, []string{"open:1", "begin:REPEATABLE READ", "commit", "close:1"}, d.events)
}

func TestManager_PrivateConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("while idle", func(t *testing.T) {
		d := &recordingDriver{}
		m := NewManager(d)

		h, err := m.CreateConnection(ctx, false)
		require.NoError(t, err)
		assert.Nil(t, h.Tx())
		assert.False(t, h.Participating())
		require.NoError(t, h.Close())
		assert.Equal(t, []string{"open:1", "close:1"}, d.events)
	})

	t.Run("while a manager transaction is active", func(t *testing.T) {
		d := &recordingDriver{}
		m := NewManager(d)
		s, err := m.CreateScope(false)
		require.NoError(t, err)
		shared, err := m.CreateConnection(ctx, true)
		require.NoError(t, err)

		h, err := m.CreateConnection(ctx, false)
		require.NoError(t, err)
		assert.Nil(t, h.Tx())
		assert.NotSame(t, shared.Conn(), h.Conn())
		require.NoError(t, h.Close())
		require.NoError(t, h.Close(), "close is idempotent")

		require.NoError(t, s.Complete(ctx))
		assert.Equal(t, []string{"open:1", "begin:DEFAULT", "open:2", "close:2", "commit", "close:1"}, d.events)
	})

	t.Run("participating requested without a scope", func(t *testing.T) {
		d := &recordingDriver{}
		m := NewManager(d)

		h, err := m.CreateConnection(ctx, true)
		require.NoError(t, err)
		assert.Nil(t, h.Tx())
		assert.False(t, h.Participating())
		require.NoError(t, h.Close())
		assert.Equal(t, []string{"open:1", "close:1"}, d.events)
	})
}

func TestManager_ParticipatingHandleDoesNotRelease(t *testing.T) {
	ctx := context.Background()
	d := &recordingDriver{}
	m := NewManager(d)

	s, err := m.CreateScope(false)
	require.NoError(t, err)
	h, err := m.CreateConnection(ctx, true)
	require.NoError(t, err)
	assert.True(t, h.Participating())
	require.NoError(t, h.Close())
	assert.False(t, h.Conn().(*recordingConn).closed)

	require.NoError(t, s.Complete(ctx))
	assert.True(t, h.Conn().(*recordingConn).closed)
}

func TestManager_LazyBegin(t *testing.T) {
	ctx := context.Background()
	d := &recordingDriver{}
	m := NewManager(d)

	s, err := m.CreateScope(false)
	require.NoError(t, err)
	assert.True(t, m.Active())
	assert.False(t, m.InTransaction())
	require.NoError(t, s.Complete(ctx))

	assert.Empty(t, d.events)
	assert.False(t, m.Active())
}

func TestManager_CommitFailureReleasesConnection(t *testing.T) {
	ctx := context.Background()
	commitErr := errors.New("serialization failure")
	d := &recordingDriver{commitErr: commitErr, closeErr: errors.New("close failed")}
	m := NewManager(d)

	s, err := m.CreateScope(false)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)

	err = s.Complete(ctx)
	assert.Same(t, commitErr, err, "driver errors are passed through unchanged")
	assert.True(t, s.Completed())
	assert.Equal(t, []string{"open:1", "begin:DEFAULT", "commit", "close:1"}, d.events)
	assert.False(t, m.Active())
	assert.False(t, m.InTransaction())

	assert.True(t, errors.Is(s.Complete(ctx), ErrScopeCompleted))
}

func TestManager_CloseErrorReportedAfterSuccessfulCommit(t *testing.T) {
	ctx := context.Background()
	closeErr := errors.New("close failed")
	d := &recordingDriver{closeErr: closeErr}
	m := NewManager(d)

	s, err := m.CreateScope(false)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)

	assert.Same(t, closeErr, s.Complete(ctx))
	assert.False(t, m.Active())
}

func TestManager_BeginFailure(t *testing.T) {
	ctx := context.Background()
	beginErr := errors.New("too many connections")
	d := &recordingDriver{beginErr: beginErr}
	m := NewManager(d)

	s, err := m.CreateScope(false)
	require.NoError(t, err)

	h, err := m.CreateConnection(ctx, true)
	assert.Nil(t, h)
	assert.Same(t, beginErr, err)
	assert.Equal(t, []string{"open:1", "begin:DEFAULT", "close:1"}, d.events)
	assert.True(t, m.Active())
	assert.False(t, m.InTransaction())

	d.beginErr = nil
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx))
	assert.Equal(t, 1, d.count("commit"))
}

func TestManager_OpenFailure(t *testing.T) {
	ctx := context.Background()
	openErr := errors.New("connection refused")
	m := NewManager(&recordingDriver{openErr: openErr})

	_, err := m.CreateConnection(ctx, false)
	assert.Same(t, openErr, err)

	s, err := m.CreateScope(false)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, true)
	assert.Same(t, openErr, err)
	require.NoError(t, s.Complete(ctx))
}

func TestManager_Hooks(t *testing.T) {
	ctx := context.Background()
	var begins []IsolationLevel
	var ends []Outcome
	m := NewManager(&recordingDriver{}, WithHooks(Hooks{
		OnBegin: func(level IsolationLevel, err error) {
			assert.NoError(t, err)
			begins = append(begins, level)
		},
		OnEnd: func(outcome Outcome, err error) {
			assert.NoError(t, err)
			ends = append(ends, outcome)
		},
	}))

	s, err := m.CreateScope(true)
	require.NoError(t, err)
	_, err = m.CreateConnection(ctx, true)
	require.NoError(t, err)
	require.NoError(t, s.Abort(ctx))

	s, err = m.CreateScope(false)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx))

	assert.Equal(t, []IsolationLevel{LevelRepeatableRead}, begins)
	assert.Equal(t, []Outcome{OutcomeRollback}, ends)
}

func TestManager_EndManagerTransactionStateChecks(t *testing.T) {
	m := NewManager(&recordingDriver{})
	assert.True(t, errors.Is(m.endManagerTx(), ErrTransactionState))
	assert.True(t, errors.Is(m.endDBTx(context.Background()), ErrTransactionState))

	require.NoError(t, m.beginManagerTx(LevelDefault))
	assert.True(t, errors.Is(m.beginManagerTx(LevelDefault), ErrTransactionState))
}
