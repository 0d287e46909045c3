package txscope

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Scope is one participant in the manager transaction. It must be resolved
// with Complete or Abort exactly once; Close aborts a scope that was not.
//
//	scope, err := m.CreateScope(false)
//	if err != nil {
//		return err
//	}
//	defer scope.Close()
//	// ... work through m.CreateConnection ...
//	return scope.Complete(ctx)
type Scope struct {
	m         *Manager
	id        uuid.UUID
	isolation IsolationLevel
	completed bool
}

func newScope(m *Manager, repeatableRead bool) *Scope {
	s := &Scope{m: m, id: uuid.New()}
	if repeatableRead {
		s.isolation = LevelRepeatableRead
	}
	return s
}

// ID identifies the scope in logs and errors.
func (s *Scope) ID() uuid.UUID {
	return s.id
}

// IsolationLevel returns the level this scope requires, LevelDefault if none.
func (s *Scope) IsolationLevel() IsolationLevel {
	return s.isolation
}

// Completed reports whether the scope has been resolved.
func (s *Scope) Completed() bool {
	return s.completed
}

// Complete votes to commit. The real transaction commits only if every scope
// of the manager transaction completes.
func (s *Scope) Complete(ctx context.Context) error {
	return s.resolve(ctx, false)
}

// Abort votes to roll back. The whole manager transaction will roll back.
func (s *Scope) Abort(ctx context.Context) error {
	return s.resolve(ctx, true)
}

// Close aborts the scope unless it was already resolved.
func (s *Scope) Close() error {
	if s.completed {
		return nil
	}
	s.m.log.Warnf("scope %s released without completion, aborting", s.id)
	return s.Abort(context.Background())
}

func (s *Scope) resolve(ctx context.Context, rollback bool) error {
	if s.completed {
		return ErrScopeCompleted.WithMetadata(map[string]string{"scope": s.id.String()})
	}
	err := s.m.complete(ctx, s, rollback)
	if errors.Is(err, ErrOutOfOrder) {
		return err
	}
	// popped from the stack, even when the driver failed to end the transaction
	s.completed = true
	return err
}
