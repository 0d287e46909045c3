package txscope

import (
	"github.com/go-kratos/kratos/v2/log"
)

// Outcome is how a real transaction ended.
type Outcome string

const (
	OutcomeCommit   Outcome = "commit"
	OutcomeRollback Outcome = "rollback"
)

// Hooks observe the real transaction lifecycle. Nil fields are skipped.
type Hooks struct {
	// OnBegin runs after the real transaction was begun, err is the driver error if it failed.
	OnBegin func(level IsolationLevel, err error)
	// OnEnd runs once per real transaction after commit or rollback was attempted.
	OnEnd func(outcome Outcome, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager.
func WithLogger(logger log.Logger) Option {
	return func(m *Manager) {
		m.log = log.NewHelper(log.With(logger, "module", "pkg/txscope"))
	}
}

// WithHooks installs lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}
