package txscope

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// Reasons carried by the errors of this package.
const (
	ReasonConfiguration     = "CONFIGURATION_ERROR"
	ReasonIsolationConflict = "ISOLATION_CONFLICT"
	ReasonOutOfOrder        = "OUT_OF_ORDER"
	ReasonScopeCompleted    = "SCOPE_COMPLETED"
	ReasonTransactionState  = "TRANSACTION_STATE"
)

var (
	// ErrConfiguration reports an unresolved database name, provider or connection string.
	ErrConfiguration = errors.InternalServer(ReasonConfiguration, "database configuration could not be resolved")

	// ErrIsolationConflict is returned when a nested scope asks for an isolation
	// level other than the one the manager transaction was started with.
	ErrIsolationConflict = errors.InternalServer(ReasonIsolationConflict, "manager transaction already running with a different isolation level")

	// ErrOutOfOrder is returned when a scope completes while it is not the innermost one.
	ErrOutOfOrder = errors.InternalServer(ReasonOutOfOrder, "scope is not registered or has completed out of order")

	// ErrScopeCompleted is returned by a second Complete or Abort on the same scope.
	ErrScopeCompleted = errors.InternalServer(ReasonScopeCompleted, "transaction scope is already complete")

	// ErrTransactionState is returned when the manager's internal begin/end
	// bookkeeping is asked to move from a state it is not in.
	ErrTransactionState = errors.InternalServer(ReasonTransactionState, "invalid transaction state transition")
)

var invariantReasons = map[string]struct{}{
	ReasonIsolationConflict: {},
	ReasonOutOfOrder:        {},
	ReasonScopeCompleted:    {},
	ReasonTransactionState:  {},
}

// IsInvariantViolation reports whether err is a usage error of the scope API.
// Such errors are never transient and must not be retried.
func IsInvariantViolation(err error) bool {
	if err == nil {
		return false
	}
	_, ok := invariantReasons[errors.Reason(err)]
	return ok
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Reason(err) == ReasonConfiguration
}
