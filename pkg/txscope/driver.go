package txscope

import (
	"context"
)

// IsolationLevel is the isolation level a scope requires for the real transaction.
// LevelDefault means no preference, the driver's default applies.
type IsolationLevel int

const (
	LevelDefault IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelRepeatableRead
	LevelSerializable
)

// String returns the SQL name of the level.
func (l IsolationLevel) String() string {
	switch l {
	case LevelReadUncommitted:
		return "READ UNCOMMITTED"
	case LevelReadCommitted:
		return "READ COMMITTED"
	case LevelRepeatableRead:
		return "REPEATABLE READ"
	case LevelSerializable:
		return "SERIALIZABLE"
	default:
		return "DEFAULT"
	}
}

// Driver produces connections to a single configured database.
// Implementations must be safe for concurrent use; a Manager is not.
type Driver interface {
	// Open creates and opens a new connection.
	Open(ctx context.Context) (Conn, error)
}

// Conn is one open database connection.
type Conn interface {
	// BeginTx starts a transaction. LevelDefault leaves the isolation to the database.
	BeginTx(ctx context.Context, level IsolationLevel) (Tx, error)
	// Close releases the connection. A transaction still pending on it is
	// discarded the way the driver discards it.
	Close() error
}

// Tx is a transaction begun on a Conn.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
