// Package types contains the collaborator interfaces of the data-access layer.
// These interfaces are separate from the main dbx package to avoid import cycles
// and to make them easily accessible for mocking and testing.
package types

import (
	"context"
)

// ConnectionProvider defines a contract for acquiring and releasing physical
// database connections.
//
// The transaction manager acquires exactly one connection per outermost transaction
// frame and releases it when that frame exits, on every exit path. Implementations
// are expected to be backed by a pre-existing pooling facility (for example pgxpool);
// this library performs no pooling of its own.
type ConnectionProvider interface {
	// Acquire returns a connection ready to execute statements.
	Acquire(ctx context.Context) (Connection, error)

	// Release returns a connection obtained from Acquire. Release must be safe to
	// call after a failed Commit or Rollback.
	Release(ctx context.Context, conn Connection) error
}

// Connection defines the blocking call surface of one physical database connection.
//
// The outermost transaction frame owns the connection; nested frames borrow it and
// must never call Begin, Commit or Rollback themselves. Savepoint operations are
// only valid between Begin and Commit/Rollback.
type Connection interface {
	// Begin starts a transaction on this connection with the given isolation level.
	// IsolationDefault leaves the database's configured default in place.
	Begin(ctx context.Context, isolation Isolation) error

	// Commit commits the current transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the current transaction.
	Rollback(ctx context.Context) error

	// Savepoint creates a named savepoint inside the current transaction.
	Savepoint(ctx context.Context, name string) error

	// RollbackToSavepoint discards all work performed after the named savepoint,
	// leaving the enclosing transaction intact.
	RollbackToSavepoint(ctx context.Context, name string) error

	// ReleaseSavepoint drops the named savepoint, keeping its work.
	ReleaseSavepoint(ctx context.Context, name string) error

	// Query executes a query with positional arguments and returns a forward-only
	// sequence of rows. The caller must Close the result set.
	Query(ctx context.Context, query string, args ...any) (ResultSet, error)

	// Exec executes a statement that returns no rows and reports the number of
	// affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// ExecBatch executes the same statement once per argument list and returns the
	// per-item affected-row counts, in argument-list order.
	ExecBatch(ctx context.Context, query string, argumentLists [][]any) ([]int64, error)
}

// ResultSet is a forward-only cursor over query results.
//
// Row order is the database's result order; Row may only be called after a
// successful Next. Close releases driver resources and is idempotent.
type ResultSet interface {
	Next() bool
	Row() (RowShape, error)
	Err() error
	Close()
}

// Dialect supplies the driver-specific knowledge the engines need: the default
// isolation level, argument binding, serialization-failure classification and
// generated-key retrieval.
type Dialect interface {
	// Name identifies the dialect, for example "postgresql".
	Name() string

	// DefaultIsolation returns the isolation level used when a transaction requests
	// IsolationDefault.
	DefaultIsolation() Isolation

	// IsSerializationFailure reports whether err is a driver-level serialization or
	// deadlock conflict that the caller may retry.
	IsSerializationFailure(err error) bool

	// BindArgument converts a statement argument into the representation the driver
	// expects. Values the driver understands natively pass through unchanged.
	BindArgument(value any) any

	// WithReturning rewrites an update statement so that it yields the named
	// generated-key columns as a result set. An empty column list returns all
	// columns the database decides to generate.
	WithReturning(query string, columns []string) string
}
