// Package dbx is the database facade: it ties the transaction-propagation
// engine, the row-instantiation engine and the type-conversion registry
// together behind a small set of query and update operations.
//
// All operations take a context.Context. When the context carries an active
// transaction the operation runs on that transaction's connection; otherwise,
// if implicit transactions are enabled (the default), the operation runs in a
// transaction of its own.
package dbx

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/globalbus/dalesbred/pkg/dbx/convx"
	"github.com/globalbus/dalesbred/pkg/dbx/instx"
	"github.com/globalbus/dalesbred/pkg/dbx/txmgr"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
	"github.com/globalbus/dalesbred/pkg/logx"
)

// slowQueryThreshold is the execution time above which a statement is logged
// as a warning instead of a debug line.
const slowQueryThreshold = time.Second

// Database is the main entry point of the library. It is safe for concurrent
// use; transaction state lives in the contexts passed to its methods, never in
// the Database itself.
type Database struct {
	provider      types.ConnectionProvider
	dialect       types.Dialect
	manager       *txmgr.Manager
	instantiator  *instx.Engine
	allowImplicit atomic.Bool
}

// NewDatabase creates a Database on top of a connection provider and a dialect.
//
// Arguments:
//   - provider: source of physical connections, typically a pool adapter.
//   - dialect: database-specific behavior such as serialization-failure
//     detection and RETURNING-clause syntax.
//
// Returns:
//   - *Database: a facade with implicit transactions enabled and the builtin
//     type conversions registered.
func NewDatabase(provider types.ConnectionProvider, dialect types.Dialect) *Database {
	db := &Database{
		provider:     provider,
		dialect:      dialect,
		manager:      txmgr.NewManager(provider, dialect),
		instantiator: instx.NewEngine(convx.NewRegistry()),
	}

	db.allowImplicit.Store(true)

	return db
}

// TypeConversions returns the registry used to convert database values to
// target types and statement arguments to database values. Custom conversions
// registered here take effect for all subsequent operations.
func (db *Database) TypeConversions() *convx.Registry {
	return db.instantiator.Registry()
}

// Instantiator returns the row-instantiation engine backing the generic find
// operations.
func (db *Database) Instantiator() *instx.Engine {
	return db.instantiator
}

// Dialect returns the dialect the Database was created with.
func (db *Database) Dialect() types.Dialect {
	return db.dialect
}

// SetAllowImplicitTransactions controls whether operations executed outside a
// transactional block run in an implicit transaction of their own. When
// disabled, such operations fail with errorx.NoActiveTransactionError instead.
func (db *Database) SetAllowImplicitTransactions(allow bool) {
	db.allowImplicit.Store(allow)
}

// AllowsImplicitTransactions reports whether implicit transactions are enabled.
func (db *Database) AllowsImplicitTransactions() bool {
	return db.allowImplicit.Load()
}

// HasActiveTransaction reports whether the given context carries an active
// transaction started through this library.
func (db *Database) HasActiveTransaction(ctx context.Context) bool {
	return txmgr.HasActiveTransaction(ctx)
}

// WithTransaction executes callback inside a transaction with default settings:
// join the current transaction or start a new one, at the dialect's default
// isolation level.
func (db *Database) WithTransaction(ctx context.Context, callback txmgr.TransactionCallback) error {
	return db.manager.WithTransaction(ctx, txmgr.DefaultSettings(), callback)
}

// WithTransactionSettings executes callback inside a transaction with explicit
// propagation and isolation settings.
func (db *Database) WithTransactionSettings(ctx context.Context, settings txmgr.TransactionSettings, callback txmgr.TransactionCallback) error {
	return db.manager.WithTransaction(ctx, settings, callback)
}

// WithPropagation executes callback inside a transaction with the given
// propagation mode and default isolation.
func (db *Database) WithPropagation(ctx context.Context, propagation txmgr.Propagation, callback txmgr.TransactionCallback) error {
	settings := txmgr.TransactionSettings{
		Propagation: propagation,
		Isolation:   types.IsolationDefault,
	}

	return db.manager.WithTransaction(ctx, settings, callback)
}

// WithIsolation executes callback inside a transaction at the given isolation
// level, with Required propagation.
func (db *Database) WithIsolation(ctx context.Context, isolation types.Isolation, callback txmgr.TransactionCallback) error {
	settings := txmgr.TransactionSettings{
		Propagation: txmgr.PropagationRequired,
		Isolation:   isolation,
	}

	return db.manager.WithTransaction(ctx, settings, callback)
}

// ExecuteQuery runs the query and streams its result set to the processor. The
// result set is closed when the processor returns; rows must not be retained
// past that point.
func (db *Database) ExecuteQuery(ctx context.Context, query SqlQuery, processor func(types.ResultSet) error) error {
	return db.withCurrentConnection(ctx, query.String(), func(ctx context.Context, conn types.Connection) error {
		arguments, err := db.bindArguments(query.Arguments)
		if err != nil {
			return err
		}

		rs, err := conn.Query(ctx, query.SQL, arguments...)
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error executing query: %s", query.SQL)
		}

		defer rs.Close()

		if err := processor(rs); err != nil {
			return err
		}

		if err := rs.Err(); err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error reading query results: %s", query.SQL)
		}

		return nil
	})
}

// FindRows runs the query and returns all result rows in wire shape, without
// instantiation. Mostly useful for ad hoc inspection and tests.
func (db *Database) FindRows(ctx context.Context, query SqlQuery) ([]types.RowShape, error) {
	var rows []types.RowShape

	err := db.ExecuteQuery(ctx, query, func(rs types.ResultSet) error {
		for rs.Next() {
			row, err := rs.Row()
			if err != nil {
				return errorx.NewDatabaseErrorWrapper(err, "error reading result row")
			}

			rows = append(rows, row)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// Update executes an insert, update or delete statement.
//
// Returns:
//   - int64: the number of rows the statement affected.
//   - error: an errorx.DatabaseError on execution failure, translated to
//     errorx.TransactionSerializationError for serialization conflicts.
func (db *Database) Update(ctx context.Context, query SqlQuery) (int64, error) {
	var affected int64

	err := db.withCurrentConnection(ctx, query.String(), func(ctx context.Context, conn types.Connection) error {
		arguments, err := db.bindArguments(query.Arguments)
		if err != nil {
			return err
		}

		affected, err = conn.Exec(ctx, query.SQL, arguments...)
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error executing update: %s", query.SQL)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}

// UpdateBatch executes the statement once per argument list, as a single batch
// on one connection.
//
// Arguments:
//   - sql: the statement to repeat.
//   - argumentLists: one positional argument list per execution.
//
// Returns:
//   - []int64: per-execution affected-row counts, in input order.
//   - error: the first execution error; earlier executions in the batch are
//     rolled back together with the surrounding transaction.
func (db *Database) UpdateBatch(ctx context.Context, sql string, argumentLists [][]any) ([]int64, error) {
	var counts []int64

	description := Query(sql, batchQueryDescription).String()

	err := db.withCurrentConnection(ctx, description, func(ctx context.Context, conn types.Connection) error {
		bound := make([][]any, 0, len(argumentLists))

		for _, arguments := range argumentLists {
			boundArgs, err := db.bindArguments(arguments)
			if err != nil {
				return err
			}

			bound = append(bound, boundArgs)
		}

		var err error

		counts, err = conn.ExecBatch(ctx, sql, bound)
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error executing batch update: %s", sql)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return counts, nil
}

// withCurrentConnection runs op on the connection of the active transaction,
// or inside a new implicit transaction when none is active and implicit
// transactions are enabled.
func (db *Database) withCurrentConnection(ctx context.Context, description string, op func(ctx context.Context, conn types.Connection) error) error {
	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("executing: %s", description))

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if elapsed > slowQueryThreshold {
			logx.GetLogger().LogWarning(ctx, fmt.Sprintf("slow query (%s): %s", elapsed, description))
			return
		}

		logx.GetLogger().LogDebug(ctx, fmt.Sprintf("executed in %s: %s", elapsed, description))
	}()

	if txmgr.HasActiveTransaction(ctx) {
		conn, err := txmgr.CurrentConnection(ctx)
		if err != nil {
			return err
		}

		if opErr := op(ctx, conn); opErr != nil {
			return db.translateError(opErr)
		}

		return nil
	}

	if !db.allowImplicit.Load() {
		return errorx.NewNoActiveTransactionError("no active transaction and implicit transactions are disabled")
	}

	return db.manager.WithTransaction(ctx, txmgr.DefaultSettings(), func(ctx context.Context) error {
		conn, err := txmgr.CurrentConnection(ctx)
		if err != nil {
			return err
		}

		return op(ctx, conn)
	})
}

// translateError rewrites driver errors the dialect recognizes as serialization
// conflicts into errorx.TransactionSerializationError so callers can retry.
func (db *Database) translateError(err error) error {
	if db.dialect.IsSerializationFailure(err) {
		return errorx.NewTransactionSerializationErrorWrapper(err, "serialization conflict while executing statement")
	}

	return err
}

// bindArguments converts statement arguments to their database representation
// through the conversion registry and the dialect.
func (db *Database) bindArguments(arguments []any) ([]any, error) {
	if len(arguments) == 0 {
		return nil, nil
	}

	bound := make([]any, len(arguments))

	for i, argument := range arguments {
		converted, err := db.instantiator.Registry().ToDatabase(argument)
		if err != nil {
			return nil, err
		}

		bound[i] = db.dialect.BindArgument(converted)
	}

	return bound, nil
}
