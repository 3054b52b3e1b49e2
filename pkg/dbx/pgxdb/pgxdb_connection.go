package pgxdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
)

//###################################
//#       Postgres Connection       #
//###################################

// PostgresConnection - one pooled Postgres connection.
// It implements types.Connection; the transaction lifecycle methods operate on
// a pgx.Tx held internally once Begin has been called.
type PostgresConnection struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

// Begin starts a transaction on the connection at the given isolation level.
// types.IsolationDefault leaves the server default in place.
func (c *PostgresConnection) Begin(ctx context.Context, isolation types.Isolation) error {
	if c.tx != nil {
		return errorx.NewTransactionAlreadyActiveError("transaction already open on this connection")
	}

	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: txIsoLevel(isolation)})
	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error starting transaction")
	}

	c.tx = tx

	return nil
}

// Commit commits the open transaction.
func (c *PostgresConnection) Commit(ctx context.Context) error {
	if c.tx == nil {
		return errorx.NewNoActiveTransactionError("no open transaction to commit")
	}

	err := c.tx.Commit(ctx)
	c.tx = nil

	return err
}

// Rollback rolls back the open transaction.
func (c *PostgresConnection) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return errorx.NewNoActiveTransactionError("no open transaction to roll back")
	}

	err := c.tx.Rollback(ctx)
	c.tx = nil

	if err != nil && err != pgx.ErrTxClosed {
		return err
	}

	return nil
}

// Savepoint creates a named savepoint in the open transaction.
func (c *PostgresConnection) Savepoint(ctx context.Context, name string) error {
	if c.tx == nil {
		return errorx.NewNoActiveTransactionError("savepoints require an open transaction")
	}

	_, err := c.tx.Exec(ctx, fmt.Sprintf("SAVEPOINT %s", name))

	return err
}

// RollbackToSavepoint discards the work done since the named savepoint. The
// enclosing transaction stays open and usable.
func (c *PostgresConnection) RollbackToSavepoint(ctx context.Context, name string) error {
	if c.tx == nil {
		return errorx.NewNoActiveTransactionError("savepoints require an open transaction")
	}

	_, err := c.tx.Exec(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", name))

	return err
}

// ReleaseSavepoint drops the named savepoint, keeping the work done since.
func (c *PostgresConnection) ReleaseSavepoint(ctx context.Context, name string) error {
	if c.tx == nil {
		return errorx.NewNoActiveTransactionError("savepoints require an open transaction")
	}

	_, err := c.tx.Exec(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", name))

	return err
}

// Query executes a row-returning statement and adapts the pgx rows to the
// facade's result-set shape.
func (c *PostgresConnection) Query(ctx context.Context, sql string, args ...any) (types.ResultSet, error) {
	rows, err := c.queryRows(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	return newResultSet(rows), nil
}

// Exec executes a statement that returns no rows, such as INSERT, UPDATE or
// DELETE, and returns the number of rows affected.
func (c *PostgresConnection) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if c.tx != nil {
		tag, err := c.tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, err
		}

		return tag.RowsAffected(), nil
	}

	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// ExecBatch queues the statement once per argument list and sends everything in
// one round trip.
//
// Returns:
//   - []int64: per-execution affected-row counts, in input order.
//   - error: the first execution failure; later executions are not attempted.
func (c *PostgresConnection) ExecBatch(ctx context.Context, sql string, argumentLists [][]any) ([]int64, error) {
	batch := &pgx.Batch{}
	for _, args := range argumentLists {
		batch.Queue(sql, args...)
	}

	var results pgx.BatchResults
	if c.tx != nil {
		results = c.tx.SendBatch(ctx, batch)
	} else {
		results = c.conn.SendBatch(ctx, batch)
	}

	defer results.Close()

	counts := make([]int64, 0, len(argumentLists))

	for range argumentLists {
		tag, err := results.Exec()
		if err != nil {
			return nil, err
		}

		counts = append(counts, tag.RowsAffected())
	}

	return counts, nil
}

func (c *PostgresConnection) queryRows(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.tx != nil {
		return c.tx.Query(ctx, sql, args...)
	}

	return c.conn.Query(ctx, sql, args...)
}

// txIsoLevel maps the facade isolation levels onto pgx transaction options.
func txIsoLevel(isolation types.Isolation) pgx.TxIsoLevel {
	switch isolation {
	case types.IsolationReadUncommitted:
		return pgx.ReadUncommitted
	case types.IsolationReadCommitted:
		return pgx.ReadCommitted
	case types.IsolationRepeatableRead:
		return pgx.RepeatableRead
	case types.IsolationSerializable:
		return pgx.Serializable
	default:
		// Empty level means BEGIN without an ISOLATION LEVEL clause.
		return ""
	}
}
