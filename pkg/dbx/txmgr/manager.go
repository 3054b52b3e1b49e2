package txmgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
	"github.com/globalbus/dalesbred/pkg/logx"
)

// TransactionCallback is the unit of work executed inside a transactional block.
// The context it receives carries the transaction frame the block runs in and
// must be the one passed to any database operation performed by the block.
type TransactionCallback func(ctx context.Context) error

// Manager resolves propagation and isolation settings into concrete begin,
// savepoint, commit and rollback operations against a connection provider.
//
// A Manager is safe for concurrent use; each call operates only on the frame
// stack carried by its own context.
type Manager struct {
	provider types.ConnectionProvider
	dialect  types.Dialect
}

// NewManager creates a transaction Manager.
//
// Arguments:
//   - provider: source of physical connections; one is acquired per outermost
//     transaction and released when that transaction ends.
//   - dialect: database-specific behavior, in particular serialization-failure
//     detection.
func NewManager(provider types.ConnectionProvider, dialect types.Dialect) *Manager {
	return &Manager{
		provider: provider,
		dialect:  dialect,
	}
}

// WithTransaction executes callback under the given settings, applying the
// propagation rules against the transaction state of ctx.
//
// Exactly one of commit or rollback terminates every physical transaction the
// call starts, on every exit path. An error returned by the callback marks the
// frame rollback-only before rolling back, and is returned unchanged unless a
// later cleanup step fails with no primary error to report.
func (m *Manager) WithTransaction(ctx context.Context, settings TransactionSettings, callback TransactionCallback) error {
	current := currentFrame(ctx)

	switch settings.Propagation {
	case PropagationRequired:
		if current != nil {
			return m.join(ctx, current, settings, callback)
		}

		return m.withNewPhysical(ctx, settings.Isolation, callback)
	case PropagationRequiresNew:
		return m.withNewPhysical(ctx, settings.Isolation, callback)
	case PropagationNested:
		if current == nil {
			return m.withNewPhysical(ctx, settings.Isolation, callback)
		}

		return m.withSavepoint(ctx, current, settings, callback)
	case PropagationMandatory:
		if current == nil {
			return errorx.NewNoActiveTransactionError("propagation MANDATORY requires an active transaction")
		}

		return m.join(ctx, current, settings, callback)
	case PropagationSupports:
		if current != nil {
			return m.join(ctx, current, settings, callback)
		}

		return callback(ctx)
	case PropagationNever:
		if current != nil {
			return errorx.NewTransactionAlreadyActiveError("propagation NEVER forbids an active transaction")
		}

		return callback(ctx)
	case PropagationNotSupported:
		if current == nil {
			return callback(ctx)
		}

		return callback(withFrame(ctx, nil))
	default:
		return errorx.NewConfigurationError(fmt.Sprintf("unknown propagation mode: %v", settings.Propagation))
	}
}

// InCurrentTransaction executes callback inside the transaction already active
// on ctx, failing with errorx.NoActiveTransactionError when there is none. It is
// the execution path used when implicit transactions are disabled.
func (m *Manager) InCurrentTransaction(ctx context.Context, callback TransactionCallback) error {
	current := currentFrame(ctx)
	if current == nil {
		return errorx.NewNoActiveTransactionError("no active transaction and implicit transactions are disabled")
	}

	return m.join(ctx, current, TransactionSettings{Isolation: types.IsolationDefault}, callback)
}

// withNewPhysical acquires a connection, begins a transaction on it and runs the
// callback in a fresh frame. The connection is released on every exit path.
func (m *Manager) withNewPhysical(ctx context.Context, isolation types.Isolation, callback TransactionCallback) (err error) {
	conn, acquireErr := m.provider.Acquire(ctx)
	if acquireErr != nil {
		return errorx.NewDatabaseErrorWrapper(acquireErr, "failed to acquire connection for transaction")
	}

	defer func() {
		if releaseErr := m.provider.Release(ctx, conn); releaseErr != nil {
			logx.GetLogger().LogError(ctx, "error releasing connection after transaction", releaseErr)

			if err == nil {
				err = errorx.NewDatabaseErrorWrapper(releaseErr, "error releasing connection after transaction")
			}
		}
	}()

	if beginErr := conn.Begin(ctx, isolation); beginErr != nil {
		return errorx.NewDatabaseErrorWrapper(beginErr, "failed to begin transaction")
	}

	frame := &Frame{
		conn:      conn,
		isolation: isolation,
		txID:      generateTxID(),
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("began transaction: txID=%d, isolation=%s", frame.txID, isolation))

	callErr := m.runFrame(withFrame(ctx, frame), callback)
	if callErr != nil {
		frame.rollbackOnly = true
	}

	if frame.rollbackOnly {
		logx.GetLogger().LogDebug(ctx, fmt.Sprintf("rolling back transaction: txID=%d", frame.txID))

		if rollbackErr := conn.Rollback(ctx); rollbackErr != nil {
			logx.GetLogger().LogError(ctx, fmt.Sprintf("error rolling back transaction: txID=%d", frame.txID), rollbackErr)

			if callErr == nil {
				return errorx.NewDatabaseErrorWrapper(rollbackErr, "error rolling back transaction")
			}
		}

		return callErr
	}

	if commitErr := conn.Commit(ctx); commitErr != nil {
		if m.dialect.IsSerializationFailure(commitErr) {
			return errorx.NewTransactionSerializationErrorWrapper(commitErr, "serialization conflict while committing transaction")
		}

		return errorx.NewDatabaseErrorWrapper(commitErr, "error committing transaction")
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("committed transaction: txID=%d", frame.txID))

	return nil
}

// withSavepoint runs the callback in a savepoint-backed frame borrowing the
// current frame's connection. Failure releases only the work done since the
// savepoint; the enclosing transaction stays usable.
func (m *Manager) withSavepoint(ctx context.Context, current *Frame, settings TransactionSettings, callback TransactionCallback) error {
	if err := checkIsolation(current, settings.Isolation); err != nil {
		return err
	}

	name := fmt.Sprintf("dalesbred_sp_%d", current.depth+1)

	if err := current.conn.Savepoint(ctx, name); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "failed to create savepoint")
	}

	frame := &Frame{
		conn:      current.conn,
		isolation: current.isolation,
		savepoint: name,
		depth:     current.depth + 1,
		txID:      current.txID,
	}

	callErr := m.runFrame(withFrame(ctx, frame), callback)

	if callErr != nil || frame.rollbackOnly {
		logx.GetLogger().LogDebug(ctx, fmt.Sprintf("rolling back to savepoint %s: txID=%d", name, frame.txID))

		if rollbackErr := current.conn.RollbackToSavepoint(ctx, name); rollbackErr != nil {
			logx.GetLogger().LogError(ctx, fmt.Sprintf("error rolling back to savepoint %s: txID=%d", name, frame.txID), rollbackErr)

			if callErr == nil {
				return errorx.NewDatabaseErrorWrapper(rollbackErr, "error rolling back to savepoint")
			}
		}

		return callErr
	}

	if releaseErr := current.conn.ReleaseSavepoint(ctx, name); releaseErr != nil {
		return errorx.NewDatabaseErrorWrapper(releaseErr, "error releasing savepoint")
	}

	return nil
}

// join runs the callback inside the already-active frame. No new frame is
// created: the callback sees the same frame pointer, so marking it rollback-only
// is visible to the enclosing block.
func (m *Manager) join(ctx context.Context, current *Frame, settings TransactionSettings, callback TransactionCallback) error {
	if err := checkIsolation(current, settings.Isolation); err != nil {
		return err
	}

	err := m.runFrame(ctx, callback)
	if err != nil {
		current.rollbackOnly = true
	}

	return err
}

// runFrame invokes the callback, translating database errors the dialect
// recognizes as serialization failures into errorx.TransactionSerializationError
// so callers can retry the whole transaction.
func (m *Manager) runFrame(ctx context.Context, callback TransactionCallback) error {
	err := callback(ctx)
	if err == nil {
		return nil
	}

	var serErr *errorx.TransactionSerializationError
	if !errors.As(err, &serErr) && m.dialect.IsSerializationFailure(err) {
		return errorx.NewTransactionSerializationErrorWrapper(err, "serialization conflict inside transaction")
	}

	return err
}

// checkIsolation verifies that a joining block either leaves isolation to the
// default or requests exactly what the active frame was started with.
func checkIsolation(current *Frame, requested types.Isolation) error {
	if requested != types.IsolationDefault && requested != current.isolation {
		return errorx.NewConfigurationError(fmt.Sprintf(
			"transaction isolation %s conflicts with active transaction isolation %s", requested, current.isolation))
	}

	return nil
}
