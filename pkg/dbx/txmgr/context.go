// Package txmgr implements the transaction-propagation engine: an execution-scoped
// stack of transaction frames carried in context.Context, and a manager that
// resolves propagation and isolation rules against it.
//
// A frame started in one goroutine must be committed or rolled back by the code
// path that started it; frames are never handed off across goroutines. Suspension
// (RequiresNew, NotSupported) derives a child context whose current-frame slot is
// replaced, so the suspended frame resumes automatically when the call returns.
package txmgr

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math"

	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
)

type frameContextKey struct{}

// Frame represents one entry of the transaction stack.
//
// The outermost frame of a chain owns the physical connection; savepoint frames
// borrow it. Joining frames do not create a new Frame at all: they share the
// pointer, which is what makes rollback-only marking propagate to the enclosing
// transaction transitively.
type Frame struct {
	conn         types.Connection
	isolation    types.Isolation
	rollbackOnly bool
	savepoint    string
	depth        int
	txID         int64
}

// Connection returns the physical connection bound to this frame.
func (f *Frame) Connection() types.Connection {
	return f.conn
}

// Isolation returns the isolation level the frame was started with.
// IsolationDefault means the dialect default was left in place.
func (f *Frame) Isolation() types.Isolation {
	return f.isolation
}

// SetRollbackOnly marks the frame so that the transaction rolls back even if the
// remaining code reports success. The flag can be set but never cleared.
func (f *Frame) SetRollbackOnly() {
	f.rollbackOnly = true
}

// IsRollbackOnly reports whether the frame has been marked rollback-only.
func (f *Frame) IsRollbackOnly() bool {
	return f.rollbackOnly
}

// withFrame derives a context whose current transaction frame is the given one.
// A nil frame masks any enclosing transaction, which is how run-without-transaction
// scopes are represented.
func withFrame(ctx context.Context, frame *Frame) context.Context {
	return context.WithValue(ctx, frameContextKey{}, frame)
}

// currentFrame returns the context's current transaction frame, or nil when the
// context carries none (or carries a mask).
func currentFrame(ctx context.Context) *Frame {
	frame, _ := ctx.Value(frameContextKey{}).(*Frame)
	return frame
}

// CurrentFrame exposes the current frame to the facade layer, reporting whether
// a transaction is active on this context.
func CurrentFrame(ctx context.Context) (*Frame, bool) {
	frame := currentFrame(ctx)
	return frame, frame != nil
}

// HasActiveTransaction reports whether the context carries an active transaction.
func HasActiveTransaction(ctx context.Context) bool {
	return currentFrame(ctx) != nil
}

// CurrentConnection returns the connection of the active transaction frame.
//
// Returns:
//   - types.Connection: the connection owned or borrowed by the current frame.
//   - error: an errorx.NoActiveTransactionError when the context carries no transaction.
func CurrentConnection(ctx context.Context) (types.Connection, error) {
	frame := currentFrame(ctx)
	if frame == nil {
		return nil, errorx.NewNoActiveTransactionError("no active transaction on this context")
	}

	return frame.conn, nil
}

// generateTxID generates a random, non-zero 64-bit transaction identifier used to
// correlate the log lines of one physical transaction.
func generateTxID() int64 {
	var idNum uint64

	for idNum == 0 {
		if err := binary.Read(rand.Reader, binary.BigEndian, &idNum); err != nil {
			continue
		}

		idNum %= uint64(math.MaxInt64)
	}

	return int64(idNum)
}
