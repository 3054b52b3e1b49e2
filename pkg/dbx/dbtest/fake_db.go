// Package dbtest provides in-memory fakes of the connection provider,
// connection and dialect interfaces, scriptable enough to drive transaction
// and facade tests without a database.
package dbtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/globalbus/dalesbred/pkg/dbx/types"
)

type scriptedResult struct {
	rows []types.RowShape
	err  error
}

type scriptedExec struct {
	affected int64
	err      error
}

// script holds the FIFO queues of query and exec outcomes. A provider and all
// connections it hands out share one script, so results can be queued before
// any connection exists.
type script struct {
	mu      sync.Mutex
	queries []scriptedResult
	execs   []scriptedExec
}

func (s *script) queueRows(rows []types.RowShape) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, scriptedResult{rows: rows})
}

func (s *script) queueQueryError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, scriptedResult{err: err})
}

func (s *script) queueExec(affected int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.execs = append(s.execs, scriptedExec{affected: affected})
}

func (s *script) queueExecError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.execs = append(s.execs, scriptedExec{err: err})
}

func (s *script) nextQuery() (scriptedResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queries) == 0 {
		return scriptedResult{}, false
	}

	next := s.queries[0]
	s.queries = s.queries[1:]

	return next, true
}

func (s *script) nextExec() (scriptedExec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.execs) == 0 {
		return scriptedExec{}, false
	}

	next := s.execs[0]
	s.execs = s.execs[1:]

	return next, true
}

// Provider is a fake types.ConnectionProvider. Every Acquire hands out a new
// fake Connection sharing the provider's result script; all handed-out
// connections stay reachable for assertions.
type Provider struct {
	mu          sync.Mutex
	connections []*Connection
	script      *script

	// AcquireErr, when set, makes every Acquire fail with it.
	AcquireErr error

	// ReleaseErr, when set, makes every Release fail with it.
	ReleaseErr error

	released int
}

// NewProvider creates an empty fake provider.
func NewProvider() *Provider {
	return &Provider{script: &script{}}
}

// QueueRows scripts the next query on any of the provider's connections to
// return the given rows.
func (p *Provider) QueueRows(rows ...types.RowShape) {
	p.script.queueRows(rows)
}

// QueueQueryError scripts the next query to fail.
func (p *Provider) QueueQueryError(err error) {
	p.script.queueQueryError(err)
}

// QueueExec scripts the next exec to report the given affected-row count.
func (p *Provider) QueueExec(affected int64) {
	p.script.queueExec(affected)
}

// QueueExecError scripts the next exec to fail.
func (p *Provider) QueueExecError(err error) {
	p.script.queueExecError(err)
}

// Acquire hands out a new fake connection.
func (p *Provider) Acquire(_ context.Context) (types.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}

	conn := &Connection{script: p.script}
	p.connections = append(p.connections, conn)

	return conn, nil
}

// Release records the release. The connection's event log gets a final
// "release" entry so tests can assert cleanup ordering.
func (p *Provider) Release(_ context.Context, conn types.Connection) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released++

	if fake, ok := conn.(*Connection); ok {
		fake.record("release")
	}

	if p.ReleaseErr != nil {
		return p.ReleaseErr
	}

	return nil
}

// AcquireCount returns how many connections have been handed out.
func (p *Provider) AcquireCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.connections)
}

// ReleaseCount returns how many connections have been released.
func (p *Provider) ReleaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.released
}

// Connection returns the i-th connection handed out, or nil.
func (p *Provider) Connection(i int) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.connections) {
		return nil
	}

	return p.connections[i]
}

// Connection is a fake types.Connection. It records every operation in an
// ordered event log and serves query and exec results from its script.
type Connection struct {
	mu     sync.Mutex
	events []string
	script *script

	// BeginErr, CommitErr and RollbackErr, when set, fail the corresponding
	// lifecycle call.
	BeginErr    error
	CommitErr   error
	RollbackErr error
}

// NewConnection creates a standalone fake connection with its own script.
func NewConnection() *Connection {
	return &Connection{script: &script{}}
}

// QueueRows scripts the next Query call to return the given rows.
func (c *Connection) QueueRows(rows ...types.RowShape) {
	c.script.queueRows(rows)
}

// QueueQueryError scripts the next Query call to fail.
func (c *Connection) QueueQueryError(err error) {
	c.script.queueQueryError(err)
}

// QueueExec scripts the next Exec call to report the given affected-row count.
func (c *Connection) QueueExec(affected int64) {
	c.script.queueExec(affected)
}

// QueueExecError scripts the next Exec call to fail.
func (c *Connection) QueueExecError(err error) {
	c.script.queueExecError(err)
}

// Events returns a copy of the ordered operation log.
func (c *Connection) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.events))
	copy(out, c.events)

	return out
}

func (c *Connection) record(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)
}

// Begin records the transaction start with its isolation level.
func (c *Connection) Begin(_ context.Context, isolation types.Isolation) error {
	c.record(fmt.Sprintf("begin(%s)", isolation))

	return c.BeginErr
}

// Commit records the commit.
func (c *Connection) Commit(_ context.Context) error {
	c.record("commit")

	return c.CommitErr
}

// Rollback records the rollback.
func (c *Connection) Rollback(_ context.Context) error {
	c.record("rollback")

	return c.RollbackErr
}

// Savepoint records the savepoint creation.
func (c *Connection) Savepoint(_ context.Context, name string) error {
	c.record("savepoint " + name)

	return nil
}

// RollbackToSavepoint records the partial rollback.
func (c *Connection) RollbackToSavepoint(_ context.Context, name string) error {
	c.record("rollback_to " + name)

	return nil
}

// ReleaseSavepoint records the savepoint release.
func (c *Connection) ReleaseSavepoint(_ context.Context, name string) error {
	c.record("release_savepoint " + name)

	return nil
}

// Query records the statement and serves the next scripted result. An
// unscripted Query returns an empty result set.
func (c *Connection) Query(_ context.Context, sql string, _ ...any) (types.ResultSet, error) {
	c.record("query: " + sql)

	next, ok := c.script.nextQuery()
	if !ok {
		return &resultSet{}, nil
	}

	if next.err != nil {
		return nil, next.err
	}

	return &resultSet{rows: next.rows}, nil
}

// Exec records the statement and serves the next scripted count. An unscripted
// Exec reports one affected row.
func (c *Connection) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	c.record("exec: " + sql)

	next, ok := c.script.nextExec()
	if !ok {
		return 1, nil
	}

	return next.affected, next.err
}

// ExecBatch records the statement and serves one scripted count per argument
// list, defaulting to one affected row each.
func (c *Connection) ExecBatch(_ context.Context, sql string, argumentLists [][]any) ([]int64, error) {
	c.record(fmt.Sprintf("batch[%d]: %s", len(argumentLists), sql))

	counts := make([]int64, 0, len(argumentLists))

	for range argumentLists {
		next, ok := c.script.nextExec()
		if !ok {
			counts = append(counts, 1)
			continue
		}

		if next.err != nil {
			return nil, next.err
		}

		counts = append(counts, next.affected)
	}

	return counts, nil
}

// resultSet iterates over pre-built row shapes.
type resultSet struct {
	rows   []types.RowShape
	cursor int
	closed bool
}

func (rs *resultSet) Next() bool {
	if rs.closed || rs.cursor >= len(rs.rows) {
		return false
	}

	rs.cursor++

	return true
}

func (rs *resultSet) Row() (types.RowShape, error) {
	return rs.rows[rs.cursor-1], nil
}

func (rs *resultSet) Err() error {
	return nil
}

func (rs *resultSet) Close() {
	rs.closed = true
}

// Dialect is a fake types.Dialect with pluggable serialization-failure
// detection.
type Dialect struct {
	// SerializationCheck classifies errors as retryable serialization
	// conflicts. Nil means nothing is.
	SerializationCheck func(error) bool
}

// NewDialect creates a fake dialect that recognizes no serialization failures.
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the dialect name.
func (d *Dialect) Name() string {
	return "fake"
}

// DefaultIsolation returns the fake's default isolation level.
func (d *Dialect) DefaultIsolation() types.Isolation {
	return types.IsolationReadCommitted
}

// IsSerializationFailure delegates to SerializationCheck.
func (d *Dialect) IsSerializationFailure(err error) bool {
	if d.SerializationCheck == nil {
		return false
	}

	return d.SerializationCheck(err)
}

// BindArgument is the identity.
func (d *Dialect) BindArgument(value any) any {
	return value
}

// WithReturning mirrors the Postgres RETURNING syntax.
func (d *Dialect) WithReturning(sql string, columns []string) string {
	if len(columns) == 0 {
		return sql + " RETURNING *"
	}

	out := sql + " RETURNING " + columns[0]
	for _, column := range columns[1:] {
		out += ", " + column
	}

	return out
}
