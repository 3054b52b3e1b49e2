package pgxdb

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/globalbus/dalesbred/pkg/dbx/types"
)

// Postgres error codes signalling that a transaction lost a serialization
// conflict and can be retried.
const (
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// PostgresDialect - Postgres-specific behavior used by the facade.
// It implements types.Dialect.
type PostgresDialect struct{}

// NewPostgresDialect creates the Postgres dialect.
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

// Name returns the dialect name.
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// DefaultIsolation returns the isolation level Postgres uses when BEGIN names
// none.
func (d *PostgresDialect) DefaultIsolation() types.Isolation {
	return types.IsolationReadCommitted
}

// IsSerializationFailure reports whether the error, anywhere in its chain, is a
// Postgres serialization failure or deadlock. Both terminate the transaction
// and both are safe to retry from the top.
func (d *PostgresDialect) IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == serializationFailureCode || pgErr.Code == deadlockDetectedCode
}

// BindArgument gives the dialect a final look at a statement argument before it
// goes to the driver. pgx handles Go values natively, so this is the identity.
func (d *PostgresDialect) BindArgument(value any) any {
	return value
}

// WithReturning appends a RETURNING clause reading back the named generated
// columns, or RETURNING * when no columns are named.
func (d *PostgresDialect) WithReturning(sql string, columns []string) string {
	if len(columns) == 0 {
		return sql + " RETURNING *"
	}

	return sql + " RETURNING " + strings.Join(columns, ", ")
}
