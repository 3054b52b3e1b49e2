package pgxdb_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/globalbus/dalesbred/pkg/dbx/pgxdb"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
)

// TestIsSerializationFailure verifies classification of Postgres error codes,
// including errors buried in a wrap chain.
func TestIsSerializationFailure(t *testing.T) {
	dialect := pgxdb.NewPostgresDialect()

	serialization := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	uniqueViolation := &pgconn.PgError{Code: "23505", Message: "duplicate key"}

	assert.True(t, dialect.IsSerializationFailure(serialization))
	assert.True(t, dialect.IsSerializationFailure(deadlock))
	assert.True(t, dialect.IsSerializationFailure(fmt.Errorf("exec failed: %w", serialization)))

	assert.False(t, dialect.IsSerializationFailure(uniqueViolation))
	assert.False(t, dialect.IsSerializationFailure(errors.New("connection refused")))
	assert.False(t, dialect.IsSerializationFailure(nil))
}

// TestWithReturning verifies the RETURNING clause syntax.
func TestWithReturning(t *testing.T) {
	dialect := pgxdb.NewPostgresDialect()

	assert.Equal(t,
		"INSERT INTO users (name) VALUES ($1) RETURNING id",
		dialect.WithReturning("INSERT INTO users (name) VALUES ($1)", []string{"id"}))

	assert.Equal(t,
		"INSERT INTO users (name) VALUES ($1) RETURNING id, created_at",
		dialect.WithReturning("INSERT INTO users (name) VALUES ($1)", []string{"id", "created_at"}))

	assert.Equal(t,
		"INSERT INTO users (name) VALUES ($1) RETURNING *",
		dialect.WithReturning("INSERT INTO users (name) VALUES ($1)", nil))
}

// TestDialectDefaults verifies the dialect's identity and defaults.
func TestDialectDefaults(t *testing.T) {
	dialect := pgxdb.NewPostgresDialect()

	assert.Equal(t, "postgres", dialect.Name())
	assert.Equal(t, types.IsolationReadCommitted, dialect.DefaultIsolation())
	assert.Equal(t, 42, dialect.BindArgument(42))
}
