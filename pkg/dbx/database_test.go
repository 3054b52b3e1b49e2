package dbx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalbus/dalesbred/pkg/dbx"
	"github.com/globalbus/dalesbred/pkg/dbx/dbtest"
	"github.com/globalbus/dalesbred/pkg/dbx/txmgr"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
)

type User struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email *string
}

func newFakeDatabase() (*dbx.Database, *dbtest.Provider) {
	provider := dbtest.NewProvider()

	return dbx.NewDatabase(provider, dbtest.NewDialect()), provider
}

func userRow(id int64, name string, email any) types.RowShape {
	return types.NewRowShape(
		[]string{"id", "name", "email"},
		[]any{id, name, email},
		[]string{"int8", "text", "text"},
	)
}

// TestFindAllInstantiatesRows verifies the query-to-structs round trip.
func TestFindAllInstantiatesRows(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(userRow(1, "Alice", "alice@example.org"), userRow(2, "Bob", nil))

	users, err := dbx.FindAll[User](context.Background(), db,
		dbx.Query("SELECT id, name, email FROM users"))
	require.NoError(t, err)

	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	require.NotNil(t, users[0].Email)
	assert.Equal(t, "alice@example.org", *users[0].Email)
	assert.Nil(t, users[1].Email)
}

// TestFindAllEmptyResult verifies that no rows yields an empty slice.
func TestFindAllEmptyResult(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows()

	users, err := dbx.FindAll[User](context.Background(), db, dbx.Query("SELECT 1"))
	require.NoError(t, err)
	assert.Empty(t, users)
}

// TestFindAllScalars verifies single-column queries binding to primitives.
func TestFindAllScalars(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(
		types.NewRowShape([]string{"name"}, []any{"a"}, []string{"text"}),
		types.NewRowShape([]string{"name"}, []any{"b"}, []string{"text"}),
	)

	names, err := dbx.FindAll[string](context.Background(), db,
		dbx.Query("SELECT name FROM users"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

// TestFindUniqueCardinality verifies the exactly-one policy.
func TestFindUniqueCardinality(t *testing.T) {
	db, provider := newFakeDatabase()

	provider.QueueRows(userRow(1, "Alice", nil))
	user, err := dbx.FindUnique[User](context.Background(), db, dbx.Query("SELECT ..."))
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	provider.QueueRows()
	_, err = dbx.FindUnique[User](context.Background(), db, dbx.Query("SELECT ..."))
	var emptyErr *errorx.EmptyResultError
	require.ErrorAs(t, err, &emptyErr)

	provider.QueueRows(userRow(1, "A", nil), userRow(2, "B", nil))
	_, err = dbx.FindUnique[User](context.Background(), db, dbx.Query("SELECT ..."))
	var nonUniqueErr *errorx.NonUniqueResultError
	require.ErrorAs(t, err, &nonUniqueErr)
}

// TestFindOptionalCardinality verifies the at-most-one policy.
func TestFindOptionalCardinality(t *testing.T) {
	db, provider := newFakeDatabase()

	provider.QueueRows()
	user, err := dbx.FindOptional[User](context.Background(), db, dbx.Query("SELECT ..."))
	require.NoError(t, err)
	assert.Nil(t, user)

	provider.QueueRows(userRow(3, "Carol", nil))
	user, err = dbx.FindOptional[User](context.Background(), db, dbx.Query("SELECT ..."))
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Carol", user.Name)

	provider.QueueRows(userRow(1, "A", nil), userRow(2, "B", nil))
	_, err = dbx.FindOptional[User](context.Background(), db, dbx.Query("SELECT ..."))
	var nonUniqueErr *errorx.NonUniqueResultError
	require.ErrorAs(t, err, &nonUniqueErr)
}

// TestFindMap verifies two-column queries binding to a map.
func TestFindMap(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(
		types.NewRowShape([]string{"id", "name"}, []any{int64(1), "a"}, []string{"int8", "text"}),
		types.NewRowShape([]string{"id", "name"}, []any{int64(2), "b"}, []string{"int8", "text"}),
	)

	out, err := dbx.FindMap[int64, string](context.Background(), db, dbx.Query("SELECT id, name FROM users"))
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "a", 2: "b"}, out)
}

// TestFindOptionalNullValue verifies that a single row whose sole value is
// null counts as absent.
func TestFindOptionalNullValue(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(types.NewRowShape([]string{"email"}, []any{nil}, []string{"text"}))

	email, err := dbx.FindOptional[string](context.Background(), db,
		dbx.Query("SELECT email FROM users WHERE id = $1", 1))
	require.NoError(t, err)
	assert.Nil(t, email)
}

// TestFindMapStructValues verifies that columns past the first instantiate the
// map value as a struct.
func TestFindMapStructValues(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(
		types.NewRowShape(
			[]string{"id", "name", "email"},
			[]any{int64(1), "Alice", "alice@example.org"},
			[]string{"int8", "text", "text"},
		),
	)

	out, err := dbx.FindMap[int64, User](context.Background(), db,
		dbx.Query("SELECT id, name, email FROM users"))
	require.NoError(t, err)
	require.Contains(t, out, int64(1))
	assert.Equal(t, "Alice", out[1].Name)
}

// TestFindMapWrongColumnCount verifies that map queries demand at least two
// columns.
func TestFindMapWrongColumnCount(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(types.NewRowShape([]string{"id"}, []any{int64(1)}, []string{"int8"}))

	_, err := dbx.FindMap[int64, string](context.Background(), db, dbx.Query("SELECT id FROM users"))
	var instErr *errorx.InstantiationError
	require.ErrorAs(t, err, &instErr)
}

// TestUpdateReportsAffectedRows verifies updates and their implicit
// transaction lifecycle.
func TestUpdateReportsAffectedRows(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueExec(3)

	affected, err := db.Update(context.Background(),
		dbx.Query("UPDATE users SET active = $1", true))
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	// The statement ran inside an implicit transaction of its own.
	assert.Equal(t, []string{
		"begin(default)",
		"exec: UPDATE users SET active = $1",
		"commit",
		"release",
	}, provider.Connection(0).Events())
}

// TestOperationsJoinActiveTransaction verifies that statements inside a
// transactional block use the block's connection without nesting.
func TestOperationsJoinActiveTransaction(t *testing.T) {
	db, provider := newFakeDatabase()

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := db.Update(ctx, dbx.Query("DELETE FROM users")); err != nil {
			return err
		}

		provider.QueueRows(userRow(1, "Alice", nil))
		_, err := dbx.FindAll[User](ctx, db, dbx.Query("SELECT id, name, email FROM users"))

		return err
	})
	require.NoError(t, err)

	require.Equal(t, 1, provider.AcquireCount())
	assert.Equal(t, []string{
		"begin(default)",
		"exec: DELETE FROM users",
		"query: SELECT id, name, email FROM users",
		"commit",
		"release",
	}, provider.Connection(0).Events())
}

// TestImplicitTransactionsDisabled verifies that operations outside a block
// fail once implicit transactions are switched off.
func TestImplicitTransactionsDisabled(t *testing.T) {
	db, provider := newFakeDatabase()
	db.SetAllowImplicitTransactions(false)

	assert.False(t, db.AllowsImplicitTransactions())

	_, err := db.Update(context.Background(), dbx.Query("DELETE FROM users"))
	var notActive *errorx.NoActiveTransactionError
	require.ErrorAs(t, err, &notActive)
	require.Equal(t, 0, provider.AcquireCount())

	// Inside an explicit transaction the same operation works.
	err = db.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, err := db.Update(ctx, dbx.Query("DELETE FROM users"))
		return err
	})
	require.NoError(t, err)
}

// TestUpdateBatch verifies batch execution and per-statement counts.
func TestUpdateBatch(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueExec(1)
	provider.QueueExec(0)

	counts, err := db.UpdateBatch(context.Background(),
		"UPDATE users SET name = $1 WHERE id = $2",
		[][]any{{"a", int64(1)}, {"b", int64(99)}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0}, counts)

	assert.Contains(t, provider.Connection(0).Events(),
		"batch[2]: UPDATE users SET name = $1 WHERE id = $2")
}

// TestUpdateBatchOfEntities verifies argument derivation from tagged structs.
func TestUpdateBatchOfEntities(t *testing.T) {
	db, provider := newFakeDatabase()

	type row struct {
		Name string `db:"name"`
		ID   int64  `db:"id"`
	}

	counts, err := dbx.UpdateBatchOfEntities(context.Background(), db,
		"UPDATE users SET name = $1 WHERE id = $2",
		[]row{{Name: "a", ID: 1}, {Name: "b", ID: 2}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1}, counts)

	assert.Contains(t, provider.Connection(0).Events(),
		"batch[2]: UPDATE users SET name = $1 WHERE id = $2")
}

// TestUpdateAndProcessGeneratedKeys verifies the RETURNING-based generated key
// read-back.
func TestUpdateAndProcessGeneratedKeys(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(types.NewRowShape([]string{"id"}, []any{int64(42)}, []string{"int8"}))

	ids, err := dbx.UpdateAndProcessGeneratedKeys[int64](context.Background(), db,
		dbx.Query("INSERT INTO users (name) VALUES ($1)", "Alice"), []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, ids)

	assert.Contains(t, provider.Connection(0).Events(),
		"query: INSERT INTO users (name) VALUES ($1) RETURNING id")
}

// TestUpdateBatchAndProcessGeneratedKeys verifies per-execution generated-key
// read-back inside a single transaction.
func TestUpdateBatchAndProcessGeneratedKeys(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueRows(types.NewRowShape([]string{"id"}, []any{int64(7)}, []string{"int8"}))
	provider.QueueRows(types.NewRowShape([]string{"id"}, []any{int64(8)}, []string{"int8"}))

	ids, err := dbx.UpdateBatchAndProcessGeneratedKeys[int64](context.Background(), db,
		"INSERT INTO users (name) VALUES ($1)", []string{"id"},
		[][]any{{"Alice"}, {"Bob"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, ids)

	require.Equal(t, 1, provider.AcquireCount())
	assert.Equal(t, []string{
		"begin(default)",
		"query: INSERT INTO users (name) VALUES ($1) RETURNING id",
		"query: INSERT INTO users (name) VALUES ($1) RETURNING id",
		"commit",
		"release",
	}, provider.Connection(0).Events())
}

// TestStatementErrorRollsBackImplicitTransaction verifies that a failing
// statement rolls back the implicit transaction wrapping it.
func TestStatementErrorRollsBackImplicitTransaction(t *testing.T) {
	db, provider := newFakeDatabase()
	provider.QueueExecError(errors.New("syntax error"))

	_, err := db.Update(context.Background(), dbx.Query("UPDATE oops"))
	var dbErr *errorx.DatabaseError
	require.ErrorAs(t, err, &dbErr)

	assert.Equal(t, []string{
		"begin(default)",
		"exec: UPDATE oops",
		"rollback",
		"release",
	}, provider.Connection(0).Events())
}

// TestSerializationFailureTranslatedOnStatement verifies that driver errors
// the dialect recognizes surface as serialization errors.
func TestSerializationFailureTranslatedOnStatement(t *testing.T) {
	conflict := errors.New("could not serialize access")

	provider := dbtest.NewProvider()
	dialect := dbtest.NewDialect()
	dialect.SerializationCheck = func(err error) bool {
		return errors.Is(err, conflict)
	}

	db := dbx.NewDatabase(provider, dialect)

	provider.QueueExecError(conflict)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, err := db.Update(ctx, dbx.Query("UPDATE accounts SET ..."))
		return err
	})

	var serErr *errorx.TransactionSerializationError
	require.ErrorAs(t, err, &serErr)
}

// TestHasActiveTransaction verifies transaction visibility through the facade.
func TestHasActiveTransaction(t *testing.T) {
	db, _ := newFakeDatabase()

	assert.False(t, db.HasActiveTransaction(context.Background()))

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, db.HasActiveTransaction(ctx))
		return nil
	})
	require.NoError(t, err)
}

// TestWithIsolation verifies that the isolation shortcut begins the physical
// transaction at the requested level.
func TestWithIsolation(t *testing.T) {
	db, provider := newFakeDatabase()

	err := db.WithIsolation(context.Background(), types.IsolationSerializable, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"begin(serializable)",
		"commit",
		"release",
	}, provider.Connection(0).Events())
}

// TestWithPropagationExposesSettings verifies the propagation shortcut.
func TestWithPropagationExposesSettings(t *testing.T) {
	db, provider := newFakeDatabase()

	err := db.WithPropagation(context.Background(), txmgr.PropagationNever, func(ctx context.Context) error {
		assert.False(t, db.HasActiveTransaction(ctx))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, provider.AcquireCount())
}

// TestQueryString verifies query formatting for logs.
func TestQueryString(t *testing.T) {
	assert.Equal(t, "SELECT 1", dbx.Query("SELECT 1").String())
	assert.Equal(t, "SELECT $1 [42]", dbx.Query("SELECT $1", 42).String())
}
