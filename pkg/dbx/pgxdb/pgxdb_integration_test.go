//go:build integration

package pgxdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/globalbus/dalesbred/pkg/dbx"
	"github.com/globalbus/dalesbred/pkg/dbx/convx"
	"github.com/globalbus/dalesbred/pkg/dbx/pgxdb"
	"github.com/globalbus/dalesbred/pkg/dbx/txmgr"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
	"github.com/globalbus/dalesbred/test/testcontainer/postgres"
)

/*
The tables under test are:

CREATE TABLE users
(
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT        NOT NULL,
    email      TEXT,
    balance    NUMERIC(12, 2) DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE audit_log
(
    id         BIGSERIAL PRIMARY KEY,
    action     TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
*/

// User matches the users table schema.
type User struct {
	ID        int64           `db:"id"`
	Name      string          `db:"name"`
	Email     *string         `db:"email"`
	Balance   decimal.Decimal `db:"balance"`
	CreatedAt time.Time       `db:"created_at"`
}

// NewUser carries the insertable columns of the users table for bulk loading.
type NewUser struct {
	Name    string          `db:"name"`
	Email   *string         `db:"email"`
	Balance decimal.Decimal `db:"balance"`
}

// ToRow converts the struct to a row of values matching its db tags.
func (u NewUser) ToRow() []any {
	return []any{u.Name, u.Email, u.Balance}
}

// setupTestContainer - setup testcontainer and the Database facade on top of it.
func setupTestContainer(ctx context.Context, t *testing.T) (db *dbx.Database, provider *pgxdb.PostgresProvider, container *postgres.PostgresContainer, stopContainer func()) {
	container = postgres.StartPostgresContainer(ctx, t, nil)
	provider = container.SetupConnectionProvider(ctx, t)

	db = dbx.NewDatabase(provider, pgxdb.NewPostgresDialect())

	// pgx surfaces NUMERIC columns as pgtype.Numeric.
	convx.RegisterConversion(db.TypeConversions(), convx.FromDatabase,
		func(n pgtype.Numeric) (decimal.Decimal, error) {
			value, err := n.Value()
			if err != nil {
				return decimal.Decimal{}, err
			}

			return decimal.NewFromString(value.(string))
		})

	waitForDBReady(ctx, t, db)

	return db, provider, container, func() {
		provider.Close()
		container.StopContainer(ctx, t)
	}
}

// waitForDBReady waits for the database container to accept statements.
func waitForDBReady(ctx context.Context, t *testing.T, db *dbx.Database) {
	for retries := 0; retries < 20; retries++ {
		_, err := db.Update(ctx, dbx.Query("SELECT 1"))
		if err == nil {
			return
		}
		t.Log("Waiting for database to be ready...")
		time.Sleep(2 * time.Second)
	}

	t.Fatal("Database is not ready after waiting")
}

func TestDatabase(t *testing.T) {
	ctx := context.Background()

	db, provider, container, stopContainer := setupTestContainer(ctx, t)
	defer stopContainer()

	t.Run("TestInsertWithGeneratedKeys", func(t *testing.T) {
		ids, err := dbx.UpdateAndProcessGeneratedKeys[int64](ctx, db,
			dbx.Query("INSERT INTO users (name, email, balance) VALUES ($1, $2, $3)",
				"Alice", "alice@example.org", decimal.RequireFromString("10.50")),
			[]string{"id"})
		require.NoError(t, err)
		require.Len(t, ids, 1)
		require.Positive(t, ids[0])
	})

	t.Run("TestFindAllInstantiatesStructs", func(t *testing.T) {
		users, err := dbx.FindAll[User](ctx, db,
			dbx.Query("SELECT id, name, email, balance, created_at FROM users WHERE name = $1", "Alice"))
		require.NoError(t, err)
		require.Len(t, users, 1)

		alice := users[0]
		require.Equal(t, "Alice", alice.Name)
		require.NotNil(t, alice.Email)
		require.Equal(t, "alice@example.org", *alice.Email)
		require.True(t, decimal.RequireFromString("10.50").Equal(alice.Balance))
		require.False(t, alice.CreatedAt.IsZero())
	})

	t.Run("TestFindUniqueAndOptional", func(t *testing.T) {
		name, err := dbx.FindUnique[string](ctx, db,
			dbx.Query("SELECT name FROM users WHERE name = $1", "Alice"))
		require.NoError(t, err)
		require.Equal(t, "Alice", name)

		missing, err := dbx.FindOptional[User](ctx, db,
			dbx.Query("SELECT id, name, email, balance, created_at FROM users WHERE name = $1", "Nobody"))
		require.NoError(t, err)
		require.Nil(t, missing)

		_, err = dbx.FindUnique[string](ctx, db,
			dbx.Query("SELECT name FROM users WHERE name = $1", "Nobody"))
		var emptyErr *errorx.EmptyResultError
		require.ErrorAs(t, err, &emptyErr)
	})

	t.Run("TestFindMap", func(t *testing.T) {
		byName, err := dbx.FindMap[string, int64](ctx, db,
			dbx.Query("SELECT name, id FROM users"))
		require.NoError(t, err)
		require.Contains(t, byName, "Alice")
	})

	t.Run("TestTransactionRollbackOnError", func(t *testing.T) {
		boom := errors.New("boom")

		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := db.Update(ctx,
				dbx.Query("INSERT INTO users (name) VALUES ($1)", "Ghost")); err != nil {
				return err
			}

			return boom
		})
		require.ErrorIs(t, err, boom)

		ghost, err := dbx.FindOptional[User](ctx, db,
			dbx.Query("SELECT id, name, email, balance, created_at FROM users WHERE name = $1", "Ghost"))
		require.NoError(t, err)
		require.Nil(t, ghost)
	})

	t.Run("TestNestedSavepointRollback", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := db.Update(ctx,
				dbx.Query("INSERT INTO audit_log (action) VALUES ($1)", "outer")); err != nil {
				return err
			}

			nestedErr := db.WithPropagation(ctx, txmgr.PropagationNested, func(ctx context.Context) error {
				if _, err := db.Update(ctx,
					dbx.Query("INSERT INTO audit_log (action) VALUES ($1)", "inner")); err != nil {
					return err
				}

				return errors.New("undo inner only")
			})
			require.Error(t, nestedErr)

			return nil
		})
		require.NoError(t, err)

		actions, err := dbx.FindAll[string](ctx, db,
			dbx.Query("SELECT action FROM audit_log WHERE action IN ($1, $2)", "outer", "inner"))
		require.NoError(t, err)
		require.Equal(t, []string{"outer"}, actions)
	})

	t.Run("TestRequiresNewSurvivesOuterRollback", func(t *testing.T) {
		outerErr := errors.New("outer fails")

		err := db.WithTransaction(ctx, func(ctx context.Context) error {
			suspendedErr := db.WithPropagation(ctx, txmgr.PropagationRequiresNew, func(ctx context.Context) error {
				_, err := db.Update(ctx,
					dbx.Query("INSERT INTO audit_log (action) VALUES ($1)", "independent"))
				return err
			})
			require.NoError(t, suspendedErr)

			return outerErr
		})
		require.ErrorIs(t, err, outerErr)

		count, err := dbx.FindUnique[int64](ctx, db,
			dbx.Query("SELECT count(*) FROM audit_log WHERE action = $1", "independent"))
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	})

	t.Run("TestUpdateBatch", func(t *testing.T) {
		counts, err := db.UpdateBatch(ctx,
			"INSERT INTO users (name, balance) VALUES ($1, $2)",
			[][]any{
				{"Bob", decimal.RequireFromString("1.00")},
				{"Carol", decimal.RequireFromString("2.00")},
			})
		require.NoError(t, err)
		require.Equal(t, []int64{1, 1}, counts)
	})

	t.Run("TestUpdateBatchGeneratedKeys", func(t *testing.T) {
		ids, err := dbx.UpdateBatchAndProcessGeneratedKeys[int64](ctx, db,
			"INSERT INTO users (name) VALUES ($1)", []string{"id"},
			[][]any{{"Frank"}, {"Grace"}})
		require.NoError(t, err)
		require.Len(t, ids, 2)
		require.Greater(t, ids[1], ids[0])
	})

	t.Run("TestBulkInsert", func(t *testing.T) {
		email := "dave@example.org"

		inserted, err := pgxdb.BulkInsertEntitiesWithTags(ctx, provider, "users", []NewUser{
			{Name: "Dave", Email: &email, Balance: decimal.RequireFromString("3.00")},
			{Name: "Erin", Balance: decimal.RequireFromString("4.00")},
		})
		require.NoError(t, err)
		require.Equal(t, int64(2), inserted)

		count, err := dbx.FindUnique[int64](ctx, db,
			dbx.Query("SELECT count(*) FROM users WHERE name IN ($1, $2)", "Dave", "Erin"))
		require.NoError(t, err)
		require.Equal(t, int64(2), count)
	})

	t.Run("TestSerializableConflictSurfacesAsSerializationError", func(t *testing.T) {
		// The second transaction runs on a pool of its own so neither
		// transaction can starve the other of connections.
		otherProvider := container.SetupConnectionProvider(ctx, t)
		defer otherProvider.Close()

		otherDB := dbx.NewDatabase(otherProvider, pgxdb.NewPostgresDialect())

		firstRead := make(chan struct{})
		secondCommitted := make(chan struct{})
		firstResult := make(chan error, 1)

		// Both transactions read the same predicate, then write into it:
		// classic write skew, which SERIALIZABLE must abort.
		go func() {
			firstResult <- db.WithIsolation(ctx, types.IsolationSerializable, func(ctx context.Context) error {
				if _, err := dbx.FindUnique[int64](ctx, db,
					dbx.Query("SELECT count(*) FROM audit_log WHERE action LIKE $1", "skew-%")); err != nil {
					return err
				}

				close(firstRead)
				<-secondCommitted

				_, err := db.Update(ctx,
					dbx.Query("INSERT INTO audit_log (action) VALUES ($1)", "skew-first"))

				return err
			})
		}()

		<-firstRead

		err := otherDB.WithIsolation(ctx, types.IsolationSerializable, func(ctx context.Context) error {
			if _, err := dbx.FindUnique[int64](ctx, otherDB,
				dbx.Query("SELECT count(*) FROM audit_log WHERE action LIKE $1", "skew-%")); err != nil {
				return err
			}

			_, err := otherDB.Update(ctx,
				dbx.Query("INSERT INTO audit_log (action) VALUES ($1)", "skew-second"))

			return err
		})
		require.NoError(t, err)

		close(secondCommitted)

		var serErr *errorx.TransactionSerializationError
		require.ErrorAs(t, <-firstResult, &serErr)
	})

	t.Run("TestImplicitTransactionsDisabled", func(t *testing.T) {
		db.SetAllowImplicitTransactions(false)
		defer db.SetAllowImplicitTransactions(true)

		_, err := db.Update(ctx, dbx.Query("DELETE FROM audit_log"))
		var notActive *errorx.NoActiveTransactionError
		require.ErrorAs(t, err, &notActive)
	})
}
