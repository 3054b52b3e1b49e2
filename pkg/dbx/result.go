package dbx

import (
	"context"
	"reflect"

	"github.com/globalbus/dalesbred/pkg/dbx/instx"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
)

// FindAll runs the query and instantiates every result row as T.
//
// Arguments:
//   - db: the Database to run the query on.
//   - query: the query to execute.
//
// Returns:
//   - []T: one instance per result row, in result order. An empty result yields
//     an empty slice, not an error.
//   - error: query execution or instantiation failure.
//
// Example Usage:
//
//	users, err := dbx.FindAll[User](ctx, db, dbx.Query("SELECT id, name FROM users"))
func FindAll[T any](ctx context.Context, db *Database, query SqlQuery) ([]T, error) {
	var results []T

	err := db.ExecuteQuery(ctx, query, func(rs types.ResultSet) error {
		for rs.Next() {
			row, err := rs.Row()
			if err != nil {
				return errorx.NewDatabaseErrorWrapper(err, "error reading result row")
			}

			value, err := instx.InstantiateAs[T](db.instantiator, row)
			if err != nil {
				return err
			}

			results = append(results, value)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// FindUnique runs the query expecting exactly one result row and instantiates
// it as T.
//
// Returns:
//   - T: the single result.
//   - error: errorx.EmptyResultError when the query returns no rows,
//     errorx.NonUniqueResultError when it returns more than one.
func FindUnique[T any](ctx context.Context, db *Database, query SqlQuery) (T, error) {
	var zero T

	results, err := FindAll[T](ctx, db, query)
	if err != nil {
		return zero, err
	}

	switch len(results) {
	case 0:
		return zero, errorx.NewEmptyResultError("query returned no rows: %s", query.SQL)
	case 1:
		return results[0], nil
	default:
		return zero, errorx.NewNonUniqueResultError("query returned %d rows, expected exactly one: %s", len(results), query.SQL)
	}
}

// FindOptional runs the query expecting at most one result row.
//
// Returns:
//   - *T: the single result. Nil when the query returned no rows, or one row
//     whose sole value was null.
//   - error: errorx.NonUniqueResultError when the query returns more than one
//     row.
func FindOptional[T any](ctx context.Context, db *Database, query SqlQuery) (*T, error) {
	results, err := FindAll[*T](ctx, db, query)
	if err != nil {
		return nil, err
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return nil, errorx.NewNonUniqueResultError("query returned %d rows, expected at most one: %s", len(results), query.SQL)
	}
}

// FindMap runs the query and builds a map keyed by the first result column.
// The remaining columns instantiate the value: a single remaining column binds
// scalar values, several bind a struct. Later rows overwrite earlier ones on
// key collisions.
func FindMap[K comparable, V any](ctx context.Context, db *Database, query SqlQuery) (map[K]V, error) {
	results := make(map[K]V)

	keyType := reflect.TypeOf((*K)(nil)).Elem()

	err := db.ExecuteQuery(ctx, query, func(rs types.ResultSet) error {
		for rs.Next() {
			row, err := rs.Row()
			if err != nil {
				return errorx.NewDatabaseErrorWrapper(err, "error reading result row")
			}

			if row.Len() < 2 {
				return errorx.NewInstantiationError("map query must return at least two columns, got %d", row.Len())
			}

			key, err := db.instantiator.Registry().Convert(row.Columns[0].Value, keyType)
			if err != nil {
				return err
			}

			typedKey, ok := key.(K)
			if !ok {
				return errorx.NewInstantiationError("cannot use column %q as map key", row.Columns[0].Name)
			}

			value, err := instx.InstantiateAs[V](db.instantiator, types.RowShape{Columns: row.Columns[1:]})
			if err != nil {
				return err
			}

			results[typedKey] = value
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// UpdateAndProcessGeneratedKeys executes an insert or update and instantiates
// the database-generated values of the named columns as T, using the dialect's
// RETURNING syntax.
//
// Arguments:
//   - db: the Database to run the statement on.
//   - query: the statement to execute, without a RETURNING clause.
//   - columns: the generated columns to read back.
//
// Returns:
//   - []T: one instance per affected row.
//   - error: execution or instantiation failure.
//
// Example Usage:
//
//	ids, err := dbx.UpdateAndProcessGeneratedKeys[int64](ctx, db,
//	    dbx.Query("INSERT INTO users (name) VALUES ($1)", "Alice"), []string{"id"})
func UpdateAndProcessGeneratedKeys[T any](ctx context.Context, db *Database, query SqlQuery, columns []string) ([]T, error) {
	returning := db.dialect.WithReturning(query.SQL, columns)

	return FindAll[T](ctx, db, Query(returning, query.Arguments...))
}

// UpdateBatchAndProcessGeneratedKeys executes the statement once per argument
// list and instantiates the database-generated values of the named columns as
// T, in execution order. All executions run in one transaction, joining the
// caller's when one is active.
//
// Returns:
//   - []T: one instance per affected row, across all executions.
//   - error: the first execution or instantiation failure; prior executions
//     roll back with the transaction.
func UpdateBatchAndProcessGeneratedKeys[T any](ctx context.Context, db *Database, sql string, columns []string, argumentLists [][]any) ([]T, error) {
	returning := db.dialect.WithReturning(sql, columns)

	var results []T

	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		for _, arguments := range argumentLists {
			values, err := FindAll[T](ctx, db, Query(returning, arguments...))
			if err != nil {
				return err
			}

			results = append(results, values...)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// UpdateBatchOfEntities executes the statement once per entity, deriving each
// argument list from the entity's `db`-tagged fields in declaration order.
func UpdateBatchOfEntities[T any](ctx context.Context, db *Database, sql string, entities []T) ([]int64, error) {
	argumentLists, err := StructsToArgumentLists(entities, "db")
	if err != nil {
		return nil, errorx.NewGeneralErrorWrapper(err, "error deriving batch arguments from entities")
	}

	return db.UpdateBatch(ctx, sql, argumentLists)
}
