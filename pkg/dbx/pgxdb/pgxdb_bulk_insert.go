package pgxdb

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/globalbus/dalesbred/pkg/dbx"
)

// BulkInsertEntitiesWithTags inserts a large number of structs into a PostgreSQL table using pgx.CopyFrom.
//
// This function takes a slice of structs that implement the `RowConvertibleEntity` interface, derives the column names from the
// `db` struct tags of the first struct, and inserts the data into the database. Each struct must implement the `ToRow()` method,
// which converts the struct to a row of values corresponding to the derived column names.
//
// COPY runs outside the facade's transaction machinery, on a connection of its
// own, so it is not atomic with surrounding transactional work.
//
// Arguments:
//   - ctx: The context for the copy execution, which can be used to control cancellation and deadlines.
//   - provider: The connection provider the copy connection is acquired from.
//   - tableName: The name of the table into which data will be inserted (CASE SENSITIVE), optionally schema-qualified.
//   - entities: A slice of structs implementing the `RowConvertibleEntity` interface, representing the rows to be inserted.
//
// Returns:
//   - int64: The number of rows successfully inserted.
//   - error: Any error encountered during the bulk insert.
func BulkInsertEntitiesWithTags[T dbx.RowConvertibleEntity](ctx context.Context, provider *PostgresProvider, tableName string, entities []T) (int64, error) {
	// Check if there are any entities to insert
	if len(entities) == 0 {
		return 0, errors.New("no entities to insert")
	}

	// Derive the column names from the first entity's struct tags
	columnNames, err := dbx.DeriveColumnNamesFromTags(entities[0], "db")
	if err != nil {
		return 0, errors.Wrap(err, "error deriving column names")
	}

	pool, err := provider.GetDbConnPool()
	if err != nil {
		return 0, err
	}

	identifier, err := splitTableName(tableName)
	if err != nil {
		return 0, err
	}

	// Convert structs to [][]any for pgx.CopyFromRows
	rows := make([][]any, len(entities))
	for i, entity := range entities {
		rows[i] = entity.ToRow()
	}

	// Perform the bulk insert using pgx.CopyFrom
	rowCount, err := pool.CopyFrom(
		ctx,
		identifier,
		columnNames,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, errors.Wrap(err, "bulk insert error")
	}

	return rowCount, nil
}

func splitTableName(tableName string) (pgx.Identifier, error) {
	parts := strings.Split(tableName, ".")
	switch len(parts) {
	case 1:
		// Only the table name is provided, assume the default schema
		return pgx.Identifier{parts[0]}, nil
	case 2:
		// Schema and table are provided
		return pgx.Identifier{parts[0], parts[1]}, nil
	default:
		return nil, errors.Errorf("invalid table name format: %s", tableName)
	}
}
