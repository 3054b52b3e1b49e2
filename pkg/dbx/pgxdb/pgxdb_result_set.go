package pgxdb

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/globalbus/dalesbred/pkg/dbx/types"
)

// resultSet adapts pgx.Rows to types.ResultSet. Column names and type names are
// resolved once from the field descriptions; values are decoded row by row.
type resultSet struct {
	rows      pgx.Rows
	names     []string
	typeNames []string
}

func newResultSet(rows pgx.Rows) *resultSet {
	descriptions := rows.FieldDescriptions()
	names := make([]string, len(descriptions))
	typeNames := make([]string, len(descriptions))

	for i, description := range descriptions {
		names[i] = description.Name
		typeNames[i] = typeNameForOID(rows, description.DataTypeOID)
	}

	return &resultSet{
		rows:      rows,
		names:     names,
		typeNames: typeNames,
	}
}

func typeNameForOID(rows pgx.Rows, oid uint32) string {
	conn := rows.Conn()
	if conn == nil {
		return fmt.Sprintf("oid:%d", oid)
	}

	if dataType, ok := conn.TypeMap().TypeForOID(oid); ok {
		return dataType.Name
	}

	return fmt.Sprintf("oid:%d", oid)
}

// Next advances to the next row, reporting whether one is available.
func (rs *resultSet) Next() bool {
	return rs.rows.Next()
}

// Row decodes the current row into the facade's row shape.
func (rs *resultSet) Row() (types.RowShape, error) {
	values, err := rs.rows.Values()
	if err != nil {
		return types.RowShape{}, err
	}

	return types.NewRowShape(rs.names, values, rs.typeNames), nil
}

// Err returns the error, if any, that terminated iteration.
func (rs *resultSet) Err() error {
	return rs.rows.Err()
}

// Close releases the resources held by the result set.
func (rs *resultSet) Close() {
	rs.rows.Close()
}
