package types

// Column represents a single named, typed value of one result row.
//
// Value holds the driver's native representation, already unwrapped from any
// driver-specific scan types. TypeName is the declared database type of the
// column (for example "int8" or "varchar") and is informational.
type Column struct {
	Name     string
	Value    any
	TypeName string
}

// RowShape represents one result row as an ordered sequence of named, typed
// column values. It is produced once per row by the connection implementation
// and consumed by the instantiation engine; it must not be mutated afterwards.
type RowShape struct {
	Columns []Column
}

// NewRowShape builds a RowShape from parallel name and value slices. TypeNames
// may be nil when the driver does not expose declared column types.
func NewRowShape(names []string, values []any, typeNames []string) RowShape {
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Value: values[i]}
		if typeNames != nil {
			columns[i].TypeName = typeNames[i]
		}
	}

	return RowShape{Columns: columns}
}

// Len returns the number of columns in the row.
func (r RowShape) Len() int {
	return len(r.Columns)
}

// Names returns the column names in result order.
func (r RowShape) Names() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}

	return names
}

// Values returns the column values in result order.
func (r RowShape) Values() []any {
	values := make([]any, len(r.Columns))
	for i, c := range r.Columns {
		values[i] = c.Value
	}

	return values
}
