package dbx

import (
	"fmt"
	"strings"
)

// SqlQuery pairs a SQL string with its positional arguments so that a query can
// be passed around, logged and executed as one value.
type SqlQuery struct {
	SQL       string
	Arguments []any
}

// Query creates a SqlQuery from a SQL string and its positional arguments.
func Query(sql string, arguments ...any) SqlQuery {
	return SqlQuery{
		SQL:       sql,
		Arguments: arguments,
	}
}

// String renders the query with its arguments for logging. Argument values are
// formatted with %v; long argument lists are truncated.
func (q SqlQuery) String() string {
	if len(q.Arguments) == 0 {
		return q.SQL
	}

	var sb strings.Builder

	sb.WriteString(q.SQL)
	sb.WriteString(" [")

	for i, arg := range q.Arguments {
		if i > 0 {
			sb.WriteString(", ")
		}

		if i == maxLoggedArguments {
			sb.WriteString(fmt.Sprintf("... (%d more)", len(q.Arguments)-maxLoggedArguments))
			break
		}

		sb.WriteString(fmt.Sprintf("%v", arg))
	}

	sb.WriteString("]")

	return sb.String()
}

const maxLoggedArguments = 10

// batchQueryDescription is the argument placeholder used when logging batch
// updates, where printing every argument list would flood the log.
const batchQueryDescription = "<batch-update>"
