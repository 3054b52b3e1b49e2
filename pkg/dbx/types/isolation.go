package types

// Isolation represents the requested consistency level of a transaction.
//
// IsolationDefault is a sentinel meaning "use the dialect's configured default".
// When a transaction joins an existing frame, its requested isolation must either
// be IsolationDefault or match the isolation of the frame being joined.
type Isolation int

const (
	IsolationDefault Isolation = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

// String - human-readable isolation level name.
func (i Isolation) String() string {
	switch i {
	case IsolationReadUncommitted:
		return "read uncommitted"
	case IsolationReadCommitted:
		return "read committed"
	case IsolationRepeatableRead:
		return "repeatable read"
	case IsolationSerializable:
		return "serializable"
	default:
		return "default"
	}
}
