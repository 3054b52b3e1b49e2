package dbx

// RowConvertibleEntity is implemented by structs that can render themselves as
// a row of values for bulk insertion.
//
// ToRow must return the field values in the same order as the columns derived
// from the struct's `db` tags, so that a slice of entities lines up with the
// column list produced by DeriveColumnNamesFromTags. Fields tagged `db:"-"` or
// carrying no tag are omitted from both.
//
// Example:
//
//	type User struct {
//	    ID   int    `db:"id"`
//	    Name string `db:"name"`
//	}
//
//	func (u User) ToRow() []any {
//	    return []any{u.ID, u.Name}
//	}
type RowConvertibleEntity interface {
	ToRow() []any
}
