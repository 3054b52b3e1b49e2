package pgxdb

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitTableName verifies identifier parsing, including rejection of
// malformed names.
func TestSplitTableName(t *testing.T) {
	identifier, err := splitTableName("users")
	require.NoError(t, err)
	assert.Equal(t, pgx.Identifier{"users"}, identifier)

	identifier, err = splitTableName("public.users")
	require.NoError(t, err)
	assert.Equal(t, pgx.Identifier{"public", "users"}, identifier)

	_, err = splitTableName("db.public.users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name format")
}
