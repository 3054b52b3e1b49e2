package dbx_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalbus/dalesbred/pkg/dbx"
)

// Define a struct matching an event-log table schema
type TaggedEntity struct {
	MessageID    int                    `db:"message_id"`
	EntityName   string                 `db:"entity_name"`
	EventPayload map[string]interface{} `db:"event_payload"`
	ModifyTs     time.Time              `db:"modify_ts"`
	IsActive     bool                   `db:"is_active"`
	Salary       float64                `db:"salary"`
	Tags         []string               `db:"tags"`
	Internal     []string               `db:"-"`
}

func TestDeriveColumnNamesFromTags(t *testing.T) {
	columns, err := dbx.DeriveColumnNamesFromTags(TaggedEntity{}, "db")

	// Expected column names from the `db` tags
	expectedColumns := []string{
		"message_id",
		"entity_name",
		"event_payload",
		"modify_ts",
		"is_active",
		"salary",
		"tags",
	}

	assert.NoError(t, err)
	assert.True(t, reflect.DeepEqual(expectedColumns, columns), "Expected %v but got %v", expectedColumns, columns)
}

func TestStructsToArgumentLists(t *testing.T) {
	testData := []TaggedEntity{
		{
			MessageID:    1,
			EntityName:   "TestEntity1",
			EventPayload: map[string]interface{}{"key1": "value1"},
			ModifyTs:     time.Now(),
			IsActive:     true,
			Salary:       5000.50,
			Tags:         []string{"tag1", "tag2"},
			Internal:     []string{"skipped"}, // Should be ignored because of `db:"-"` tag
		},
		{
			MessageID:    2,
			EntityName:   "TestEntity2",
			EventPayload: map[string]interface{}{"key2": "value2"},
			ModifyTs:     time.Now(),
			IsActive:     false,
			Salary:       6000.75,
			Tags:         []string{"tag3", "tag4"},
			Internal:     []string{"skipped"},
		},
	}

	rows, err := dbx.StructsToArgumentLists(testData, "db")
	require.NoError(t, err)

	require.Len(t, rows, 2)

	// Validate the first row's data
	require.Len(t, rows[0], 7) // Internal is ignored
	require.Equal(t, 1, rows[0][0])
	require.Equal(t, "TestEntity1", rows[0][1])
	require.Equal(t, map[string]interface{}{"key1": "value1"}, rows[0][2])
	require.Equal(t, true, rows[0][4])
	require.Equal(t, 5000.50, rows[0][5])
	require.Equal(t, []string{"tag1", "tag2"}, rows[0][6])

	// Validate the second row's data
	require.Len(t, rows[1], 7)
	require.Equal(t, 2, rows[1][0])
	require.Equal(t, "TestEntity2", rows[1][1])
	require.Equal(t, map[string]interface{}{"key2": "value2"}, rows[1][2])
	require.Equal(t, false, rows[1][4])
	require.Equal(t, 6000.75, rows[1][5])
	require.Equal(t, []string{"tag3", "tag4"}, rows[1][6])
}
