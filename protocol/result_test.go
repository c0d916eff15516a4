package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultSetHelpers(t *testing.T) {
	rs := &ResultSet{
		Columns: TextColumns("Field", "Type"),
		Rows: [][]interface{}{
			{"id", "INTEGER"},
			{"name"},
		},
	}

	assert.Equal(t, []string{"Field", "Type"}, rs.ColumnNames())
	assert.Equal(t, TypeVarString, rs.Columns[1].Type)

	maps := rs.RowMaps()
	assert.Len(t, maps, 2)
	assert.Equal(t, "INTEGER", maps[0]["Type"])
	_, ok := maps[1]["Type"]
	assert.False(t, ok, "short rows only fill present columns")
}

func TestColumnTypeFromDecl(t *testing.T) {
	assert.Equal(t, TypeLongLong, ColumnTypeFromDecl("INTEGER"))
	assert.Equal(t, TypeDouble, ColumnTypeFromDecl("REAL"))
	assert.Equal(t, TypeBlob, ColumnTypeFromDecl("BLOB"))
	assert.Equal(t, TypeVarString, ColumnTypeFromDecl("TEXT"))
	assert.Equal(t, TypeVarString, ColumnTypeFromDecl(""))
}
