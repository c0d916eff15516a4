package handlers

import (
	"context"
	"fmt"

	"github.com/maxpert/mylite/protocol"
)

// HandleCheck answers CHECK TABLE with one status row per table.
func (m *MetadataHandler) HandleCheck(ctx context.Context, tables []string) (*protocol.ResultSet, error) {
	return m.maintenanceRows(ctx, "check", "OK", tables)
}

// HandleAnalyze answers ANALYZE TABLE. Statistics are refreshed by the
// caller before the result is built.
func (m *MetadataHandler) HandleAnalyze(ctx context.Context, tables []string) (*protocol.ResultSet, error) {
	return m.maintenanceRows(ctx, "analyze", "Table is already up to date", tables)
}

func (m *MetadataHandler) maintenanceRows(ctx context.Context, op, ok string, tables []string) (*protocol.ResultSet, error) {
	result := &protocol.ResultSet{
		Columns: protocol.TextColumns("Table", "Op", "Msg_type", "Msg_text"),
		Rows:    make([][]interface{}, 0, len(tables)),
	}

	for _, t := range tables {
		name := m.databaseName + "." + t
		schema, err := m.schema.ReadTableSchema(ctx, t)
		if err != nil {
			return nil, err
		}
		if schema == nil {
			result.Rows = append(result.Rows,
				[]interface{}{name, op, "Error", fmt.Sprintf("Table '%s' doesn't exist", name)},
				[]interface{}{name, op, "status", "Operation failed"},
			)
			continue
		}
		result.Rows = append(result.Rows, []interface{}{name, op, "status", ok})
	}
	return result, nil
}

// HandleFoundRows answers SELECT FOUND_ROWS().
func HandleFoundRows(n int64) *protocol.ResultSet {
	return &protocol.ResultSet{
		Columns: []protocol.ColumnDef{{Name: "FOUND_ROWS()", Type: protocol.TypeLongLong}},
		Rows:    [][]interface{}{{n}},
	}
}
