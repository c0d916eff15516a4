package engine

import (
	"context"

	"github.com/maxpert/mylite/protocol"
	"github.com/maxpert/mylite/protocol/handlers"
)

// TableDescription is SHOW COLUMNS and SHOW INDEX of one table.
type TableDescription struct {
	Name    string
	Columns *protocol.ResultSet
	Indexes *protocol.ResultSet
}

// Tables lists user tables without touching the state of the last query.
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Inspector().ListTables(ctx)
}

// Describe reports the MySQL view of table without touching the state of
// the last query.
func (e *Engine) Describe(ctx context.Context, table string) (*TableDescription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := handlers.NewMetadataHandler(e.session.Inspector(), e.dbName)
	cols, err := h.HandleShowColumns(ctx, table, false)
	if err != nil {
		return nil, err
	}
	idx, err := h.HandleShowIndex(ctx, table, "", "")
	if err != nil {
		return nil, err
	}
	return &TableDescription{Name: table, Columns: cols, Indexes: idx}, nil
}
