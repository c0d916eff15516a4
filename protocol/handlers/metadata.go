// Package handlers answers MySQL introspection statements SQLite has no
// equivalent for, shaping results the way MySQL reports them.
package handlers

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/maxpert/mylite/protocol"
	"github.com/maxpert/mylite/protocol/query/transform"
	"github.com/rs/zerolog/log"
)

// SchemaSource abstracts schema reads for metadata statements
type SchemaSource interface {
	ReadTableSchema(ctx context.Context, table string) (*transform.TableSchema, error)
	ListTables(ctx context.Context) ([]string, error)
	CountRows(ctx context.Context, table string) (int64, error)
}

// MetadataHandler provides SHOW command implementations
type MetadataHandler struct {
	schema       SchemaSource
	databaseName string
}

// NewMetadataHandler creates a new MetadataHandler
func NewMetadataHandler(schema SchemaSource, databaseName string) *MetadataHandler {
	return &MetadataHandler{
		schema:       schema,
		databaseName: databaseName,
	}
}

func (m *MetadataHandler) noSuchTable(table string) error {
	return protocol.NewMySQLError(protocol.ErrCodeNoSuchTable, protocol.SQLStateNoSuchTable,
		fmt.Sprintf("Table '%s.%s' doesn't exist", m.databaseName, table))
}

func (m *MetadataHandler) readTable(ctx context.Context, table string) (*transform.TableSchema, error) {
	if table == "" {
		return nil, fmt.Errorf("no table specified")
	}
	schema, err := m.schema.ReadTableSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, m.noSuchTable(table)
	}
	return schema, nil
}

// HandleShowColumns answers SHOW [FULL] COLUMNS and DESCRIBE
func (m *MetadataHandler) HandleShowColumns(ctx context.Context, table string, full bool) (*protocol.ResultSet, error) {
	log.Debug().Str("table", table).Bool("full", full).Msg("Handling SHOW COLUMNS")

	schema, err := m.readTable(ctx, table)
	if err != nil {
		return nil, err
	}
	keys := columnKeys(schema)

	names := []string{"Field", "Type", "Null", "Key", "Default", "Extra"}
	if full {
		names = []string{"Field", "Type", "Collation", "Null", "Key", "Default", "Extra", "Privileges", "Comment"}
	}
	result := &protocol.ResultSet{
		Columns: protocol.TextColumns(names...),
		Rows:    make([][]interface{}, 0, len(schema.Columns)),
	}

	for _, col := range schema.Columns {
		mysqlType := sqliteToMySQLType(col.Type)

		nullStr := "YES"
		if col.NotNull || col.PrimaryKey > 0 {
			nullStr = "NO"
		}

		var defaultVal interface{}
		if col.Default != nil {
			defaultVal = unquoteDefault(*col.Default)
		}

		extra := ""
		if strings.EqualFold(col.Name, schema.AutoIncrement) {
			extra = "auto_increment"
		}

		if full {
			var collation interface{}
			if mysqlType == "text" || strings.HasPrefix(mysqlType, "varchar") {
				collation = "utf8mb4_general_ci"
			}
			result.Rows = append(result.Rows, []interface{}{
				col.Name, mysqlType, collation, nullStr, keys[strings.ToLower(col.Name)], defaultVal, extra,
				"select,insert,update,references", "",
			})
			continue
		}
		result.Rows = append(result.Rows, []interface{}{
			col.Name, mysqlType, nullStr, keys[strings.ToLower(col.Name)], defaultVal, extra,
		})
	}

	return result, nil
}

// columnKeys returns the Key column of SHOW COLUMNS: PRI, UNI for the
// column of a single-column unique index, MUL for the first column of any
// other index.
func columnKeys(schema *transform.TableSchema) map[string]string {
	keys := make(map[string]string)
	for _, idx := range parseIndexes(schema.Name, schema.Indexes) {
		first := strings.ToLower(idx.columns[0])
		if keys[first] != "" {
			continue
		}
		if idx.unique && len(idx.columns) == 1 {
			keys[first] = "UNI"
		} else {
			keys[first] = "MUL"
		}
	}
	for _, col := range schema.Columns {
		if col.PrimaryKey > 0 {
			keys[strings.ToLower(col.Name)] = "PRI"
		}
	}
	return keys
}

// unquoteDefault turns the stored default expression into the value MySQL reports.
func unquoteDefault(def string) interface{} {
	if strings.EqualFold(def, "NULL") {
		return nil
	}
	if len(def) >= 2 && def[0] == '\'' && def[len(def)-1] == '\'' {
		return strings.ReplaceAll(def[1:len(def)-1], "''", "'")
	}
	return def
}

var createIndexText = regexp.MustCompile(`(?is)^\s*CREATE\s+(UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?("[^"]+"|` + "`[^`]+`" + `|[^\s(]+)\s+ON\s+[^\s(]+\s*\((.*)\)\s*(?:WHERE\s+.*)?$`)

type indexDef struct {
	name    string
	unique  bool
	columns []string
}

// parseIndexes reads stored CREATE INDEX statements into MySQL index
// definitions, sorted by MySQL name.
func parseIndexes(table string, stmts []string) []indexDef {
	var out []indexDef
	for _, stmt := range stmts {
		m := createIndexText.FindStringSubmatch(stmt)
		if m == nil {
			log.Debug().Str("sql", stmt).Msg("Skipping unrecognised index definition")
			continue
		}
		var cols []string
		for _, c := range strings.Split(m[3], ",") {
			if c = indexColumnName(c); c != "" {
				cols = append(cols, c)
			}
		}
		if len(cols) == 0 {
			continue
		}
		out = append(out, indexDef{
			name:    transform.MySQLIndexName(table, trimIdent(m[2])),
			unique:  m[1] != "",
			columns: cols,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// indexColumnName strips quotes, COLLATE and ordering from an indexed column.
func indexColumnName(c string) string {
	fields := strings.Fields(strings.TrimSpace(c))
	if len(fields) == 0 {
		return ""
	}
	return trimIdent(fields[0])
}

func trimIdent(s string) string {
	return strings.Trim(s, "`\"[]")
}

// HandleShowIndex answers SHOW INDEX. whereColumn/whereValue filter rows
// on one result column, as lifted from SHOW INDEX ... WHERE col = value.
func (m *MetadataHandler) HandleShowIndex(ctx context.Context, table, whereColumn, whereValue string) (*protocol.ResultSet, error) {
	log.Debug().Str("table", table).Str("where", whereColumn).Msg("Handling SHOW INDEX")

	schema, err := m.readTable(ctx, table)
	if err != nil {
		return nil, err
	}

	result := &protocol.ResultSet{
		Columns: []protocol.ColumnDef{
			{Name: "Table", Type: protocol.TypeVarString},
			{Name: "Non_unique", Type: protocol.TypeLong},
			{Name: "Key_name", Type: protocol.TypeVarString},
			{Name: "Seq_in_index", Type: protocol.TypeLong},
			{Name: "Column_name", Type: protocol.TypeVarString},
			{Name: "Collation", Type: protocol.TypeVarString},
			{Name: "Cardinality", Type: protocol.TypeLongLong},
			{Name: "Sub_part", Type: protocol.TypeLong},
			{Name: "Packed", Type: protocol.TypeVarString},
			{Name: "Null", Type: protocol.TypeVarString},
			{Name: "Index_type", Type: protocol.TypeVarString},
			{Name: "Comment", Type: protocol.TypeVarString},
			{Name: "Index_comment", Type: protocol.TypeVarString},
		},
		Rows: make([][]interface{}, 0),
	}

	nullable := make(map[string]bool, len(schema.Columns))
	var pk []transform.ColumnInfo
	for _, col := range schema.Columns {
		nullable[strings.ToLower(col.Name)] = !col.NotNull && col.PrimaryKey == 0
		if col.PrimaryKey > 0 {
			pk = append(pk, col)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].PrimaryKey < pk[j].PrimaryKey })

	addRow := func(nonUnique int, key string, seq int, column string) {
		null := ""
		if nullable[strings.ToLower(column)] {
			null = "YES"
		}
		result.Rows = append(result.Rows, []interface{}{
			schema.Name, nonUnique, key, seq, column, "A", nil, nil, nil, null, "BTREE", "", "",
		})
	}

	for i, col := range pk {
		addRow(0, "PRIMARY", i+1, col.Name)
	}
	for _, idx := range parseIndexes(schema.Name, schema.Indexes) {
		nonUnique := 1
		if idx.unique {
			nonUnique = 0
		}
		for i, col := range idx.columns {
			addRow(nonUnique, idx.name, i+1, col)
		}
	}

	if whereColumn != "" {
		result.Rows = filterRows(result, whereColumn, whereValue)
	}
	return result, nil
}

// filterRows keeps rows whose column equals value, comparing as text.
func filterRows(rs *protocol.ResultSet, column, value string) [][]interface{} {
	at := -1
	for i, c := range rs.Columns {
		if strings.EqualFold(c.Name, column) {
			at = i
			break
		}
	}
	if at < 0 {
		return [][]interface{}{}
	}

	out := make([][]interface{}, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if strings.EqualFold(fmt.Sprint(row[at]), value) {
			out = append(out, row)
		}
	}
	return out
}

// HandleShowTables answers SHOW [FULL] TABLES [LIKE pattern]
func (m *MetadataHandler) HandleShowTables(ctx context.Context, like string, full bool) (*protocol.ResultSet, error) {
	log.Debug().Str("database", m.databaseName).Str("filter", like).Msg("Handling SHOW TABLES")

	tables, err := m.schema.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	names := []string{"Tables_in_" + m.databaseName}
	if full {
		names = append(names, "Table_type")
	}
	result := &protocol.ResultSet{
		Columns: protocol.TextColumns(names...),
		Rows:    make([][]interface{}, 0, len(tables)),
	}

	for _, t := range tables {
		if !likeMatch(like, t) {
			continue
		}
		if full {
			result.Rows = append(result.Rows, []interface{}{t, "BASE TABLE"})
		} else {
			result.Rows = append(result.Rows, []interface{}{t})
		}
	}
	return result, nil
}

// HandleShowTableStatus answers SHOW TABLE STATUS [LIKE pattern] with one
// synthesized row per matching table.
func (m *MetadataHandler) HandleShowTableStatus(ctx context.Context, like string) (*protocol.ResultSet, error) {
	log.Debug().Str("database", m.databaseName).Str("filter", like).Msg("Handling SHOW TABLE STATUS")

	tables, err := m.schema.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	result := &protocol.ResultSet{
		Columns: []protocol.ColumnDef{
			{Name: "Name", Type: protocol.TypeVarString},
			{Name: "Engine", Type: protocol.TypeVarString},
			{Name: "Version", Type: protocol.TypeLong},
			{Name: "Row_format", Type: protocol.TypeVarString},
			{Name: "Rows", Type: protocol.TypeLongLong},
			{Name: "Avg_row_length", Type: protocol.TypeLongLong},
			{Name: "Data_length", Type: protocol.TypeLongLong},
			{Name: "Max_data_length", Type: protocol.TypeLongLong},
			{Name: "Index_length", Type: protocol.TypeLongLong},
			{Name: "Data_free", Type: protocol.TypeLongLong},
			{Name: "Auto_increment", Type: protocol.TypeLongLong},
			{Name: "Create_time", Type: protocol.TypeVarString},
			{Name: "Update_time", Type: protocol.TypeVarString},
			{Name: "Check_time", Type: protocol.TypeVarString},
			{Name: "Collation", Type: protocol.TypeVarString},
			{Name: "Checksum", Type: protocol.TypeLongLong},
			{Name: "Create_options", Type: protocol.TypeVarString},
			{Name: "Comment", Type: protocol.TypeVarString},
		},
		Rows: make([][]interface{}, 0),
	}

	for _, t := range tables {
		if !likeMatch(like, t) {
			continue
		}
		rows, err := m.schema.CountRows(ctx, t)
		if err != nil {
			return nil, err
		}

		result.Rows = append(result.Rows, []interface{}{
			t,                    // Name
			"SQLite",             // Engine
			10,                   // Version
			"Dynamic",            // Row_format
			rows,                 // Rows
			0,                    // Avg_row_length
			0,                    // Data_length
			0,                    // Max_data_length
			0,                    // Index_length
			0,                    // Data_free
			nil,                  // Auto_increment
			nil,                  // Create_time
			nil,                  // Update_time
			nil,                  // Check_time
			"utf8mb4_general_ci", // Collation
			nil,                  // Checksum
			"",                   // Create_options
			"",                   // Comment
		})
	}

	return result, nil
}
