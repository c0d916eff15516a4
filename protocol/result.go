package protocol

// MySQL column type codes used in result set metadata
const (
	TypeLong      byte = 0x03
	TypeDouble    byte = 0x05
	TypeNull      byte = 0x06
	TypeLongLong  byte = 0x08
	TypeBlob      byte = 0xFC
	TypeVarString byte = 0xFD
)

// ResultSet represents a MySQL result set
type ResultSet struct {
	Columns      []ColumnDef
	Rows         [][]interface{}
	RowsAffected int64
}

// ColumnDef represents a column definition
type ColumnDef struct {
	Name string
	Type byte
}

// ColumnNames returns the names of all columns in order
func (r *ResultSet) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// RowMaps returns each row as a column-name keyed map
func (r *ResultSet) RowMaps() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]interface{}, len(r.Columns))
		for i, c := range r.Columns {
			if i < len(row) {
				m[c.Name] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// TextColumns builds VAR_STRING column definitions for the given names
func TextColumns(names ...string) []ColumnDef {
	cols := make([]ColumnDef, len(names))
	for i, n := range names {
		cols[i] = ColumnDef{Name: n, Type: TypeVarString}
	}
	return cols
}

// ColumnTypeFromDecl maps a SQLite declared type to a MySQL column type code
func ColumnTypeFromDecl(decl string) byte {
	switch decl {
	case "INTEGER", "INT", "BIGINT":
		return TypeLongLong
	case "REAL", "DOUBLE", "FLOAT", "NUMERIC":
		return TypeDouble
	case "BLOB":
		return TypeBlob
	default:
		return TypeVarString
	}
}
